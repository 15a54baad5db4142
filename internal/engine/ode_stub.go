//go:build !ode

package engine

// Discover reports the engine as unavailable; build with -tags ode to link
// the native ODE backend.
func Discover(p WorldParams) (Engine, error) {
	return nil, ErrEngineUnavailable
}
