package control

import "math"

// WrapAngle maps a into (−π, π].
func WrapAngle(a float64) float64 {
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0
	}
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// ShortestAngle returns the signed rotation from `from` to `to` with the
// smallest magnitude, in (−π, π].
func ShortestAngle(from, to float64) float64 {
	return WrapAngle(to - from)
}
