// Package sim owns one simulated episode: a physics world, the robot in it,
// the colliders around it and the voxel world they come from.
//
// A Session is single-threaded. Run independent sessions concurrently with
// RunEnsemble; each gets its own physics world.
package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/robosim/internal/config"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/obstacles"
	"github.com/san-kum/robosim/internal/robot"
	"github.com/san-kum/robosim/internal/urdf"
	"github.com/san-kum/robosim/internal/voxel"
	"go.uber.org/zap"
)

// probeTop is the highest cell the ground probe starts from.
const probeTop = 32

type Session struct {
	cfg    *config.Config
	phys   *engine.Binding
	ctrl   *robot.Controller
	sync   *obstacles.Sync
	world  *voxel.World
	ground groundProbe
	driver Driver
	log    *zap.Logger

	joints    []string
	observers []Observer
	tick      int
	time      float64
}

type options struct {
	log      *zap.Logger
	discover engine.Discoverer
	world    *voxel.World
	driver   Driver
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDiscoverer replaces the native engine lookup for this session's world.
func WithDiscoverer(d engine.Discoverer) Option {
	return func(o *options) { o.discover = d }
}

// WithWorld supplies the voxel world instead of generating one from the
// configured terrain and seed.
func WithWorld(w *voxel.World) Option {
	return func(o *options) { o.world = w }
}

func WithDriver(d Driver) Option {
	return func(o *options) { o.driver = d }
}

func NewSession(desc *urdf.Robot, cfg *config.Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{log: zap.NewNop(), driver: Hold{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.driver == nil {
		o.driver = Hold{}
	}

	bopts := []engine.Option{engine.WithLogger(o.log)}
	if o.discover != nil {
		bopts = append(bopts, engine.WithDiscoverer(o.discover))
	}
	phys := engine.NewBinding(cfg.WorldParams(), bopts...)

	ctrl, err := robot.New(desc, phys, cfg.RobotConfig(), robot.WithLogger(o.log))
	if err != nil {
		phys.Cleanup()
		return nil, fmt.Errorf("sim: build robot %q: %w", desc.Name, err)
	}

	world := o.world
	if world == nil {
		world = voxel.NewWorld(uint32(cfg.Sim.Seed), cfg.Terrain())
	}

	s := &Session{
		cfg:    cfg,
		phys:   phys,
		ctrl:   ctrl,
		sync:   obstacles.New(phys, cfg.ObstacleConfig(), obstacles.WithLogger(o.log)),
		world:  world,
		ground: groundProbe{world: world, cell: cfg.Obstacles.CellSize},
		driver: o.driver,
		log:    o.log.Named("sim"),
	}
	for _, name := range ctrl.JointNames() {
		ji, _ := desc.JointIndex(name)
		if desc.Joints[ji].Type.Actuated() {
			s.joints = append(s.joints, name)
		}
	}
	return s, nil
}

func (s *Session) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Session) Controller() *robot.Controller { return s.ctrl }

func (s *Session) Colliders() *obstacles.Sync { return s.sync }

func (s *Session) World() *voxel.World { return s.world }

func (s *Session) Binding() *engine.Binding { return s.phys }

// Joints lists the actuated joints in frame column order.
func (s *Session) Joints() []string { return s.joints }

// Tick refreshes colliders around the robot, advances it by one dt and
// reports the result to observers.
func (s *Session) Tick() Frame {
	dt := s.cfg.Sim.Dt
	if targets := s.driver.Targets(s.tick, s.time, s.joints); len(targets) > 0 {
		s.ctrl.SetTargets(targets)
	}

	root := s.ctrl.RootPosition()
	s.sync.Update(s.world, root[0], root[1], root[2])
	s.ctrl.Update(dt, s.ground)

	s.tick++
	s.time += dt
	f := s.frame()
	for _, o := range s.observers {
		o.OnTick(f)
	}
	return f
}

func (s *Session) frame() Frame {
	states := s.ctrl.JointStates()
	f := Frame{
		Tick:       s.tick,
		Time:       s.time,
		Root:       s.ctrl.RootPosition(),
		RootQuat:   s.ctrl.RootQuaternionWXYZ(),
		Positions:  make([]float64, len(s.joints)),
		Velocities: make([]float64, len(s.joints)),
		Targets:    make([]float64, len(s.joints)),
		Colliders:  s.sync.ActiveColliders(),
	}
	for i, name := range s.joints {
		st := states[name]
		f.Positions[i] = st.Position
		f.Velocities[i] = st.Velocity
		f.Targets[i] = st.TargetPosition
	}
	return f
}

// Run ticks until n frames have been produced or ctx is done. A cancelled
// run returns the frames recorded so far along with the context error.
func (s *Session) Run(ctx context.Context, n int) (*Result, error) {
	start := time.Now()
	res := &Result{
		Robot:   s.ctrl.Description().Name,
		Engine:  s.phys.EngineName(),
		Physics: s.ctrl.UsingPhysics(),
		Seed:    s.cfg.Sim.Seed,
		Joints:  s.joints,
		Frames:  make([]Frame, 0, n),
	}

	var err error
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
		}
		if err != nil {
			break
		}
		res.Frames = append(res.Frames, s.Tick())
	}

	res.Obstacles = s.sync.Stats()
	res.Wall = time.Since(start)
	s.log.Info("run finished",
		zap.Int("ticks", len(res.Frames)),
		zap.Bool("physics", res.Physics),
		zap.Duration("wall", res.Wall))
	return res, err
}

// Reset puts the robot back at its spawn pose and rearms collider scanning.
func (s *Session) Reset() bool {
	anchor, ok := s.ctrl.SpawnRootPosition()
	if !ok {
		anchor = s.cfg.Spawn()
	}
	s.sync.Cleanup()
	return s.ctrl.HardResetToSpawn(anchor)
}

// Close releases colliders, bodies and the physics world.
func (s *Session) Close() {
	s.sync.Cleanup()
	s.ctrl.Cleanup()
	s.phys.Cleanup()
}

// groundProbe answers robot ground queries from the voxel world.
type groundProbe struct {
	world *voxel.World
	cell  float64
}

func (g groundProbe) GroundLevel(x, z float64) (float64, bool) {
	cx := int(math.Floor(x / g.cell))
	cz := int(math.Floor(z / g.cell))
	y, ok := g.world.Surface(cx, cz, probeTop)
	if !ok {
		return 0, false
	}
	return float64(y) * g.cell, true
}

var _ robot.Ground = groundProbe{}
