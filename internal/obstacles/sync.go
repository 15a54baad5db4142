// Package obstacles mirrors the solid cells around a moving reference point
// as static engine colliders.
//
// The window is a cube of radius r cells. A full scan visits the whole cube;
// between full scans an incremental scan every Cadence ticks visits only the
// outer shell, trusting the interior. Cached cells that leave the cube are
// pruned on every scan.
package obstacles

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"go.uber.org/zap"
)

// WorldQuery answers whether a cell has a non-empty collision volume.
type WorldQuery interface {
	HasCollisionVolume(x, y, z int) bool
}

type Cell struct{ X, Y, Z int }

// Chebyshev returns the largest per-axis distance between two cells.
func (c Cell) Chebyshev(o Cell) int {
	return max(abs(c.X-o.X), abs(c.Y-o.Y), abs(c.Z-o.Z))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

type Config struct {
	Radius int
	// Cadence is the number of ticks between incremental scans.
	Cadence int
	// Deadband is how far, in cells, the center may drift before a full
	// rescan. Capped at MaxDeadband.
	Deadband int
	// CellSize is the edge of one cell in engine units.
	CellSize float64
}

// MaxDeadband is the largest drift a shell scan can cover: after one cell
// of movement every interior cell of the new cube was inside the old one.
const MaxDeadband = 1

func DefaultConfig() Config {
	return Config{Radius: 4, Cadence: 10, Deadband: 1, CellSize: 1}
}

type Stats struct {
	FullScans        int
	IncrementalScans int
	Created          int
	Destroyed        int
	CreateFailures   int
	DestroyFailures  int
}

type Sync struct {
	phys  *engine.Binding
	cfg   Config
	log   *zap.Logger
	cache map[Cell]engine.GeomID

	center  Cell
	scanned bool
	ticks   int
	stats   Stats
}

type Option func(*Sync)

func WithLogger(l *zap.Logger) Option {
	return func(s *Sync) {
		if l != nil {
			s.log = l
		}
	}
}

func New(phys *engine.Binding, cfg Config, opts ...Option) *Sync {
	d := DefaultConfig()
	if cfg.Radius < 0 {
		cfg.Radius = 0
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = d.Cadence
	}
	cfg.Deadband = min(max(cfg.Deadband, 0), MaxDeadband)
	if !(cfg.CellSize > 0) {
		cfg.CellSize = d.CellSize
	}
	s := &Sync{
		phys:  phys,
		cfg:   cfg,
		log:   zap.NewNop(),
		cache: make(map[Cell]engine.GeomID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.Named("obstacles")
	return s
}

// CellAt converts an engine-space position to the cell containing it.
func (s *Sync) CellAt(x, y, z float64) Cell {
	k := s.cfg.CellSize
	return Cell{int(math.Floor(x / k)), int(math.Floor(y / k)), int(math.Floor(z / k))}
}

// Update is called once per tick with the reference position in engine
// units. It does nothing while the binding is not Ready.
func (s *Sync) Update(q WorldQuery, x, y, z float64) {
	s.update(q, s.CellAt(x, y, z), false)
}

// ForceUpdate runs a full scan regardless of movement or cadence.
func (s *Sync) ForceUpdate(q WorldQuery, x, y, z float64) {
	s.update(q, s.CellAt(x, y, z), true)
}

func (s *Sync) update(q WorldQuery, c Cell, force bool) {
	if q == nil || s.phys == nil || !s.phys.Ready() {
		return
	}
	s.ticks++
	switch {
	case force || !s.scanned || c.Chebyshev(s.center) > s.cfg.Deadband:
		s.fullScan(q, c)
	case s.ticks >= s.cfg.Cadence:
		s.shellScan(q, c)
	}
}

func (s *Sync) fullScan(q WorldQuery, c Cell) {
	r := s.cfg.Radius
	solid := make(map[Cell]struct{})
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				cell := Cell{c.X + dx, c.Y + dy, c.Z + dz}
				if q.HasCollisionVolume(cell.X, cell.Y, cell.Z) {
					solid[cell] = struct{}{}
					s.add(cell)
				}
			}
		}
	}
	for cell := range s.cache {
		if _, ok := solid[cell]; !ok {
			s.remove(cell)
		}
	}
	s.finish(c)
	s.stats.FullScans++
	s.log.Debug("full scan", zap.Int("x", c.X), zap.Int("y", c.Y), zap.Int("z", c.Z),
		zap.Int("colliders", len(s.cache)))
}

// shellScan revisits only cells with at least one axis offset equal to the
// radius.
func (s *Sync) shellScan(q WorldQuery, c Cell) {
	r := s.cfg.Radius
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				if abs(dx) != r && abs(dy) != r && abs(dz) != r {
					continue
				}
				cell := Cell{c.X + dx, c.Y + dy, c.Z + dz}
				if q.HasCollisionVolume(cell.X, cell.Y, cell.Z) {
					s.add(cell)
				} else {
					s.remove(cell)
				}
			}
		}
	}
	for cell := range s.cache {
		if cell.Chebyshev(c) > r {
			s.remove(cell)
		}
	}
	s.finish(c)
	s.stats.IncrementalScans++
	s.log.Debug("shell scan", zap.Int("colliders", len(s.cache)))
}

func (s *Sync) finish(c Cell) {
	s.center = c
	s.scanned = true
	s.ticks = 0
}

func (s *Sync) add(cell Cell) {
	if _, ok := s.cache[cell]; ok {
		return
	}
	k := s.cfg.CellSize
	g := s.phys.CreateBoxGeom(mgl64.Vec3{k, k, k})
	if g == 0 {
		s.stats.CreateFailures++
		s.log.Warn("collider creation failed", zap.Int("x", cell.X), zap.Int("y", cell.Y), zap.Int("z", cell.Z))
		return
	}
	center := mgl64.Vec3{float64(cell.X) + 0.5, float64(cell.Y) + 0.5, float64(cell.Z) + 0.5}.Mul(k)
	if !s.phys.SetGeomPosition(g, center) || !s.phys.RegisterStaticGeom(g) {
		s.phys.DestroyGeom(g)
		s.stats.CreateFailures++
		s.log.Warn("collider placement failed", zap.Int("x", cell.X), zap.Int("y", cell.Y), zap.Int("z", cell.Z))
		return
	}
	s.cache[cell] = g
	s.stats.Created++
}

// remove forgets the cell even when the engine refuses to destroy its
// collider.
func (s *Sync) remove(cell Cell) {
	g, ok := s.cache[cell]
	if !ok {
		return
	}
	delete(s.cache, cell)
	if !s.phys.DestroyGeom(g) {
		s.stats.DestroyFailures++
		s.log.Warn("collider destroy failed", zap.Int("x", cell.X), zap.Int("y", cell.Y), zap.Int("z", cell.Z))
		return
	}
	s.stats.Destroyed++
}

func (s *Sync) ActiveColliders() int { return len(s.cache) }

func (s *Sync) HasCollider(c Cell) bool {
	_, ok := s.cache[c]
	return ok
}

// Center is the cell of the last completed scan.
func (s *Sync) Center() (Cell, bool) { return s.center, s.scanned }

func (s *Sync) Stats() Stats { return s.stats }

// Cleanup destroys every tracked collider. The next update starts with a
// full scan.
func (s *Sync) Cleanup() {
	for cell := range s.cache {
		s.remove(cell)
	}
	s.scanned = false
	s.ticks = 0
}
