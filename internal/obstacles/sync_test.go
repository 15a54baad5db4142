package obstacles_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/engine/enginetest"
	"github.com/san-kum/robosim/internal/obstacles"
	"github.com/san-kum/robosim/internal/voxel"
)

type grid map[obstacles.Cell]bool

func (g grid) HasCollisionVolume(x, y, z int) bool { return g[obstacles.Cell{X: x, Y: y, Z: z}] }

// expectMirrors checks solid ⟺ collider for every cell of the cube around c.
func expectMirrors(s *obstacles.Sync, q obstacles.WorldQuery, c obstacles.Cell, r int) {
	n := 0
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				cell := obstacles.Cell{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
				solid := q.HasCollisionVolume(cell.X, cell.Y, cell.Z)
				ExpectWithOffset(1, s.HasCollider(cell)).To(Equal(solid), "cell %v", cell)
				if solid {
					n++
				}
			}
		}
	}
	ExpectWithOffset(1, s.ActiveColliders()).To(Equal(n))
}

var _ = Describe("Sync", func() {
	var (
		fake *enginetest.Engine
		phys *engine.Binding
		cfg  obstacles.Config
		sync *obstacles.Sync
		g    grid
	)

	BeforeEach(func() {
		fake = enginetest.New()
		phys = engine.NewBinding(engine.DefaultWorldParams(), engine.WithDiscoverer(fake.Discoverer()))
		cfg = obstacles.Config{Radius: 2, Cadence: 5, Deadband: 1, CellSize: 1}
		g = grid{}
		for x := -5; x <= 5; x++ {
			for z := -5; z <= 5; z++ {
				g[obstacles.Cell{X: x, Y: -1, Z: z}] = true
			}
		}
	})

	JustBeforeEach(func() {
		sync = obstacles.New(phys, cfg)
	})

	It("runs one full and one shell scan over ten stationary ticks", func() {
		for i := 0; i < 10; i++ {
			sync.Update(g, 0.5, 0.5, 0.5)
		}
		st := sync.Stats()
		Expect(st.FullScans).To(Equal(1))
		Expect(st.IncrementalScans).To(Equal(1))
	})

	It("mirrors the solid cells of the cube after a full scan", func() {
		g[obstacles.Cell{X: 1, Y: 1, Z: 0}] = true
		sync.Update(g, 0.5, 0.5, 0.5)

		expectMirrors(sync, g, obstacles.Cell{}, cfg.Radius)
		Expect(fake.StaticGeoms()).To(Equal(sync.ActiveColliders()))
		Expect(sync.ActiveColliders()).To(Equal(5*5 + 1))
	})

	It("places box colliders at cell centers", func() {
		cfg.CellSize = 0.5
		g = grid{{X: 3, Y: -2, Z: 0}: true}
		sync = obstacles.New(phys, cfg)
		sync.Update(g, 1.6, -0.9, 0.1)

		Expect(sync.HasCollider(obstacles.Cell{X: 3, Y: -2, Z: 0})).To(BeTrue())
		for _, geom := range fake.Geoms {
			Expect(geom.Static).To(BeTrue())
			Expect(geom.Size[0]).To(BeNumerically("~", 0.5))
			Expect(geom.Pos[0]).To(BeNumerically("~", 1.75))
			Expect(geom.Pos[1]).To(BeNumerically("~", -0.75))
			Expect(geom.Pos[2]).To(BeNumerically("~", 0.25))
		}
	})

	Context("between full scans", func() {
		JustBeforeEach(func() {
			sync.Update(g, 0, 0, 0)
		})

		It("picks up shell changes on the cadence tick", func() {
			shell := obstacles.Cell{X: 2, Y: 2, Z: 2}
			g[shell] = true
			delete(g, obstacles.Cell{X: -2, Y: -1, Z: 0})

			for i := 0; i < cfg.Cadence-1; i++ {
				sync.Update(g, 0, 0, 0)
			}
			Expect(sync.HasCollider(shell)).To(BeFalse())

			sync.Update(g, 0, 0, 0)
			Expect(sync.HasCollider(shell)).To(BeTrue())
			Expect(sync.HasCollider(obstacles.Cell{X: -2, Y: -1, Z: 0})).To(BeFalse())
			expectMirrors(sync, g, obstacles.Cell{}, cfg.Radius)
		})

		It("leaves interior cells to the next full scan", func() {
			inner := obstacles.Cell{X: 0, Y: 1, Z: 0}
			g[inner] = true
			for i := 0; i < cfg.Cadence; i++ {
				sync.Update(g, 0, 0, 0)
			}
			Expect(sync.Stats().IncrementalScans).To(Equal(1))
			Expect(sync.HasCollider(inner)).To(BeFalse())

			sync.ForceUpdate(g, 0, 0, 0)
			Expect(sync.HasCollider(inner)).To(BeTrue())
			Expect(sync.Stats().FullScans).To(Equal(2))
		})

		It("prunes cells that fall outside the shifted cube", func() {
			far := obstacles.Cell{X: -2, Y: -1, Z: 0}
			Expect(sync.HasCollider(far)).To(BeTrue())

			// One cell of drift stays inside the deadband.
			for i := 0; i < cfg.Cadence; i++ {
				sync.Update(g, 1.2, 0, 0)
			}
			Expect(sync.Stats().FullScans).To(Equal(1))
			Expect(sync.HasCollider(far)).To(BeFalse())
			expectMirrors(sync, g, obstacles.Cell{X: 1}, cfg.Radius)
		})

		It("rescans fully when the center leaves the deadband", func() {
			sync.Update(g, 3, 0, 0)
			Expect(sync.Stats().FullScans).To(Equal(2))
			center, ok := sync.Center()
			Expect(ok).To(BeTrue())
			Expect(center).To(Equal(obstacles.Cell{X: 3}))
			expectMirrors(sync, g, center, cfg.Radius)
			Expect(sync.HasCollider(obstacles.Cell{X: -2, Y: -1, Z: 0})).To(BeFalse())
		})
	})

	Context("with a wide deadband", func() {
		BeforeEach(func() {
			cfg.Cadence = 1
			cfg.Deadband = 2
		})

		It("still rescans fully after two cells of drift", func() {
			sync.Update(g, 0.5, 0.5, 0.5)
			sync.Update(g, 2.5, 0.5, 0.5)

			Expect(sync.Stats().FullScans).To(Equal(2))
			Expect(sync.Stats().IncrementalScans).To(BeZero())
			Expect(sync.HasCollider(obstacles.Cell{X: 3, Y: -1, Z: 0})).To(BeTrue())
			expectMirrors(sync, g, obstacles.Cell{X: 2}, cfg.Radius)
		})
	})

	It("skips cells whose collider cannot be created", func() {
		fake.Fail("create_box", errors.New("pool exhausted"))
		Expect(func() { sync.Update(g, 0, 0, 0) }).NotTo(Panic())
		Expect(sync.ActiveColliders()).To(BeZero())
		Expect(sync.Stats().CreateFailures).To(Equal(25))

		fake.Fail("create_box", nil)
		sync.ForceUpdate(g, 0, 0, 0)
		expectMirrors(sync, g, obstacles.Cell{}, cfg.Radius)
	})

	It("drops colliders whose registration fails", func() {
		fake.FailCall("register_static_geom", 1, errors.New("space full"))
		sync.Update(g, 0, 0, 0)
		Expect(sync.ActiveColliders()).To(Equal(24))
		Expect(fake.Geoms).To(HaveLen(24))
	})

	It("treats collision volume as the only solidity signal", func() {
		w := voxel.NewWorld(1, voxel.Flat)
		w.SetBlock(1, 0, 0, voxel.Glass)
		w.SetBlock(-1, 0, 0, voxel.Foliage)
		sync.Update(w, 0.5, 0.5, 0.5)

		Expect(sync.HasCollider(obstacles.Cell{X: 1})).To(BeTrue())
		Expect(sync.HasCollider(obstacles.Cell{X: -1})).To(BeFalse())
		expectMirrors(sync, w, obstacles.Cell{}, cfg.Radius)
	})

	It("destroys everything on cleanup and starts over", func() {
		sync.Update(g, 0, 0, 0)
		Expect(sync.ActiveColliders()).NotTo(BeZero())

		sync.Cleanup()
		Expect(sync.ActiveColliders()).To(BeZero())
		Expect(fake.Geoms).To(BeEmpty())

		sync.Update(g, 0, 0, 0)
		Expect(sync.Stats().FullScans).To(Equal(2))
	})

	Context("without a physics engine", func() {
		BeforeEach(func() {
			phys = engine.NewBinding(engine.DefaultWorldParams(), engine.WithDiscoverer(enginetest.Unavailable))
		})

		It("does nothing", func() {
			sync.Update(g, 0, 0, 0)
			Expect(sync.Stats()).To(Equal(obstacles.Stats{}))
			Expect(sync.ActiveColliders()).To(BeZero())
		})
	})
})
