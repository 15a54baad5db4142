package robot

// KinematicGains drive the fallback integrator.
type KinematicGains struct {
	Kp              float64
	Kd              float64
	MaxAcceleration float64
	// MaxVelocity applies to joints that declare no velocity limit.
	MaxVelocity float64
}

// PhysicsGains drive engine-actuated joints.
type PhysicsGains struct {
	Kp float64
	Kd float64
	// MaxEffort applies to joints that declare no effort limit.
	MaxEffort float64
}

type Config struct {
	Kinematic KinematicGains
	Physics   PhysicsGains
	SubSteps  int
	// UnitScale converts description lengths into engine lengths.
	UnitScale float64
	// Density is used for links without a declared mass.
	Density     float64
	SpawnMargin float64
	// AllowWorldAttachment keeps joints whose parent or child has no body,
	// welding them to the static world instead of skipping them.
	AllowWorldAttachment bool
}

func DefaultConfig() Config {
	return Config{
		Kinematic: KinematicGains{
			Kp:              60,
			Kd:              12,
			MaxAcceleration: 80,
			MaxVelocity:     4,
		},
		Physics: PhysicsGains{
			Kp:        40,
			Kd:        4,
			MaxEffort: 25,
		},
		SubSteps:    4,
		UnitScale:   1,
		Density:     1000,
		SpawnMargin: 0.02,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SubSteps <= 0 {
		c.SubSteps = 1
	}
	if c.UnitScale <= 0 {
		c.UnitScale = d.UnitScale
	}
	if c.Density <= 0 {
		c.Density = d.Density
	}
	if c.Kinematic.MaxVelocity <= 0 {
		c.Kinematic.MaxVelocity = d.Kinematic.MaxVelocity
	}
	if c.Physics.MaxEffort <= 0 {
		c.Physics.MaxEffort = d.Physics.MaxEffort
	}
	return c
}
