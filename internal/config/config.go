package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/robosim/internal/engine"
	"github.com/san-kum/robosim/internal/obstacles"
	"github.com/san-kum/robosim/internal/robot"
	"github.com/san-kum/robosim/internal/voxel"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt    = 0.01
	DefaultTicks = 1000
	DefaultSeed  = 1
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Physics   PhysicsConfig  `yaml:"physics"`
	Robot     RobotConfig    `yaml:"robot"`
	Obstacles ObstacleConfig `yaml:"obstacles"`
	Sim       SimConfig      `yaml:"sim"`
	Log       LogConfig      `yaml:"log"`
}

type PhysicsConfig struct {
	Gravity     [3]float64        `yaml:"gravity"`
	ERP         float64           `yaml:"erp"`
	CFM         float64           `yaml:"cfm"`
	AutoDisable AutoDisableConfig `yaml:"auto_disable"`
	Contact     ContactConfig     `yaml:"contact"`
}

type AutoDisableConfig struct {
	Enabled          bool    `yaml:"enabled"`
	LinearThreshold  float64 `yaml:"linear_threshold"`
	AngularThreshold float64 `yaml:"angular_threshold"`
	Steps            int     `yaml:"steps"`
}

type ContactConfig struct {
	Mu               float64 `yaml:"mu"`
	Bounce           float64 `yaml:"bounce"`
	BounceVelocity   float64 `yaml:"bounce_velocity"`
	SoftERP          float64 `yaml:"soft_erp"`
	SoftCFM          float64 `yaml:"soft_cfm"`
	MaxContacts      int     `yaml:"max_contacts"`
	MaxCorrectingVel float64 `yaml:"max_correcting_vel"`
	SurfaceLayer     float64 `yaml:"surface_layer"`
}

type RobotConfig struct {
	Description          string         `yaml:"description"`
	Kinematic            KinematicGains `yaml:"kinematic"`
	Physics              PhysicsGains   `yaml:"physics"`
	SubSteps             int            `yaml:"sub_steps"`
	UnitScale            float64        `yaml:"unit_scale"`
	Density              float64        `yaml:"density"`
	SpawnMargin          float64        `yaml:"spawn_margin"`
	AllowWorldAttachment bool           `yaml:"allow_world_attachment"`
}

type KinematicGains struct {
	Kp              float64 `yaml:"kp"`
	Kd              float64 `yaml:"kd"`
	MaxAcceleration float64 `yaml:"max_acceleration"`
	MaxVelocity     float64 `yaml:"max_velocity"`
}

type PhysicsGains struct {
	Kp        float64 `yaml:"kp"`
	Kd        float64 `yaml:"kd"`
	MaxEffort float64 `yaml:"max_effort"`
}

type ObstacleConfig struct {
	Radius   int     `yaml:"radius"`
	Cadence  int     `yaml:"cadence"`
	Deadband int     `yaml:"deadband"`
	CellSize float64 `yaml:"cell_size"`
}

type SimConfig struct {
	Dt      float64    `yaml:"dt"`
	Ticks   int        `yaml:"ticks"`
	Seed    int64      `yaml:"seed"`
	Terrain string     `yaml:"terrain"`
	Spawn   [3]float64 `yaml:"spawn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	wp := engine.DefaultWorldParams()
	rc := robot.DefaultConfig()
	oc := obstacles.DefaultConfig()
	return &Config{
		Physics: PhysicsConfig{
			Gravity: wp.Gravity,
			ERP:     wp.ERP,
			CFM:     wp.CFM,
			AutoDisable: AutoDisableConfig{
				Enabled:          wp.AutoDisable.Enabled,
				LinearThreshold:  wp.AutoDisable.LinearThreshold,
				AngularThreshold: wp.AutoDisable.AngularThreshold,
				Steps:            wp.AutoDisable.Steps,
			},
			Contact: ContactConfig(wp.Contact),
		},
		Robot: RobotConfig{
			Kinematic:   KinematicGains(rc.Kinematic),
			Physics:     PhysicsGains(rc.Physics),
			SubSteps:    rc.SubSteps,
			UnitScale:   rc.UnitScale,
			Density:     rc.Density,
			SpawnMargin: rc.SpawnMargin,
		},
		Obstacles: ObstacleConfig(oc),
		Sim: SimConfig{
			Dt:      DefaultDt,
			Ticks:   DefaultTicks,
			Seed:    DefaultSeed,
			Terrain: voxel.Flat.String(),
			Spawn:   [3]float64{0, 4, 0},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	switch {
	case !(c.Sim.Dt > 0):
		return fmt.Errorf("%w: sim.dt must be positive", ErrInvalid)
	case c.Sim.Ticks < 0:
		return fmt.Errorf("%w: sim.ticks must not be negative", ErrInvalid)
	case c.Robot.SubSteps < 1:
		return fmt.Errorf("%w: robot.sub_steps must be at least 1", ErrInvalid)
	case !(c.Robot.UnitScale > 0):
		return fmt.Errorf("%w: robot.unit_scale must be positive", ErrInvalid)
	case c.Obstacles.Radius < 0:
		return fmt.Errorf("%w: obstacles.radius must not be negative", ErrInvalid)
	case c.Obstacles.Cadence < 1:
		return fmt.Errorf("%w: obstacles.cadence must be at least 1", ErrInvalid)
	case c.Obstacles.Deadband < 0 || c.Obstacles.Deadband > obstacles.MaxDeadband:
		return fmt.Errorf("%w: obstacles.deadband must be between 0 and %d", ErrInvalid, obstacles.MaxDeadband)
	case !(c.Obstacles.CellSize > 0):
		return fmt.Errorf("%w: obstacles.cell_size must be positive", ErrInvalid)
	}
	if _, err := voxel.ParseTerrain(c.Sim.Terrain); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (c *Config) WorldParams() engine.WorldParams {
	ad := c.Physics.AutoDisable
	return engine.WorldParams{
		Gravity: mgl64.Vec3(c.Physics.Gravity),
		ERP:     c.Physics.ERP,
		CFM:     c.Physics.CFM,
		AutoDisable: engine.AutoDisable{
			Enabled:          ad.Enabled,
			LinearThreshold:  ad.LinearThreshold,
			AngularThreshold: ad.AngularThreshold,
			Steps:            ad.Steps,
		},
		Contact: engine.ContactParams(c.Physics.Contact),
	}
}

func (c *Config) RobotConfig() robot.Config {
	r := c.Robot
	return robot.Config{
		Kinematic:            robot.KinematicGains(r.Kinematic),
		Physics:              robot.PhysicsGains(r.Physics),
		SubSteps:             r.SubSteps,
		UnitScale:            r.UnitScale,
		Density:              r.Density,
		SpawnMargin:          r.SpawnMargin,
		AllowWorldAttachment: r.AllowWorldAttachment,
	}
}

func (c *Config) ObstacleConfig() obstacles.Config {
	return obstacles.Config(c.Obstacles)
}

func (c *Config) Terrain() voxel.Terrain {
	t, _ := voxel.ParseTerrain(c.Sim.Terrain)
	return t
}

func (c *Config) Spawn() mgl64.Vec3 { return mgl64.Vec3(c.Sim.Spawn) }
