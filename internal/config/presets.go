package config

import "sort"

type Preset struct {
	Description string
	apply       func(*Config)
}

var Presets = map[string]Preset{
	"default": {
		Description: "earth gravity, moderate gains",
		apply:       func(*Config) {},
	},
	"stiff": {
		Description: "high gains, hard contacts, more sub-steps",
		apply: func(c *Config) {
			c.Robot.Kinematic.Kp, c.Robot.Kinematic.Kd = 150, 24
			c.Robot.Kinematic.MaxAcceleration = 200
			c.Robot.Physics.Kp, c.Robot.Physics.Kd = 120, 10
			c.Robot.Physics.MaxEffort = 60
			c.Robot.SubSteps = 8
			c.Physics.ERP = 0.8
			c.Physics.Contact.SoftCFM = 1e-6
		},
	},
	"soft": {
		Description: "compliant joints and spongy contacts",
		apply: func(c *Config) {
			c.Robot.Kinematic.Kp, c.Robot.Kinematic.Kd = 20, 6
			c.Robot.Physics.Kp, c.Robot.Physics.Kd = 12, 2
			c.Physics.ERP = 0.1
			c.Physics.CFM = 1e-3
			c.Physics.Contact.SoftERP = 0.1
			c.Physics.Contact.SoftCFM = 1e-2
			c.Physics.Contact.Bounce = 0.2
		},
	},
	"lunar": {
		Description: "moon gravity, sleeping bodies",
		apply: func(c *Config) {
			c.Physics.Gravity = [3]float64{0, -1.62, 0}
			c.Physics.AutoDisable.Enabled = true
			c.Physics.Contact.Mu = 0.6
		},
	},
}

// GetPreset returns the default configuration with the named preset applied,
// or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	p.apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
