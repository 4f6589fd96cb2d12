package config

import (
	"fmt"
	"os"
	"time"

	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/servo"
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	DefaultRate     = simdevice.DefaultRate
	DefaultDuration = 5.0
	DefaultRadius   = 0.05
)

type Config struct {
	Model      string       `yaml:"model"`
	Rate       float64      `yaml:"rate"`
	Duration   float64      `yaml:"duration"`
	Integrator string       `yaml:"integrator"`
	LogLevel   string       `yaml:"log_level"`
	Sphere     SphereConfig `yaml:"sphere"`
	Servo      ServoConfig  `yaml:"servo"`
	Device     DeviceConfig `yaml:"device"`
}

type SphereConfig struct {
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
}

type ServoConfig struct {
	StopTimeout  time.Duration `yaml:"stop_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
	// Stiffness overrides the model's default gain when non-zero.
	Stiffness      float64 `yaml:"stiffness"`
	ToCenterScaled bool    `yaml:"to_center_scaled"`
}

// DeviceConfig parameterizes the simulated device.
type DeviceConfig struct {
	Mass          float64    `yaml:"mass"`
	Damping       float64    `yaml:"damping"`
	HandStiffness float64    `yaml:"hand_stiffness"`
	MaxForce      float64    `yaml:"max_force"`
	MaxCallbacks  int        `yaml:"max_callbacks"`
	Hand          [3]float64 `yaml:"hand"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:      "sphere",
		Rate:       DefaultRate,
		Duration:   DefaultDuration,
		Integrator: "rk4",
		LogLevel:   "info",
		Sphere:     SphereConfig{Radius: DefaultRadius},
		Servo: ServoConfig{
			StopTimeout:  servo.DefaultStopTimeout,
			PollInterval: servo.DefaultPollInterval,
		},
		Device: DeviceConfig{
			Mass:          simdevice.DefaultMass,
			Damping:       simdevice.DefaultDamping,
			HandStiffness: simdevice.DefaultHandStiffness,
			MaxCallbacks:  simdevice.DefaultMaxCallbacks,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
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

func (c *Config) Validate() error {
	if _, err := force.ParseKind(c.Model); err != nil {
		return err
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %g", c.Rate)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %g", c.Duration)
	}
	if c.Device.Mass <= 0 {
		return fmt.Errorf("device mass must be positive, got %g", c.Device.Mass)
	}
	if c.Servo.Stiffness < 0 {
		return fmt.Errorf("stiffness must not be negative, got %g", c.Servo.Stiffness)
	}
	switch c.Integrator {
	case "", "rk4", "euler":
	default:
		return fmt.Errorf("unknown integrator: %s", c.Integrator)
	}
	return nil
}

func (c *Config) ForceModel() (force.Model, error) {
	kind, err := force.ParseKind(c.Model)
	if err != nil {
		return force.Model{}, err
	}
	m := force.New(kind)
	if c.Servo.Stiffness > 0 {
		m.Stiffness = c.Servo.Stiffness
	}
	m.ScaleToCenter = c.Servo.ToCenterScaled
	return m, nil
}

func (c *Config) GetSphere() force.Sphere {
	return force.Sphere{Center: vec(c.Sphere.Center), Radius: c.Sphere.Radius}
}

func (c *Config) ServoOptions() servo.Options {
	return servo.Options{
		StopTimeout:  c.Servo.StopTimeout,
		PollInterval: c.Servo.PollInterval,
	}
}

// SimDevice returns the simulated device settings. The hand starts where
// the effector does.
func (c *Config) SimDevice() simdevice.Config {
	return simdevice.Config{
		Rate:          c.Rate,
		MaxCallbacks:  c.Device.MaxCallbacks,
		Mass:          c.Device.Mass,
		Damping:       c.Device.Damping,
		HandStiffness: c.Device.HandStiffness,
		MaxForce:      c.Device.MaxForce,
		Integrator:    c.Integrator,
		Start:         vec(c.Device.Hand),
	}
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
