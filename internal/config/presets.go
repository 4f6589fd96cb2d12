package config

import "sort"

var Presets = map[string]map[string]*Config{
	"idle": {
		"watch": {
			Model: "idle", Rate: 1000, Duration: 10.0,
			Device: DeviceConfig{Hand: [3]float64{0.02, 0, 0.02}},
		},
	},
	"center": {
		"pull": {
			Model: "center", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Radius: 0.05},
			Device: DeviceConfig{Hand: [3]float64{0.03, 0, 0}},
		},
		"scaled": {
			Model: "center", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Radius: 0.05},
			Servo:  ServoConfig{Stiffness: 40, ToCenterScaled: true},
			Device: DeviceConfig{Hand: [3]float64{0.03, 0, 0}},
		},
	},
	"sphere": {
		"small": {
			Model: "sphere", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Radius: 0.02},
			Device: DeviceConfig{Hand: [3]float64{0.005, 0, 0}},
		},
		"large": {
			Model: "sphere", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Radius: 0.08},
			Device: DeviceConfig{Hand: [3]float64{0.01, 0.01, 0}},
		},
		"stiff": {
			Model: "sphere", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Radius: 0.05},
			Servo:  ServoConfig{Stiffness: 200},
			Device: DeviceConfig{Hand: [3]float64{0.01, 0, 0}, MaxForce: 3.3},
		},
	},
	"constrained": {
		"floor": {
			Model: "constrained", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Center: [3]float64{0, 0, -0.05}, Radius: 0.06},
			Device: DeviceConfig{Hand: [3]float64{0, 0, -0.02}},
		},
		"high": {
			Model: "constrained", Rate: 1000, Duration: 5.0,
			Sphere: SphereConfig{Center: [3]float64{0, 0, 0.05}, Radius: 0.02},
			Device: DeviceConfig{Hand: [3]float64{0, 0, 0.055}},
		},
	},
}

// GetPreset returns the preset merged over the defaults, or nil.
func GetPreset(model, preset string) *Config {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	p, ok := modelPresets[preset]
	if !ok {
		return nil
	}
	return p.over(DefaultConfig())
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// over copies the preset's non-zero fields onto base.
func (p *Config) over(base *Config) *Config {
	base.Model = p.Model
	if p.Rate > 0 {
		base.Rate = p.Rate
	}
	if p.Duration > 0 {
		base.Duration = p.Duration
	}
	base.Sphere = p.Sphere
	if p.Servo.Stiffness > 0 {
		base.Servo.Stiffness = p.Servo.Stiffness
	}
	base.Servo.ToCenterScaled = p.Servo.ToCenterScaled
	base.Device.Hand = p.Device.Hand
	if p.Device.MaxForce > 0 {
		base.Device.MaxForce = p.Device.MaxForce
	}
	return base
}
