package aero

import "github.com/go-gl/mathgl/mgl64"

// Config holds the lift coefficients and the wind switch.
type Config struct {
	LiftCoefficient float64
	AirDensity      float64
	// WindEnabled makes Force use air-relative velocity. Off by default.
	WindEnabled bool
}

func DefaultConfig() Config {
	return Config{
		LiftCoefficient: 0.2,
		AirDensity:      1.225,
	}
}

// Model binds the coefficients for a single ball.
type Model struct {
	cfg    Config
	radius float64
}

// NewModel binds cfg to a ball of the given radius.
func NewModel(cfg Config, radius float64) Model {
	return Model{cfg: cfg, radius: radius}
}

func (m Model) WindEnabled() bool {
	return m.cfg.WindEnabled
}

// Force computes the Magnus force for one step. wind is ignored unless enabled.
func (m Model) Force(linearVelocity, angularVelocity, wind mgl64.Vec3) mgl64.Vec3 {
	v := linearVelocity
	if m.cfg.WindEnabled {
		v = RelativeVelocity(linearVelocity, wind)
	}
	return MagnusForce(angularVelocity, v, m.radius, m.cfg.LiftCoefficient, m.cfg.AirDensity)
}
