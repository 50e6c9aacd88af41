// Package launch converts swing parameters into the initial impulse and spin
// applied to the ball.
package launch

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Parameters describe one swing. Angles are in degrees, spins in rad/s.
type Parameters struct {
	Speed          float64 `json:"speed" yaml:"speed" toml:"speed"`
	LaunchAngleDeg float64 `json:"launchAngleDeg" yaml:"launch_angle_deg" toml:"launch_angle_deg"`
	DirectionDeg   float64 `json:"directionDeg" yaml:"direction_deg" toml:"direction_deg"`
	Backspin       float64 `json:"backspin" yaml:"backspin" toml:"backspin"`
	Sidespin       float64 `json:"sidespin" yaml:"sidespin" toml:"sidespin"`
}

// Finite reports whether every parameter is a finite number.
func (p Parameters) Finite() bool {
	for _, v := range [...]float64{p.Speed, p.LaunchAngleDeg, p.DirectionDeg, p.Backspin, p.Sidespin} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Overrides replaces individual fields of a default Parameters value.
type Overrides struct {
	Speed          *float64 `json:"speed,omitempty"`
	LaunchAngleDeg *float64 `json:"launchAngleDeg,omitempty"`
	DirectionDeg   *float64 `json:"directionDeg,omitempty"`
	Backspin       *float64 `json:"backspin,omitempty"`
	Sidespin       *float64 `json:"sidespin,omitempty"`
}

// Apply returns base with every non-nil override applied. A nil receiver returns base.
func (o *Overrides) Apply(base Parameters) Parameters {
	if o == nil {
		return base
	}
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&base.Speed, o.Speed)
	set(&base.LaunchAngleDeg, o.LaunchAngleDeg)
	set(&base.DirectionDeg, o.DirectionDeg)
	set(&base.Backspin, o.Backspin)
	set(&base.Sidespin, o.Sidespin)
	return base
}

// Result is what a swing does to the ball: an impulse applied at its centre and
// the angular velocity it leaves with.
type Result struct {
	Impulse         mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Compute is pure and deterministic. The forward (z) component follows the
// launch angle rather than the direction; the angular velocity is an assignment,
// not an increment.
func Compute(p Parameters) Result {
	angle := mgl64.DegToRad(p.LaunchAngleDeg)
	direction := mgl64.DegToRad(p.DirectionDeg)
	return Result{
		Impulse: mgl64.Vec3{
			p.Speed * math.Cos(direction),
			p.Speed * math.Sin(angle),
			p.Speed * math.Cos(angle),
		},
		AngularVelocity: mgl64.Vec3{p.Backspin, p.Sidespin, 0},
	}
}
