// Package aero computes the aerodynamic forces on a spinning ball: Magnus lift
// and, when enabled, the airflow created by a steady wind.
package aero

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MagnusForce returns (ω × v) · Cl · ρ · r³. It is exactly the zero vector when
// either input has zero magnitude.
func MagnusForce(angularVelocity, linearVelocity mgl64.Vec3, radius, liftCoefficient, airDensity float64) mgl64.Vec3 {
	if angularVelocity.Len() == 0 || linearVelocity.Len() == 0 {
		return mgl64.Vec3{}
	}
	k := liftCoefficient * airDensity * radius * radius * radius
	return angularVelocity.Cross(linearVelocity).Mul(k)
}

// RelativeVelocity is the ball velocity as seen by the air mass.
func RelativeVelocity(linearVelocity, wind mgl64.Vec3) mgl64.Vec3 {
	return linearVelocity.Sub(wind)
}

// Wind scales direction to speed. A zero-length or non-finite direction yields
// no wind.
func Wind(speed float64, direction mgl64.Vec3) mgl64.Vec3 {
	l := direction.Len()
	if l == 0 || math.IsNaN(l) || math.IsInf(l, 0) {
		return mgl64.Vec3{}
	}
	return direction.Normalize().Mul(speed)
}
