package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

func FiniteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func clampVec(v, lo, hi mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{
		mgl64.Clamp(v[0], lo[0], hi[0]),
		mgl64.Clamp(v[1], lo[1], hi[1]),
		mgl64.Clamp(v[2], lo[2], hi[2]),
	}
}

// integrateRotation advances q by angular velocity w over dt.
func integrateRotation(q mgl64.Quat, w mgl64.Vec3, dt float64) mgl64.Quat {
	if w.Len() == 0 {
		return q
	}
	spin := mgl64.Quat{W: 0, V: w.Mul(0.5 * dt)}
	return q.Add(spin.Mul(q)).Normalize()
}

// dampingFactor converts a per-second damping ratio into a per-step scale.
func dampingFactor(damping, dt float64) float64 {
	if damping <= 0 {
		return 1
	}
	if damping >= 1 {
		return 0
	}
	return math.Pow(1-damping, dt)
}
