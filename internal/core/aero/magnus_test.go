package aero

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestMagnusForce_ZeroInputsGiveExactZero(t *testing.T) {
	v := mgl64.Vec3{0, 16, 27.7}
	w := mgl64.Vec3{-5, 0, 0}

	require.Equal(t, mgl64.Vec3{}, MagnusForce(mgl64.Vec3{}, v, 0.5, 0.2, 1.225))
	require.Equal(t, mgl64.Vec3{}, MagnusForce(w, mgl64.Vec3{}, 0.5, 0.2, 1.225))
	require.Equal(t, mgl64.Vec3{}, MagnusForce(mgl64.Vec3{}, mgl64.Vec3{}, 0.5, 0.2, 1.225))
}

func TestMagnusForce_PerpendicularToVelocity(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	randVec := func() mgl64.Vec3 {
		return mgl64.Vec3{rng.Float64()*40 - 20, rng.Float64()*40 - 20, rng.Float64()*40 - 20}
	}

	for i := 0; i < 200; i++ {
		v, w := randVec(), randVec()
		f := MagnusForce(w, v, 0.5, 0.2, 1.225)
		require.InDelta(t, 0, f.Dot(v), 1e-9*(1+f.Len()*v.Len()))
	}
}

func TestMagnusForce_BackspinLiftsTheDefaultSwing(t *testing.T) {
	f := MagnusForce(mgl64.Vec3{-5, 0, 0}, mgl64.Vec3{0, 16, 27.7128}, 0.5, 0.2, 1.225)

	k := 0.2 * 1.225 * 0.125
	require.InDelta(t, 0, f.X(), 1e-12)
	require.InDelta(t, 5*27.7128*k, f.Y(), 1e-9)
	require.InDelta(t, -5*16*k, f.Z(), 1e-9)
	require.Greater(t, f.Y(), 0.0)
}

func TestModel_WindIsInertUnlessEnabled(t *testing.T) {
	v := mgl64.Vec3{0, 0, 10}
	w := mgl64.Vec3{0, 3, 0}
	wind := mgl64.Vec3{0, 0, 10}

	off := NewModel(DefaultConfig(), 0.5)
	require.False(t, off.WindEnabled())
	require.Equal(t, MagnusForce(w, v, 0.5, 0.2, 1.225), off.Force(v, w, wind))

	cfg := DefaultConfig()
	cfg.WindEnabled = true
	on := NewModel(cfg, 0.5)
	// a tailwind matching ball speed leaves no relative airflow
	require.Equal(t, mgl64.Vec3{}, on.Force(v, w, wind))
}

func TestWind(t *testing.T) {
	v := Wind(4, mgl64.Vec3{0, 0, 2})
	require.InDelta(t, 4, v.Z(), 1e-12)
	require.Zero(t, v.X())

	v = Wind(5, mgl64.Vec3{3, 0, 4})
	require.InDelta(t, 3, v.X(), 1e-12)
	require.InDelta(t, 4, v.Z(), 1e-12)

	require.Equal(t, mgl64.Vec3{}, Wind(4, mgl64.Vec3{}))
	require.Equal(t, mgl64.Vec3{}, Wind(4, mgl64.Vec3{math.NaN(), 0, 1}))
	require.Equal(t, mgl64.Vec3{}, Wind(4, mgl64.Vec3{math.Inf(1), 0, 0}))
}
