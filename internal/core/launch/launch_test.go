package launch

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"
)

func TestCompute_DefaultSwing(t *testing.T) {
	res := Compute(Parameters{Speed: 32, LaunchAngleDeg: 30, DirectionDeg: 90, Backspin: -5})

	require.InDelta(t, 0, res.Impulse.X(), 1e-9)
	require.InDelta(t, 16, res.Impulse.Y(), 1e-9)
	require.InDelta(t, 27.7128, res.Impulse.Z(), 1e-4)
	require.Equal(t, mgl64.Vec3{-5, 0, 0}, res.AngularVelocity)
}

func TestCompute_Deterministic(t *testing.T) {
	p := Parameters{Speed: 17.3, LaunchAngleDeg: 12.5, DirectionDeg: 44, Backspin: 3, Sidespin: -1.5}
	first := Compute(p)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Compute(p))
	}
}

func TestCompute_Table(t *testing.T) {
	cases := []struct {
		name string
		in   Parameters
		want mgl64.Vec3
	}{
		{"zero speed", Parameters{LaunchAngleDeg: 45, DirectionDeg: 10}, mgl64.Vec3{}},
		{"flat shot", Parameters{Speed: 10, DirectionDeg: 0}, mgl64.Vec3{10, 0, 10}},
		{"vertical", Parameters{Speed: 10, LaunchAngleDeg: 90, DirectionDeg: 90}, mgl64.Vec3{0, 10, 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Compute(tc.in).Impulse
			for i := range got {
				require.InDelta(t, tc.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestParameters_Finite(t *testing.T) {
	require.True(t, Parameters{Speed: 1}.Finite())
	require.False(t, Parameters{Speed: math.NaN()}.Finite())
	require.False(t, Parameters{Backspin: math.Inf(-1)}.Finite())
}

func TestOverrides_Apply(t *testing.T) {
	base := Parameters{Speed: 32, LaunchAngleDeg: 30, DirectionDeg: 90, Backspin: -5}

	var none *Overrides
	require.Equal(t, base, none.Apply(base))

	speed, side := 20.0, 2.0
	got := (&Overrides{Speed: &speed, Sidespin: &side}).Apply(base)
	require.Equal(t, Parameters{Speed: 20, LaunchAngleDeg: 30, DirectionDeg: 90, Backspin: -5, Sidespin: 2}, got)
}
