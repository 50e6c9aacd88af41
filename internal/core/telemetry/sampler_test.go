package telemetry

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems/physics"
)

type stubReader struct {
	st  physics.BodyState
	err error
}

func (r *stubReader) State(physics.BodyID) (physics.BodyState, error) { return r.st, r.err }

func (r *stubReader) IsSettled(physics.BodyID, float64, float64) (bool, error) { return true, nil }

func TestSampler_WritesReadouts(t *testing.T) {
	store := state.New(bus.New(), log.NewNop(), state.Initial{})
	reader := &stubReader{st: physics.BodyState{AngularVelocity: mgl64.Vec3{-5, 1.5, 0}}}
	s := NewSampler(reader, 1, store, 0, log.NewNop())
	require.Equal(t, 100*time.Millisecond, s.Interval())

	s.Sample()
	back, side := store.SpinReadouts()
	require.Equal(t, -5.0, back)
	require.Equal(t, 1.5, side)
}

func TestSampler_SkipsNonFiniteState(t *testing.T) {
	store := state.New(bus.New(), log.NewNop(), state.Initial{})
	reader := &stubReader{st: physics.BodyState{AngularVelocity: mgl64.Vec3{math.NaN(), 0, 0}}}
	s := NewSampler(reader, 1, store, time.Millisecond, log.NewNop())

	s.Sample()
	back, _ := store.SpinReadouts()
	require.Zero(t, back)
}

func TestSampler_RunUntilCancelled(t *testing.T) {
	store := state.New(bus.New(), log.NewNop(), state.Initial{})
	reader := &stubReader{st: physics.BodyState{AngularVelocity: mgl64.Vec3{2, 0, 0}}}
	s := NewSampler(reader, 1, store, 5*time.Millisecond, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		back, _ := store.SpinReadouts()
		return back == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop")
	}
}
