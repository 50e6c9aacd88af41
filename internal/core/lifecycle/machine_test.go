package lifecycle

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/hole"
	"github.com/zeusync/fairway/internal/core/launch"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems/physics"
)

const dt = 1.0 / 60.0

var start = mgl64.Vec3{0, 0.5, -8}

// scriptedAdapter reports a NaN position once poisoned, and answers IsSettled
// from settled when it is set.
type scriptedAdapter struct {
	*physics.World
	poison  atomic.Bool
	settled func() bool
}

func (p *scriptedAdapter) State(id physics.BodyID) (physics.BodyState, error) {
	st, err := p.World.State(id)
	if p.poison.Load() {
		st.Position[0] = math.NaN()
	}
	return st, err
}

func (p *scriptedAdapter) IsSettled(id physics.BodyID, linearThreshold, angularThreshold float64) (bool, error) {
	if p.settled != nil {
		return p.settled(), nil
	}
	return p.World.IsSettled(id, linearThreshold, angularThreshold)
}

type harness struct {
	t       *testing.T
	adapter *scriptedAdapter
	ball    physics.BodyID
	sensor  *hole.Sensor
	store   *state.Store
	machine *Machine
	events  []string
	tick    uint64
}

func newHarness(t *testing.T, withGround bool) *harness {
	t.Helper()
	world := physics.NewWorld(physics.DefaultConfig(), log.NewNop())
	if withGround {
		require.NoError(t, world.AddStaticBox(physics.BoxSpec{
			Center:            mgl64.Vec3{0, -0.5, 0},
			HalfExtents:       mgl64.Vec3{20, 0.5, 100},
			Restitution:       0.4,
			Friction:          0.6,
			RollingResistance: 0.3,
		}))
	}
	adapter := &scriptedAdapter{World: world}
	ball, err := adapter.AddSphere(physics.SphereSpec{
		Position: start, Radius: 0.5, Mass: 1, Restitution: 0.4, Friction: 0.6,
		LinearDamping: 0.1, AngularDamping: 0.1,
	})
	require.NoError(t, err)

	sensor, err := hole.NewSensor(adapter, physics.SensorSpec{Name: "cup", Center: mgl64.Vec3{0, 0, 80}, Radius: 0.6, Height: 1}, ball, log.NewNop())
	require.NoError(t, err)

	events := bus.New()
	store := state.New(events, log.NewNop(), state.Initial{})
	h := &harness{t: t, adapter: adapter, ball: ball, sensor: sensor, store: store}
	h.machine = New(Deps{
		Adapter:     adapter,
		Ball:        ball,
		Sensor:      sensor,
		Scorekeeper: hole.NewScorekeeper(store, log.NewNop()),
		Store:       store,
		Events:      events,
		Log:         log.NewNop(),
	}, Settings{
		Start:            start,
		LinearThreshold:  0.05,
		AngularThreshold: 0.05,
		SettleWindow:     500 * time.Millisecond,
		KillPlaneY:       -20,
	})
	_, err = events.SubscribeTopic(Topic, bus.AnyType, func(e bus.Event) error {
		h.events = append(h.events, e.Type())
		return nil
	})
	require.NoError(t, err)
	return h
}

// step runs one tick in the same order as the session.
func (h *harness) step() {
	h.tick++
	h.machine.Advance(h.tick)
	h.adapter.Step(dt)
	h.machine.Evaluate(h.tick, dt)
}

func (h *harness) swing(p launch.Parameters) bool {
	h.tick++
	ok := h.machine.Swing(p, h.tick)
	h.adapter.Step(dt)
	h.machine.Evaluate(h.tick, dt)
	return ok
}

var chip = launch.Parameters{Speed: 4, LaunchAngleDeg: 10, DirectionDeg: 90}

func TestMachine_SwingFromIdle(t *testing.T) {
	h := newHarness(t, true)
	require.Equal(t, Idle, h.machine.State())

	h.tick++
	require.True(t, h.machine.Swing(launch.Parameters{Speed: 32, LaunchAngleDeg: 30, DirectionDeg: 90, Backspin: -5}, h.tick))
	require.Equal(t, Launched, h.machine.State())
	require.Equal(t, 1, h.store.Score())
	require.True(t, h.store.BallMoving())
	require.Equal(t, "launched", h.store.Phase())

	st, err := h.adapter.State(h.ball)
	require.NoError(t, err)
	require.InDelta(t, 16, st.LinearVelocity.Y(), 1e-9)
	require.InDelta(t, 27.7128, st.LinearVelocity.Z(), 1e-4)
	require.Equal(t, mgl64.Vec3{-5, 0, 0}, st.AngularVelocity)
	require.Equal(t, []string{EventSwingAccepted}, h.events)
}

func TestMachine_RejectsSwingWhileMoving(t *testing.T) {
	h := newHarness(t, true)

	require.True(t, h.swing(chip))
	require.False(t, h.machine.Swing(chip, h.tick))
	require.Equal(t, Launched, h.machine.State())

	h.step()
	require.Equal(t, InFlight, h.machine.State())
	before, _ := h.adapter.State(h.ball)
	require.False(t, h.machine.Swing(chip, h.tick))
	after, _ := h.adapter.State(h.ball)

	require.Equal(t, before.LinearVelocity, after.LinearVelocity)
	require.Equal(t, 1, h.store.Score())
	require.Contains(t, h.events, EventSwingRejected)
}

func TestMachine_SettlesAfterWindow(t *testing.T) {
	h := newHarness(t, true)
	require.True(t, h.swing(chip))

	for i := 0; i < 60*15 && h.machine.State() != Settled; i++ {
		h.step()
	}
	require.Equal(t, Settled, h.machine.State())
	require.False(t, h.store.BallMoving())
	require.Contains(t, h.events, EventSettled)

	// the next stroke is played from where the ball lies
	require.True(t, h.swing(chip))
	require.Equal(t, 2, h.store.Score())
}

func TestMachine_SettleWindowRestartsOnMotion(t *testing.T) {
	h := newHarness(t, true)
	require.True(t, h.swing(chip))

	// 29 still samples fall just short of the 500ms window before one moving sample
	samples := 0
	h.adapter.settled = func() bool {
		samples++
		return samples%30 != 0
	}
	for i := 0; i < 120; i++ {
		h.step()
		require.Equal(t, InFlight, h.machine.State(), "tick %d", h.tick)
	}
	require.True(t, h.store.BallMoving())
	require.NotContains(t, h.events, EventSettled)

	h.adapter.settled = func() bool { return true }
	steps := 0
	for h.machine.State() == InFlight && steps < 60 {
		h.step()
		steps++
	}
	require.Equal(t, Settled, h.machine.State())
	require.InDelta(t, 30, steps, 1)
	require.False(t, h.store.BallMoving())
	require.Contains(t, h.events, EventSettled)
}

func TestMachine_ResetAfterSettleReturnsToStart(t *testing.T) {
	h := newHarness(t, true)
	settle := func() {
		require.True(t, h.swing(chip))
		for i := 0; i < 60*15 && h.machine.State() != Settled; i++ {
			h.step()
		}
		require.Equal(t, Settled, h.machine.State())
	}

	settle()
	lie, _ := h.adapter.State(h.ball)
	require.Greater(t, lie.Position.Z(), start.Z())

	h.machine.Reset(false, h.tick)
	require.Equal(t, Idle, h.machine.State())
	require.Equal(t, "idle", h.store.Phase())
	st, _ := h.adapter.State(h.ball)
	require.Equal(t, start, st.Position)
	require.Equal(t, mgl64.Vec3{}, st.LinearVelocity)
	require.Equal(t, 1, h.store.Score())
	require.False(t, h.store.BallMoving())
	require.Equal(t, EventReset, h.events[len(h.events)-1])

	settle()
	require.Equal(t, 2, h.store.Score())

	h.machine.Reset(true, h.tick)
	require.Equal(t, Idle, h.machine.State())
	require.Zero(t, h.store.Score())
	st, _ = h.adapter.State(h.ball)
	require.Equal(t, start, st.Position)
}

func TestMachine_NonFiniteStateSettlesAtLastGoodPosition(t *testing.T) {
	h := newHarness(t, true)
	require.True(t, h.swing(chip))
	h.step()
	h.step()
	good, _ := h.adapter.World.State(h.ball)

	h.adapter.poison.Store(true)
	h.step()

	require.Equal(t, Settled, h.machine.State())
	require.Contains(t, h.events, EventAnomaly)
	require.False(t, h.store.BallMoving())

	h.adapter.poison.Store(false)
	st, _ := h.adapter.State(h.ball)
	require.Equal(t, mgl64.Vec3{}, st.LinearVelocity)
	require.InDelta(t, good.Position.Z(), st.Position.Z(), 0.2)
}

func TestMachine_LostBallReturnsToStrokeOrigin(t *testing.T) {
	h := newHarness(t, false)
	require.True(t, h.swing(chip))

	for i := 0; i < 60*10 && h.machine.State() != Settled; i++ {
		h.step()
	}
	require.Equal(t, Settled, h.machine.State())
	st, _ := h.adapter.State(h.ball)
	require.Equal(t, start, st.Position)
	require.Contains(t, h.events, EventAnomaly)
}

func TestMachine_HoledFreezesUntilReset(t *testing.T) {
	h := newHarness(t, true)
	require.True(t, h.swing(chip))

	h.sensor.HandleEvent(physics.SensorEvent{Body: h.ball})
	h.sensor.HandleEvent(physics.SensorEvent{Body: h.ball})
	h.step()

	require.Equal(t, Holed, h.machine.State())
	require.True(t, h.store.BallInHole())
	require.False(t, h.machine.Swing(chip, h.tick))
	require.Equal(t, 1, h.store.Score())

	h.machine.Reset(false, h.tick)
	require.Equal(t, Idle, h.machine.State())
	require.False(t, h.store.BallInHole())
	require.Equal(t, 1, h.store.Score())

	h.machine.Reset(true, h.tick)
	require.Zero(t, h.store.Score())
}

func TestMachine_ResetMidFlight(t *testing.T) {
	h := newHarness(t, true)
	require.True(t, h.swing(launch.Parameters{Speed: 32, LaunchAngleDeg: 30, DirectionDeg: 90, Backspin: -5}))
	h.step()
	require.Equal(t, InFlight, h.machine.State())

	h.machine.Reset(false, h.tick)
	require.Equal(t, Idle, h.machine.State())

	st, _ := h.adapter.State(h.ball)
	require.Equal(t, start, st.Position)
	require.Equal(t, mgl64.Vec3{}, st.LinearVelocity)
	require.Equal(t, mgl64.Vec3{}, st.AngularVelocity)
	require.Equal(t, 1, h.store.Score())
	require.Contains(t, h.events, EventReset)
}

func TestMachine_CupEntryWhileIdleIsDiscarded(t *testing.T) {
	h := newHarness(t, true)

	h.sensor.HandleEvent(physics.SensorEvent{Body: h.ball})
	h.step()

	require.Equal(t, Idle, h.machine.State())
	require.False(t, h.store.BallInHole())
	require.True(t, h.sensor.Armed())
}

func TestMachine_NonFiniteSwingRejected(t *testing.T) {
	h := newHarness(t, true)
	h.tick++
	require.False(t, h.machine.Swing(launch.Parameters{Speed: math.NaN()}, h.tick))
	require.Equal(t, Idle, h.machine.State())
	require.Zero(t, h.store.Score())
}

func TestState_String(t *testing.T) {
	require.Equal(t, "inflight", InFlight.String())
	text, err := Holed.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "holed", string(text))
	require.True(t, Settled.AcceptsSwing())
	require.False(t, Holed.AcceptsSwing())
}
