// Package lifecycle owns the ball state machine: it decides when a swing is
// applied, when the ball is in flight, settled or holed, and how a reset or a
// physics anomaly puts it back on a known footing.
package lifecycle

import (
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/hole"
	"github.com/zeusync/fairway/internal/core/launch"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems/physics"
)

// Settings configure settle detection and the start position.
type Settings struct {
	Start            mgl64.Vec3
	LinearThreshold  float64
	AngularThreshold float64
	// SettleWindow is how long both speeds must stay under threshold.
	SettleWindow time.Duration
	// KillPlaneY is the height under which the ball is considered lost.
	KillPlaneY float64
}

type Deps struct {
	Adapter     physics.Adapter
	Ball        physics.BodyID
	Sensor      *hole.Sensor
	Scorekeeper *hole.Scorekeeper
	Store       *state.Store
	Events      bus.EventBus
	Log         log.Log
}

// Machine is driven from the tick goroutine. State may be read from anywhere.
type Machine struct {
	Deps
	settings Settings

	state      atomic.Uint32
	launchTick uint64
	idle       time.Duration

	lastGood     mgl64.Vec3
	strokeOrigin mgl64.Vec3
}

func New(deps Deps, settings Settings) *Machine {
	m := &Machine{
		Deps:         deps,
		settings:     settings,
		lastGood:     settings.Start,
		strokeOrigin: settings.Start,
	}
	m.Log = deps.Log.Named("lifecycle")
	_ = deps.Events.CreateTopic(Topic)
	deps.Store.SetPhase(Idle.String())
	return m
}

func (m *Machine) State() State {
	return State(m.state.Load())
}

// Swing applies p if the current state accepts a swing. A rejected swing has no
// side effect besides a swing.rejected event.
func (m *Machine) Swing(p launch.Parameters, tick uint64) bool {
	current := m.State()
	if !current.AcceptsSwing() {
		m.Log.Debug("swing rejected", log.String("state", current.String()), log.Uint64("tick", tick))
		m.publish(EventSwingRejected, Transition{From: current, To: current, Tick: tick, Reason: "ball " + current.String()})
		return false
	}
	if !p.Finite() {
		m.Log.Warn("swing rejected: non-finite parameters", log.Any("params", p))
		m.publish(EventSwingRejected, Transition{From: current, To: current, Tick: tick, Reason: "non-finite parameters"})
		return false
	}

	origin, err := m.Adapter.State(m.Ball)
	if err != nil {
		m.Log.Error("swing aborted", log.Error(err))
		return false
	}

	res := launch.Compute(p)
	if err = m.Adapter.ApplyImpulse(m.Ball, res.Impulse); err == nil {
		err = m.Adapter.SetAngularVelocity(m.Ball, res.AngularVelocity)
	}
	if err != nil {
		m.Log.Error("swing aborted", log.Error(err))
		return false
	}

	strokes, _ := m.Scorekeeper.RecordStroke()
	m.strokeOrigin = origin.Position
	m.lastGood = origin.Position
	m.launchTick = tick
	m.idle = 0
	m.Store.SetBallMoving(true)
	m.transition(current, Launched, tick, "swing")
	m.Log.Info("swing",
		log.Float64("speed", p.Speed),
		log.Float64("launch_angle", p.LaunchAngleDeg),
		log.Float64("direction", p.DirectionDeg),
		log.Vector("impulse", res.Impulse),
		log.Vector("spin", res.AngularVelocity),
		log.Int("stroke", strokes),
	)
	m.publish(EventSwingAccepted, Transition{From: current, To: Launched, Tick: tick, Score: strokes})
	return true
}

// Advance promotes Launched to InFlight on any tick after the launch tick.
func (m *Machine) Advance(tick uint64) {
	if m.State() == Launched && tick > m.launchTick {
		m.transition(Launched, InFlight, tick, "")
		m.publish(EventInFlight, Transition{From: Launched, To: InFlight, Tick: tick, Score: m.Store.Score()})
	}
}

// Evaluate runs after the physics step. It applies a queued cup entry first,
// then guards against non-finite or lost balls, then checks for settling.
func (m *Machine) Evaluate(tick uint64, dt float64) {
	current := m.State()

	if _, ok := m.Sensor.Take(); ok {
		switch current {
		case Launched, InFlight, Settled:
			m.Scorekeeper.Hole()
			m.Store.SetBallMoving(false)
			m.transition(current, Holed, tick, "cup")
			m.publish(EventHoled, Transition{From: current, To: Holed, Tick: tick, Score: m.Store.Score()})
			return
		case Idle:
			m.Log.Debug("cup entry ignored while idle")
			m.Sensor.Rearm()
		}
	}

	if !current.Moving() {
		return
	}

	st, err := m.Adapter.State(m.Ball)
	if err != nil || !st.Finite() {
		m.recover(current, tick, m.lastGood, "non-finite ball state")
		return
	}
	if st.Position.Y() < m.settings.KillPlaneY {
		m.recover(current, tick, m.strokeOrigin, "out of bounds")
		return
	}
	m.lastGood = st.Position

	if current != InFlight {
		return
	}

	still, err := m.Adapter.IsSettled(m.Ball, m.settings.LinearThreshold, m.settings.AngularThreshold)
	if err != nil || !still {
		m.idle = 0
		return
	}
	m.idle += time.Duration(dt * float64(time.Second))
	if m.idle < m.settings.SettleWindow {
		return
	}

	m.Store.SetBallMoving(false)
	m.transition(InFlight, Settled, tick, "at rest")
	m.publish(EventSettled, Transition{From: InFlight, To: Settled, Tick: tick, Score: m.Store.Score()})
}

// Reset puts the ball back at the start from any state. From Launched or
// InFlight this is an abrupt stop.
func (m *Machine) Reset(zeroScore bool, tick uint64) {
	current := m.State()
	if err := m.Adapter.Teleport(m.Ball, m.settings.Start); err != nil {
		m.Log.Error("reset teleport failed", log.Error(err))
	}
	m.Sensor.Rearm()
	m.Scorekeeper.Reset(zeroScore)
	m.Store.SetBallMoving(false)
	m.idle = 0
	m.lastGood = m.settings.Start
	m.strokeOrigin = m.settings.Start
	if current.Moving() {
		m.Log.Info("reset during flight", log.String("state", current.String()))
	}
	m.transition(current, Idle, tick, "reset")
	m.publish(EventReset, Transition{From: current, To: Idle, Tick: tick, Score: m.Store.Score()})
}

// recover parks the ball at pos and forces Settled.
func (m *Machine) recover(from State, tick uint64, pos mgl64.Vec3, reason string) {
	m.Log.Warn("ball anomaly", log.String("reason", reason), log.Vector("position", pos), log.Uint64("tick", tick))
	if err := m.Adapter.Teleport(m.Ball, pos); err != nil {
		m.Log.Error("anomaly teleport failed", log.Error(err))
	}
	m.idle = 0
	m.lastGood = pos
	m.Store.SetBallMoving(false)
	m.transition(from, Settled, tick, reason)
	m.publish(EventAnomaly, Transition{From: from, To: Settled, Tick: tick, Reason: reason, Score: m.Store.Score()})
}

func (m *Machine) transition(from, to State, tick uint64, reason string) {
	m.state.Store(uint32(to))
	m.Store.SetPhase(to.String())
	if from != to {
		m.Log.Info("state changed",
			log.String("from", from.String()),
			log.String("to", to.String()),
			log.Uint64("tick", tick),
			log.String("reason", reason),
		)
	}
}

func (m *Machine) publish(eventType string, t Transition) {
	if err := m.Events.PublishToTopic(Topic, bus.NewEvent(eventType, "lifecycle", t)); err != nil {
		m.Log.Warn("lifecycle subscriber failed", log.String("event", eventType), log.Error(err))
	}
}
