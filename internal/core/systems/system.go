package systems

import "time"

// System is one stage of the simulation tick.
type System interface {
	Name() string
	Phase() ExecutionPhase
	Update(tick Tick) error
}

// ExecutionPhase defines when a system runs inside a tick. Phases run in
// ascending order; systems sharing a phase run in registration order.
type ExecutionPhase uint8

const (
	// PhaseInput drains queued commands and applies launches.
	PhaseInput ExecutionPhase = iota
	// PhaseAdvance promotes state that changes on the tick after it was entered.
	PhaseAdvance
	// PhasePreStep computes per-step forces.
	PhasePreStep
	// PhaseStep advances the physics world.
	PhaseStep
	// PhasePostStep evaluates the lifecycle against the new physics state.
	PhasePostStep
	// PhaseNotify mirrors state out and delivers notifications.
	PhaseNotify
)

func (p ExecutionPhase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhaseAdvance:
		return "advance"
	case PhasePreStep:
		return "pre-step"
	case PhaseStep:
		return "step"
	case PhasePostStep:
		return "post-step"
	case PhaseNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// Tick carries the timing of the tick being executed.
type Tick struct {
	Number  uint64
	Delta   float64
	Elapsed time.Duration
}

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

// Func adapts a function to the System interface.
type Func struct {
	SystemName  string
	SystemPhase ExecutionPhase
	Fn          func(tick Tick) error
}

func (f Func) Name() string           { return f.SystemName }
func (f Func) Phase() ExecutionPhase  { return f.SystemPhase }
func (f Func) Update(tick Tick) error { return f.Fn(tick) }
