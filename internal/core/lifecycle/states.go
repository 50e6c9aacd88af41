package lifecycle

// State is the ball lifecycle state.
type State uint32

const (
	Idle State = iota
	Launched
	InFlight
	Settled
	Holed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Launched:
		return "launched"
	case InFlight:
		return "inflight"
	case Settled:
		return "settled"
	case Holed:
		return "holed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AcceptsSwing reports whether a swing requested in s is applied.
func (s State) AcceptsSwing() bool {
	return s == Idle || s == Settled
}

// Moving reports whether the ball is under simulation control.
func (s State) Moving() bool {
	return s == Launched || s == InFlight
}

// Topic carries lifecycle events on the session bus.
const Topic = "game"

const (
	EventSwingAccepted = "swing.accepted"
	EventSwingRejected = "swing.rejected"
	EventInFlight      = "ball.inflight"
	EventSettled       = "ball.settled"
	EventHoled         = "ball.holed"
	EventReset         = "ball.reset"
	EventAnomaly       = "ball.anomaly"
)

// Transition is the payload of every lifecycle event.
type Transition struct {
	From   State  `json:"from"`
	To     State  `json:"to"`
	Tick   uint64 `json:"tick"`
	Reason string `json:"reason,omitempty"`
	Score  int    `json:"score"`
}
