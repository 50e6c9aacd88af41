package session

import "github.com/zeusync/fairway/internal/core/launch"

type CommandKind uint8

const (
	CommandSwing CommandKind = iota + 1
	CommandReset
	CommandToggleDevMode
)

func (k CommandKind) String() string {
	switch k {
	case CommandSwing:
		return "swing"
	case CommandReset:
		return "reset"
	case CommandToggleDevMode:
		return "devmode"
	default:
		return "unknown"
	}
}

// Command is an external trigger queued for the next tick.
type Command struct {
	Kind      CommandKind
	Overrides *launch.Overrides
	ZeroScore bool
}
