package session

import (
	"github.com/zeusync/fairway/internal/core/aero"
	"github.com/zeusync/fairway/internal/core/lifecycle"
	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems"
	"github.com/zeusync/fairway/internal/core/systems/physics"
)

// applyCommands drains the queue in arrival order. A second swing queued in the
// same tick sees the first one's Launched state and is rejected.
func (s *Session) applyCommands(tick systems.Tick) error {
	for _, cmd := range s.commands.Drain() {
		switch cmd.Kind {
		case CommandSwing:
			s.machine.Swing(cmd.Overrides.Apply(s.cfg.Swing), tick.Number)
		case CommandReset:
			s.machine.Reset(cmd.ZeroScore, tick.Number)
		case CommandToggleDevMode:
			s.applyDevMode(s.store.ToggleDevMode())
		default:
			s.log.Warn("unknown command", log.String("kind", cmd.Kind.String()))
		}
	}
	return nil
}

func (s *Session) advance(tick systems.Tick) error {
	s.machine.Advance(tick.Number)
	return nil
}

// applyAero adds the Magnus force for this step while the ball is in flight.
func (s *Session) applyAero(tick systems.Tick) error {
	if s.machine.State() != lifecycle.InFlight {
		return nil
	}
	st, err := s.adapter.State(s.ball)
	if err != nil {
		return err
	}
	wind := aero.Wind(s.store.WindSpeed(), s.store.WindDirection())
	force := s.aero.Force(st.LinearVelocity, st.AngularVelocity, wind)
	if !physics.FiniteVec(force) {
		// the lifecycle evaluation recovers the ball itself
		return nil
	}
	if s.store.DevMode() {
		s.log.Debug("magnus", log.Uint64("tick", tick.Number), log.Vector("force", force), log.Vector("velocity", st.LinearVelocity))
	}
	return s.adapter.ApplyForce(s.ball, force)
}

func (s *Session) stepPhysics(tick systems.Tick) error {
	s.adapter.Step(tick.Delta)
	return nil
}

func (s *Session) evaluate(tick systems.Tick) error {
	s.machine.Evaluate(tick.Number, tick.Delta)
	return nil
}

// notify mirrors the ball and releases every notification held during the tick.
func (s *Session) notify(tick systems.Tick) error {
	err := s.mirror()
	s.store.SetTick(tick.Number)
	s.store.Flush()
	return err
}

func (s *Session) mirror() error {
	st, err := s.adapter.State(s.ball)
	if err != nil {
		return err
	}
	if !st.Finite() {
		return nil
	}
	s.store.SetBall(state.MirrorOf(st.Position, st.Rotation, st.LinearVelocity, st.AngularVelocity))
	return nil
}

func (s *Session) applyDevMode(on bool) {
	if on {
		s.log.SetLevel(log.LevelDebug)
	} else {
		s.log.SetLevel(s.baseLevel)
	}
	s.log.Info("dev mode", log.Bool("enabled", on))
}
