// Package telemetry samples the ball on a fixed interval and publishes spin
// readouts to the game state store.
package telemetry

import (
	"context"
	"time"

	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
	"github.com/zeusync/fairway/internal/core/systems/physics"
)

// Sampler is read-only with respect to physics. It runs on its own goroutine and
// only writes readout fields, so it never races the tick for a field.
type Sampler struct {
	reader   physics.Reader
	ball     physics.BodyID
	store    *state.Store
	interval time.Duration
	log      log.Log
}

func NewSampler(reader physics.Reader, ball physics.BodyID, store *state.Store, interval time.Duration, logger log.Log) *Sampler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Sampler{
		reader:   reader,
		ball:     ball,
		store:    store,
		interval: interval,
		log:      logger.Named("telemetry"),
	}
}

// Run samples until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sample()
		}
	}
}

// Sample reads the ball once. Backspin is the x component of angular velocity
// and sidespin the y component, matching how a swing assigns them.
func (s *Sampler) Sample() {
	st, err := s.reader.State(s.ball)
	if err != nil {
		s.log.Warn("sample failed", log.Error(err))
		return
	}
	if !st.Finite() {
		return
	}
	s.store.SetSpinReadouts(st.AngularVelocity.X(), st.AngularVelocity.Y())
}

func (s *Sampler) Interval() time.Duration {
	return s.interval
}
