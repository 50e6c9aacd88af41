package hole

import (
	"sync/atomic"

	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/state"
)

// Scorekeeper counts strokes: one per accepted swing. Once the ball is holed the
// count is frozen until Reset.
type Scorekeeper struct {
	store  *state.Store
	frozen atomic.Bool
	log    log.Log
}

func NewScorekeeper(store *state.Store, logger log.Log) *Scorekeeper {
	return &Scorekeeper{store: store, log: logger.Named("score")}
}

// RecordStroke adds a stroke unless the round is over.
func (k *Scorekeeper) RecordStroke() (int, bool) {
	if k.frozen.Load() {
		return k.store.Score(), false
	}
	return k.store.IncrementScore(), true
}

// Hole marks the ball as holed and freezes the score. It reports false if the
// round was already complete.
func (k *Scorekeeper) Hole() bool {
	if !k.frozen.CompareAndSwap(false, true) {
		return false
	}
	k.store.SetBallInHole(true)
	k.store.SetBallMoving(false)
	k.log.Info("hole complete", log.Int("strokes", k.store.Score()))
	return true
}

func (k *Scorekeeper) Reset(zeroScore bool) {
	k.frozen.Store(false)
	k.store.SetBallInHole(false)
	if zeroScore {
		k.store.SetScore(0)
	}
}

func (k *Scorekeeper) Frozen() bool {
	return k.frozen.Load()
}
