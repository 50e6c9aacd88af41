package session

import (
	"sync/atomic"
	"time"

	"github.com/zeusync/fairway/internal/core/events/bus"
	"github.com/zeusync/fairway/internal/core/observability/log"
)

var _ bus.EventBusObserver = (*deliveryMonitor)(nil)

// deliveryMonitor warns when one publish runs its handlers for longer than a
// tick, which stalls the loop.
type deliveryMonitor struct {
	log    log.Log
	budget time.Duration
	slow   atomic.Uint64
}

func newDeliveryMonitor(logger log.Log, budget time.Duration) *deliveryMonitor {
	return &deliveryMonitor{log: logger.Named("bus"), budget: budget}
}

func (m *deliveryMonitor) OnDelivered(topic, eventType string, handlers int, err error, elapsed time.Duration) {
	if elapsed > m.budget {
		m.slow.Add(1)
		m.log.Warn("slow event delivery",
			log.String("topic", topic),
			log.String("event", eventType),
			log.Int("handlers", handlers),
			log.Duration("elapsed", elapsed),
			log.Duration("budget", m.budget))
	}
	if err != nil {
		m.log.Debug("event handlers failed",
			log.String("topic", topic),
			log.String("event", eventType),
			log.Error(err))
	}
}

// SlowDeliveries counts publishes that overran the tick budget.
func (m *deliveryMonitor) SlowDeliveries() uint64 {
	return m.slow.Load()
}
