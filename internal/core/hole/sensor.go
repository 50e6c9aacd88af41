// Package hole detects the ball dropping into the cup and keeps the stroke count.
package hole

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/fairway/internal/core/observability/log"
	"github.com/zeusync/fairway/internal/core/systems/physics"
	"github.com/zeusync/fairway/pkg/sequence"
)

// Event is a queued cup entry, consumed by the lifecycle evaluation of the next tick.
type Event struct {
	Position mgl64.Vec3
	At       time.Time
}

// Sensor wraps the cup trigger volume. Only the first entry per round is queued;
// the physics engine may report the same entry several times.
type Sensor struct {
	id    physics.SensorID
	ball  physics.BodyID
	armed atomic.Bool
	queue *sequence.Queue[Event]
	log   log.Log
}

func NewSensor(adapter physics.Adapter, spec physics.SensorSpec, ball physics.BodyID, logger log.Log) (*Sensor, error) {
	s := &Sensor{
		ball:  ball,
		queue: sequence.NewQueue[Event](),
		log:   logger.Named("hole"),
	}
	s.armed.Store(true)

	id, err := adapter.AddSensor(spec, s.HandleEvent)
	if err != nil {
		return nil, fmt.Errorf("register hole sensor: %w", err)
	}
	s.id = id
	return s, nil
}

// HandleEvent is the sensor callback. Safe to call from any goroutine.
func (s *Sensor) HandleEvent(ev physics.SensorEvent) {
	if ev.Body != s.ball {
		return
	}
	if !s.armed.CompareAndSwap(true, false) {
		s.log.Debug("duplicate cup entry ignored", log.Vector("position", ev.Position))
		return
	}
	s.queue.Push(Event{Position: ev.Position, At: time.Now()})
	s.log.Info("ball entered cup", log.Vector("position", ev.Position))
}

// Take pops the pending cup entry, if any.
func (s *Sensor) Take() (Event, bool) {
	return s.queue.Dequeue()
}

// Rearm drops anything pending and accepts the next entry. Called on reset.
func (s *Sensor) Rearm() {
	s.queue.Clear()
	s.armed.Store(true)
}

func (s *Sensor) Armed() bool {
	return s.armed.Load()
}

func (s *Sensor) ID() physics.SensorID {
	return s.id
}
