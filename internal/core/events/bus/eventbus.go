package bus

import (
	"errors"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var _ EventBus = (*inMemoryBus)(nil)

type simpleEvent struct {
	typeStr string
	source  string
	ts      time.Time
	data    any
}

func (e simpleEvent) Type() string         { return e.typeStr }
func (e simpleEvent) Source() string       { return e.source }
func (e simpleEvent) Timestamp() time.Time { return e.ts }
func (e simpleEvent) Data() any            { return e.data }

// NewEvent stamps an event with the current time.
func NewEvent(typ, src string, data any) Event {
	return simpleEvent{typeStr: typ, source: src, ts: time.Now(), data: data}
}

type subscription struct {
	id        string
	topic     string
	eventType string
	handler   EventHandler
	active    atomic.Bool
	cancel    func()
	once      sync.Once
}

func (s *subscription) ID() string        { return s.id }
func (s *subscription) Topic() string     { return s.topic }
func (s *subscription) EventType() string { return s.eventType }
func (s *subscription) IsActive() bool    { return s.active.Load() }
func (s *subscription) Cancel() error {
	s.once.Do(func() {
		s.active.Store(false)
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// topic keeps each event type's subscribers in subscription order. Slices are
// replaced, never mutated in place, so a delivery can range over a stale copy.
type topic struct {
	byType map[string][]*subscription
}

func (t *topic) subscribers() int {
	n := 0
	for _, subs := range t.byType {
		n += len(subs)
	}
	return n
}

type inMemoryBus struct {
	mu        sync.RWMutex
	topics    map[string]*topic
	observers []EventBusObserver

	published atomic.Uint64
	delivered atomic.Uint64
	errs      atomic.Uint64
}

func New() EventBus {
	return &inMemoryBus{topics: make(map[string]*topic)}
}

func (b *inMemoryBus) CreateTopic(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ensureTopicLocked(name)
	return nil
}

func (b *inMemoryBus) SubscribeTopic(topicName, eventType string, handler EventHandler) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if eventType == "" {
		return nil, ErrEmptyEventType
	}

	s := &subscription{id: uuid.NewString(), topic: topicName, eventType: eventType, handler: handler}
	s.active.Store(true)
	s.cancel = func() { b.removeSubscription(s) }

	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.ensureTopicLocked(topicName)
	t.byType[eventType] = append(slices.Clip(t.byType[eventType]), s)
	return s, nil
}

func (b *inMemoryBus) PublishToTopic(topicName string, event Event) error {
	if event == nil {
		return ErrNilEvent
	}
	start := time.Now()
	etype := event.Type()

	b.mu.RLock()
	subs := b.collectLocked(topicName, etype)
	observers := b.observers
	b.mu.RUnlock()

	var all error
	delivered := 0
	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		delivered++
		if err := s.handler(event); err != nil {
			all = errors.Join(all, err)
		}
	}

	b.published.Add(1)
	b.delivered.Add(uint64(delivered))
	if all != nil {
		b.errs.Add(1)
	}
	if len(observers) > 0 {
		elapsed := time.Since(start)
		for _, obs := range observers {
			obs.OnDelivered(topicName, etype, delivered, all, elapsed)
		}
	}
	return all
}

func (b *inMemoryBus) AddObserver(obs EventBusObserver) {
	if obs == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if slices.Contains(b.observers, obs) {
		return
	}
	b.observers = append(slices.Clip(b.observers), obs)
}

func (b *inMemoryBus) RemoveObserver(obs EventBusObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i := slices.Index(b.observers, obs); i >= 0 {
		b.observers = slices.Delete(slices.Clone(b.observers), i, i+1)
	}
}

func (b *inMemoryBus) GetMetrics() EventBusMetrics {
	m := EventBusMetrics{
		Published:         b.published.Load(),
		DeliveredHandlers: b.delivered.Load(),
		Errors:            b.errs.Load(),
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	m.Topics = uint64(len(b.topics))
	for _, t := range b.topics {
		m.SubscribersActive += uint64(t.subscribers())
	}
	return m
}

func (b *inMemoryBus) GetTopics() []TopicInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]TopicInfo, 0, len(b.topics))
	for name, t := range b.topics {
		out = append(out, TopicInfo{Name: name, EventTypes: len(t.byType), Subs: t.subscribers()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *inMemoryBus) ensureTopicLocked(name string) *topic {
	t, ok := b.topics[name]
	if !ok {
		t = &topic{byType: make(map[string][]*subscription)}
		b.topics[name] = t
	}
	return t
}

func (b *inMemoryBus) removeSubscription(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[s.topic]
	if !ok {
		return
	}
	subs := t.byType[s.eventType]
	i := slices.Index(subs, s)
	if i < 0 {
		return
	}
	if len(subs) == 1 {
		delete(t.byType, s.eventType)
		return
	}
	t.byType[s.eventType] = slices.Delete(slices.Clone(subs), i, i+1)
}

// collectLocked returns typed subscribers followed by wildcard subscribers.
func (b *inMemoryBus) collectLocked(topicName, etype string) []*subscription {
	t, ok := b.topics[topicName]
	if !ok {
		return nil
	}
	typed := t.byType[etype]
	if etype == AnyType {
		return typed
	}
	wild := t.byType[AnyType]
	if len(wild) == 0 {
		return typed
	}
	if len(typed) == 0 {
		return wild
	}
	return slices.Concat(typed, wild)
}
