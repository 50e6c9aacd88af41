package bus

import "time"

// AnyType subscribes a handler to every event type published on a topic.
const AnyType = "*"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// Handlers subscribe by Event.Type() inside a topic. Delivery is synchronous in
// the publisher goroutine, in subscription order, and handler errors are joined
// and returned to the publisher. Handlers registered under AnyType receive every
// event of their topic after the typed handlers.
type EventBus interface {
	// CreateTopic declares a topic. Repeat declarations are idempotent.
	CreateTopic(name string) error
	// SubscribeTopic declares the topic if needed and registers handler.
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	PublishToTopic(topic string, event Event) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	GetMetrics() EventBusMetrics
	// GetTopics lists declared topics sorted by name.
	GetTopics() []TopicInfo
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

// EventHandler is invoked once per delivered event.
type EventHandler func(event Event) error

// Subscription is a registered handler. Cancel is safe to call more than once.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	Cancel() error
}

// EventBusObserver is told about every publish once its handlers have run.
// Observers are called in the publisher goroutine and should return quickly.
type EventBusObserver interface {
	OnDelivered(topic, eventType string, handlers int, err error, elapsed time.Duration)
}

type EventBusMetrics struct {
	Published         uint64 `json:"published"`
	DeliveredHandlers uint64 `json:"deliveredHandlers"`
	Errors            uint64 `json:"errors"`
	SubscribersActive uint64 `json:"subscribersActive"`
	Topics            uint64 `json:"topics"`
}

type TopicInfo struct {
	Name       string `json:"name"`
	EventTypes int    `json:"eventTypes"`
	Subs       int    `json:"subs"`
}
