package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/scanboard/internal/event/topic"
)

// Event is a typed notification published on the bus.
// Events are immutable once created.
type Event[T any] struct {
	// Type is the hierarchical event type (e.g., "selection.committed").
	Type topic.Topic

	// Payload contains the event-specific data.
	Payload T

	// Metadata contains standard event information.
	Metadata Metadata
}

// Metadata contains standard information attached to every event.
type Metadata struct {
	// ID is a unique identifier for this event instance.
	ID string

	// Timestamp is the logical time of the event.
	Timestamp time.Time

	// Source identifies the component that published the event.
	Source string

	// CorrelationID links related events, such as the commits of one run.
	CorrelationID string
}

// NewEvent creates an event stamped with the wall clock.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return NewEventAt(eventType, payload, source, time.Now())
}

// NewEventAt creates an event stamped with the given logical time.
func NewEventAt[T any](eventType topic.Topic, payload T, source string, at time.Time) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: at,
			Source:    source,
		},
	}
}

// EventTopic returns the event's topic for type-erased handling.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata returns the event's metadata for type-erased handling.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// WithCorrelation returns a copy of the event with a correlation ID set.
func (e Event[T]) WithCorrelation(correlationID string) Event[T] {
	e.Metadata.CorrelationID = correlationID
	return e
}

// TopicProvider is implemented by types that can provide their topic.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// MetadataProvider is implemented by types that can provide their metadata.
type MetadataProvider interface {
	EventMetadata() Metadata
}

// Envelope wraps an untyped payload with a topic.
type Envelope struct {
	Topic    topic.Topic
	Payload  any
	Metadata Metadata
}

// EventTopic implements TopicProvider.
func (e Envelope) EventTopic() topic.Topic {
	return e.Topic
}

// EventMetadata implements MetadataProvider.
func (e Envelope) EventMetadata() Metadata {
	return e.Metadata
}

// topicOf extracts the topic of a published value.
func topicOf(ev any) topic.Topic {
	if tp, ok := ev.(TopicProvider); ok {
		return tp.EventTopic()
	}
	return ""
}
