package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent represents a committed change other systems may react to.
type DomainEvent interface {
	// EventID returns a unique identifier for this event instance
	EventID() string

	// EventType returns the type of event (e.g., "ResourceLinked")
	EventType() string

	// AggregateID returns the ID of the record that changed
	AggregateID() string

	// Timestamp returns when the event occurred
	Timestamp() time.Time

	// EventData returns the event-specific data
	EventData() map[string]interface{}
}

const (
	EventResourceLinked        = "ResourceLinked"
	EventResourceUnlinked      = "ResourceUnlinked"
	EventContentVersionCreated = "ContentVersionCreated"
)

// BaseEvent provides common functionality for all domain events
type BaseEvent struct {
	eventID     string
	eventType   string
	aggregateID string
	timestamp   time.Time
}

func (e BaseEvent) EventID() string      { return e.eventID }
func (e BaseEvent) EventType() string    { return e.eventType }
func (e BaseEvent) AggregateID() string  { return e.aggregateID }
func (e BaseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType, aggregateID string, at time.Time) BaseEvent {
	return BaseEvent{
		eventID:     uuid.New().String(),
		eventType:   eventType,
		aggregateID: aggregateID,
		timestamp:   at,
	}
}

// ResourceLinkedEvent is emitted after a link commits.
type ResourceLinkedEvent struct {
	BaseEvent
	ResourceID        string
	ContentID         string
	PreviousContentID string
	LinkType          LinkType
}

func NewResourceLinkedEvent(resourceID, contentID, previousContentID string, linkType LinkType, at time.Time) *ResourceLinkedEvent {
	return &ResourceLinkedEvent{
		BaseEvent:         newBaseEvent(EventResourceLinked, resourceID, at),
		ResourceID:        resourceID,
		ContentID:         contentID,
		PreviousContentID: previousContentID,
		LinkType:          linkType,
	}
}

func (e *ResourceLinkedEvent) EventData() map[string]interface{} {
	data := map[string]interface{}{
		"resourceId": e.ResourceID,
		"contentId":  e.ContentID,
		"linkType":   string(e.LinkType),
	}
	if e.PreviousContentID != "" {
		data["previousContentId"] = e.PreviousContentID
	}
	return data
}

// ResourceUnlinkedEvent is emitted after an unlink commits.
type ResourceUnlinkedEvent struct {
	BaseEvent
	ResourceID string
	ContentID  string
}

func NewResourceUnlinkedEvent(resourceID, contentID string, at time.Time) *ResourceUnlinkedEvent {
	return &ResourceUnlinkedEvent{
		BaseEvent:  newBaseEvent(EventResourceUnlinked, resourceID, at),
		ResourceID: resourceID,
		ContentID:  contentID,
	}
}

func (e *ResourceUnlinkedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{
		"resourceId": e.ResourceID,
		"contentId":  e.ContentID,
	}
}

// ContentVersionCreatedEvent is emitted after a version is appended.
type ContentVersionCreatedEvent struct {
	BaseEvent
	ContentID string
	Number    int
	EditorID  string
}

func NewContentVersionCreatedEvent(v *Version) *ContentVersionCreatedEvent {
	return &ContentVersionCreatedEvent{
		BaseEvent: newBaseEvent(EventContentVersionCreated, v.ContentID, v.CreatedAt),
		ContentID: v.ContentID,
		Number:    v.Number,
		EditorID:  v.EditorID,
	}
}

func (e *ContentVersionCreatedEvent) EventData() map[string]interface{} {
	return map[string]interface{}{
		"contentId": e.ContentID,
		"number":    e.Number,
		"editorId":  e.EditorID,
	}
}

// EventPublisher delivers committed domain events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}
