// Package notify publishes domain events (user registered, guide changed)
// to NATS or an HTTP webhook. Publishing is best effort: callers log
// failures and carry on.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SubjectUserRegistered = "users.registered"
	SubjectRefreshReuse   = "auth.refresh_reuse"
	SubjectGuideCreated   = "guides.created"
	SubjectGuideUpdated   = "guides.updated"
	SubjectGuideDeleted   = "guides.deleted"
)

// Event is the envelope sent for every subject.
type Event struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

func NewEvent(subject string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Subject:    subject,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Multi fans an event out to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
