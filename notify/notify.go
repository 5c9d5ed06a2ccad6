package notify

import (
	"context"
	"errors"
	"time"

	"github.com/icodeforyou/pvsoiling/days"
)

type Kind string

const (
	ReadingCreated Kind = "reading.created"
	SyncCompleted  Kind = "sync.completed"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	PlantID string    `json:"plant_id"`
	Date    days.Date `json:"date,omitempty"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// Publisher delivers events to subscribers outside the process. Delivery is
// best effort, callers log the error and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes every event to all of its publishers.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(context.Context, Event) error { return nil })
