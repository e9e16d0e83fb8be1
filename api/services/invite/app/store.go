package app

import (
	"context"
	"time"

	"github.com/tbeaudouin05/stripe-storefront/api/identity"
)

// Store persists invite records. Implementations make every call atomic on its own and report
// apperrors.ErrAlreadyExists / apperrors.ErrNotFound for key conflicts. Lists are ordered
// newest first.
type Store interface {
	Insert(ctx context.Context, r Record) error
	Get(ctx context.Context, k Key) (Record, error)
	UpdateStatus(ctx context.Context, k Key, s Status) (Record, error)
	List(ctx context.Context) ([]Record, error)
	ListByBuyer(ctx context.Context, buyer identity.Principal) ([]Record, error)
	ListByProductAndBuyer(ctx context.Context, productID string, buyer identity.Principal) ([]Record, error)
}

// EventType names a ledger mutation.
type EventType string

const (
	EventCreated      EventType = "invite.created"
	EventTransitioned EventType = "invite.transitioned"
)

// Event describes a committed ledger mutation.
type Event struct {
	Type       EventType
	Record     Record
	Previous   Status
	Actor      identity.Principal
	OccurredAt time.Time
}

// Publisher forwards ledger events to interested parties. Failures never undo a mutation.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
