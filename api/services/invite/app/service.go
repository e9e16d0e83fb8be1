package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/logging"
)

// Service is the entitlement ledger: the invite state machine and its queries.
type Service interface {
	Create(ctx context.Context, caller identity.Principal, in CreateInput) (Record, error)
	Transition(ctx context.Context, caller identity.Principal, in UpdateInput) (Record, error)
	List(ctx context.Context, caller identity.Principal) ([]Record, error)
	ListMine(ctx context.Context, caller identity.Principal) ([]Record, error)
	ListMineForProduct(ctx context.Context, caller identity.Principal, productID string) ([]Record, error)
}

var validate = validator.New()

type serviceImpl struct {
	store     Store
	admins    identity.Authorizer
	publisher Publisher
	now       func() time.Time
}

// Option customises the service.
type Option func(*serviceImpl)

// WithPublisher emits an Event after every successful mutation.
func WithPublisher(p Publisher) Option {
	return func(s *serviceImpl) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *serviceImpl) { s.now = now }
}

func NewService(store Store, admins identity.Authorizer, opts ...Option) Service {
	s := &serviceImpl{store: store, admins: admins, publisher: noopPublisher{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create records a new pending invite request. Admin or system callers only.
func (s *serviceImpl) Create(ctx context.Context, caller identity.Principal, in CreateInput) (Record, error) {
	if err := s.requireAdmin(caller); err != nil {
		return Record{}, err
	}
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return Record{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if in.Buyer.IsAnonymous() {
		return Record{}, fmt.Errorf("%w: buyer is required", apperrors.ErrInvalidInput)
	}
	if in.Status != "" && in.Status != StatusPending {
		return Record{}, fmt.Errorf("%w: new invite requests start pending, got %q", apperrors.ErrInvalidInput, in.Status)
	}

	rec := Record{
		Key:       Key{ProductID: in.ProductID, OrderID: in.OrderID, Buyer: in.Buyer},
		Username:  in.Username,
		Status:    StatusPending,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return Record{}, storeError(err, "error inserting invite record")
	}

	logging.FromContext(ctx).Info("invite request created", "key", rec.Key.String(), "caller", caller.String())
	s.publish(ctx, Event{Type: EventCreated, Record: rec, Actor: caller, OccurredAt: rec.CreatedAt})
	return rec, nil
}

// Transition moves an existing record to any status. Admin only.
func (s *serviceImpl) Transition(ctx context.Context, caller identity.Principal, in UpdateInput) (Record, error) {
	if err := s.requireAdmin(caller); err != nil {
		return Record{}, err
	}
	in.normalize()
	if err := validate.Struct(in); err != nil {
		return Record{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if _, err := ParseStatus(string(in.Status)); err != nil {
		return Record{}, err
	}
	key := Key{ProductID: in.ProductID, OrderID: in.OrderID, Buyer: in.Buyer}

	current, err := s.store.Get(ctx, key)
	if err != nil {
		return Record{}, storeError(err, "error loading invite record")
	}
	if in.Username != "" && in.Username != current.Username {
		return Record{}, fmt.Errorf("%w: username cannot be changed", apperrors.ErrInvalidInput)
	}

	rec, err := s.store.UpdateStatus(ctx, key, in.Status)
	if err != nil {
		return Record{}, storeError(err, "error updating invite record")
	}

	logging.FromContext(ctx).Info("invite status changed", "key", key.String(), "from", current.Status, "to", rec.Status, "caller", caller.String())
	s.publish(ctx, Event{Type: EventTransitioned, Record: rec, Previous: current.Status, Actor: caller, OccurredAt: s.now().UTC()})
	return rec, nil
}

// List returns every record. Admin only.
func (s *serviceImpl) List(ctx context.Context, caller identity.Principal) ([]Record, error) {
	if err := s.requireAdmin(caller); err != nil {
		return nil, err
	}
	recs, err := s.store.List(ctx)
	if err != nil {
		return nil, storeError(err, "error listing invite records")
	}
	return recs, nil
}

// ListMine returns the caller's own records.
func (s *serviceImpl) ListMine(ctx context.Context, caller identity.Principal) ([]Record, error) {
	if caller.IsAnonymous() {
		return nil, fmt.Errorf("%w: sign in to see your invites", apperrors.ErrUnauthorized)
	}
	recs, err := s.store.ListByBuyer(ctx, caller)
	if err != nil {
		return nil, storeError(err, "error listing invite records")
	}
	return recs, nil
}

// ListMineForProduct returns the caller's records for one product, newest first.
// Anonymous callers have no records.
func (s *serviceImpl) ListMineForProduct(ctx context.Context, caller identity.Principal, productID string) ([]Record, error) {
	if caller.IsAnonymous() {
		return nil, nil
	}
	recs, err := s.store.ListByProductAndBuyer(ctx, productID, caller)
	if err != nil {
		return nil, storeError(err, "error listing invite records")
	}
	return recs, nil
}

func (s *serviceImpl) requireAdmin(caller identity.Principal) error {
	if s.admins == nil || !s.admins.IsAdmin(caller) {
		return fmt.Errorf("%w: admin privileges required", apperrors.ErrUnauthorized)
	}
	return nil
}

func (s *serviceImpl) publish(ctx context.Context, e Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("invite event publish failed", "type", e.Type, "key", e.Record.Key.String(), "err", err)
	}
}

// storeError keeps taxonomy errors from the store and wraps everything else as a database error.
func storeError(err error, msg string) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrAlreadyExists) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", apperrors.ErrDatabase, msg, err)
}
