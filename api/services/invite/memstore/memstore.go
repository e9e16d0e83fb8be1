// Package memstore is the in-process invite ledger used when no database is configured.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
)

// Store guards the ledger with a RWMutex: readers run concurrently, every mutation is
// serialised.
type Store struct {
	mu      sync.RWMutex
	records map[inviteapp.Key]inviteapp.Record
}

func New() *Store {
	return &Store{records: map[inviteapp.Key]inviteapp.Record{}}
}

func (s *Store) Insert(_ context.Context, r inviteapp.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.Key]; ok {
		return fmt.Errorf("%w: invite record %s", apperrors.ErrAlreadyExists, r.Key)
	}
	s.records[r.Key] = r
	return nil
}

func (s *Store) Get(_ context.Context, k inviteapp.Key) (inviteapp.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[k]
	if !ok {
		return inviteapp.Record{}, fmt.Errorf("%w: invite record %s", apperrors.ErrNotFound, k)
	}
	return r, nil
}

func (s *Store) UpdateStatus(_ context.Context, k inviteapp.Key, st inviteapp.Status) (inviteapp.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[k]
	if !ok {
		return inviteapp.Record{}, fmt.Errorf("%w: invite record %s", apperrors.ErrNotFound, k)
	}
	r.Status = st
	s.records[k] = r
	return r, nil
}

func (s *Store) List(context.Context) ([]inviteapp.Record, error) {
	return s.filter(func(inviteapp.Record) bool { return true }), nil
}

func (s *Store) ListByBuyer(_ context.Context, buyer identity.Principal) ([]inviteapp.Record, error) {
	return s.filter(func(r inviteapp.Record) bool { return r.Buyer == buyer }), nil
}

func (s *Store) ListByProductAndBuyer(_ context.Context, productID string, buyer identity.Principal) ([]inviteapp.Record, error) {
	return s.filter(func(r inviteapp.Record) bool { return r.Buyer == buyer && r.ProductID == productID }), nil
}

func (s *Store) filter(keep func(inviteapp.Record) bool) []inviteapp.Record {
	s.mu.RLock()
	out := make([]inviteapp.Record, 0, len(s.records))
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}
