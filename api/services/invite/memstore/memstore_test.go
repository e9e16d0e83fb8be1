package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
)

var (
	buyerX = identity.MustParse("buyerX")
	buyerY = identity.MustParse("buyerY")
)

func record(product, order string, buyer identity.Principal, sec int64) inviteapp.Record {
	return inviteapp.Record{
		Key:       inviteapp.Key{ProductID: product, OrderID: order, Buyer: buyer},
		Username:  "trader1",
		Status:    inviteapp.StatusPending,
		CreatedAt: time.Unix(sec, 0),
	}
}

func TestInsertGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := New()
	r := record("prod_1", "order_9", buyerX, 1)

	require.NoError(t, s.Insert(ctx, r))
	assert.ErrorIs(t, s.Insert(ctx, r), apperrors.ErrAlreadyExists)

	got, err := s.Get(ctx, r.Key)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	updated, err := s.UpdateStatus(ctx, r.Key, inviteapp.StatusGranted)
	require.NoError(t, err)
	assert.Equal(t, inviteapp.StatusGranted, updated.Status)
	assert.Equal(t, r.Username, updated.Username)

	_, err = s.UpdateStatus(ctx, inviteapp.Key{ProductID: "x", OrderID: "y", Buyer: buyerX}, inviteapp.StatusGranted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.Get(ctx, inviteapp.Key{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListOrderingAndFilters(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Insert(ctx, record("prod_1", "order_1", buyerX, 1)))
	require.NoError(t, s.Insert(ctx, record("prod_2", "order_2", buyerX, 3)))
	require.NoError(t, s.Insert(ctx, record("prod_1", "order_3", buyerY, 2)))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"order_2", "order_3", "order_1"}, []string{all[0].OrderID, all[1].OrderID, all[2].OrderID})

	mine, err := s.ListByBuyer(ctx, buyerX)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	forProduct, err := s.ListByProductAndBuyer(ctx, "prod_1", buyerY)
	require.NoError(t, err)
	require.Len(t, forProduct, 1)
	assert.Equal(t, "order_3", forProduct[0].OrderID)
}

func TestConcurrentInserts(t *testing.T) {
	ctx := context.Background()
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Insert(ctx, record("prod_1", fmt.Sprintf("order_%d", i), buyerX, int64(i))))
		}(i)
	}
	wg.Wait()

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}
