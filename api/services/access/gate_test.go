package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
	"github.com/tbeaudouin05/stripe-storefront/api/services/invite/memstore"
)

var (
	admin  = identity.MustParse("admin-1")
	buyerX = identity.MustParse("buyerX")
	buyerY = identity.MustParse("buyerY")

	inviteProduct = catalog.Product{ID: "prod_1", Title: "Indicator", Price: 2000, Currency: "usd", RequiresInvite: true, DownloadHandle: "indicators/prod_1.zip"}
	paidProduct   = catalog.Product{ID: "prod_2", Title: "Guide", Price: 500, Currency: "usd", DownloadHandle: "guides/guide.pdf"}
	freeProduct   = catalog.Product{ID: "prod_3", Title: "Sampler", IsFree: true}
)

type purchased map[string]bool

func (p purchased) HasPurchased(_ context.Context, caller identity.Principal, productID string) (bool, error) {
	return p[caller.String()+"/"+productID], nil
}

type fixedSigner struct{}

func (fixedSigner) SignURL(_ context.Context, handle string) (string, time.Time, error) {
	return "https://storage.example.com/" + handle + "?sig=1", time.Unix(1_700_000_600, 0), nil
}

func ledgerWith(t *testing.T, statuses ...inviteapp.Status) inviteapp.Service {
	t.Helper()
	i := 0
	svc := inviteapp.NewService(memstore.New(), identity.NewAdminSet(admin.String()),
		inviteapp.WithClock(func() time.Time { i++; return time.Unix(int64(1_700_000_000+i), 0) }))
	ctx := context.Background()
	for n, st := range statuses {
		order := "order_" + string(rune('a'+n))
		_, err := svc.Create(ctx, admin, inviteapp.CreateInput{Username: "trader1", ProductID: inviteProduct.ID, OrderID: order, Buyer: buyerX})
		require.NoError(t, err)
		if st != inviteapp.StatusPending {
			_, err = svc.Transition(ctx, admin, inviteapp.UpdateInput{Status: st, ProductID: inviteProduct.ID, OrderID: order, Buyer: buyerX})
			require.NoError(t, err)
		}
	}
	return svc
}

func TestCanAccess_InviteScenario(t *testing.T) {
	ctx := context.Background()
	ledger := inviteapp.NewService(memstore.New(), identity.NewAdminSet(admin.String()))
	gate := NewGate(ledger, nil, nil)

	_, err := ledger.Create(ctx, admin, inviteapp.CreateInput{Username: "trader1", ProductID: "prod_1", OrderID: "order_9", Buyer: buyerX})
	require.NoError(t, err)

	ok, err := gate.CanAccess(ctx, buyerX, inviteProduct)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ledger.Transition(ctx, admin, inviteapp.UpdateInput{Status: inviteapp.StatusGranted, ProductID: "prod_1", OrderID: "order_9", Buyer: buyerX})
	require.NoError(t, err)

	ok, err = gate.CanAccess(ctx, buyerX, inviteProduct)
	require.NoError(t, err)
	assert.True(t, ok)

	// Another caller never benefits from buyerX's invite.
	ok, err = gate.CanAccess(ctx, buyerY, inviteProduct)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecide_InviteMessages(t *testing.T) {
	tests := []struct {
		name     string
		statuses []inviteapp.Status
		allowed  bool
		reason   string
	}{
		{"no record", nil, false, reasonNoInvite},
		{"pending", []inviteapp.Status{inviteapp.StatusPending}, false, "Pending admin approval"},
		{"expired", []inviteapp.Status{inviteapp.StatusExpired}, false, "Access expired"},
		{"username incorrect", []inviteapp.Status{inviteapp.StatusUsernameIncorrect}, false, "Username incorrect - please contact support"},
		{"granted", []inviteapp.Status{inviteapp.StatusGranted}, true, "Access granted - check your TradingView invites"},
		{"latest record explains denial", []inviteapp.Status{inviteapp.StatusExpired, inviteapp.StatusPending}, false, "Pending admin approval"},
		{"any granted record allows", []inviteapp.Status{inviteapp.StatusGranted, inviteapp.StatusExpired}, true, "Access granted - check your TradingView invites"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewGate(ledgerWith(t, tt.statuses...), nil, nil)
			d, err := gate.Decide(context.Background(), buyerX, inviteProduct)
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestDecide_NonInviteProducts(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(ledgerWith(t), purchased{"buyerX/prod_2": true}, nil)

	ok, err := gate.CanAccess(ctx, identity.Principal{}, freeProduct)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanAccess(ctx, buyerX, paidProduct)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gate.CanAccess(ctx, buyerY, paidProduct)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gate.CanAccess(ctx, identity.Principal{}, paidProduct)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	gate := NewGate(ledgerWith(t, inviteapp.StatusGranted), purchased{"buyerX/prod_2": true}, fixedSigner{})

	link, err := gate.Download(ctx, buyerX, paidProduct)
	require.NoError(t, err)
	assert.Equal(t, "https://storage.example.com/guides/guide.pdf?sig=1", link.URL)

	_, err = gate.Download(ctx, buyerX, inviteProduct)
	require.NoError(t, err)

	_, err = gate.Download(ctx, buyerY, paidProduct)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	_, err = gate.Download(ctx, buyerX, freeProduct)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	unsigned := NewGate(ledgerWith(t), purchased{"buyerX/prod_2": true}, nil)
	_, err = unsigned.Download(ctx, buyerX, paidProduct)
	assert.ErrorIs(t, err, apperrors.ErrUnconfigured)
}

type failingLookup struct{}

func (failingLookup) ListMineForProduct(context.Context, identity.Principal, string) ([]inviteapp.Record, error) {
	return nil, errors.New("db down")
}

func TestDecide_PropagatesLedgerErrors(t *testing.T) {
	_, err := NewGate(failingLookup{}, nil, nil).Decide(context.Background(), buyerX, inviteProduct)
	assert.Error(t, err)
}
