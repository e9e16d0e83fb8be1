package fulfillment

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
	"github.com/tbeaudouin05/stripe-storefront/api/services/invite/memstore"
	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
)

var buyerX = identity.MustParse("buyerX")

// fakePayments serves fixed outcomes per session id.
type fakePayments struct {
	stripeapp.Service
	outcomes map[string]stripeapp.SessionOutcome
	errs     map[string]error
}

func (f fakePayments) GetSessionStatus(_ context.Context, id string) (stripeapp.SessionOutcome, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	o, ok := f.outcomes[id]
	if !ok {
		return nil, fmt.Errorf("%w: checkout session %s", apperrors.ErrNotFound, id)
	}
	return o, nil
}

func paidSession(buyer identity.Principal, productIDs string) stripeapp.Completed {
	return stripeapp.Completed{
		Buyer:       buyer,
		RawResponse: `{"id":"cs","status":"complete","metadata":{"product_ids":"` + productIDs + `"}}`,
	}
}

func newFixture() (*Service, inviteapp.Service, *MemoryPurchases) {
	payments := fakePayments{
		outcomes: map[string]stripeapp.SessionOutcome{
			"order_9":   paidSession(buyerX, "prod_1,prod_2"),
			"cs_other":  paidSession(identity.MustParse("buyerY"), "prod_1"),
			"cs_guide":  paidSession(buyerX, "prod_2"),
			"cs_expire": stripeapp.Failed{Error: "checkout session expired"},
		},
		errs: map[string]error{"cs_open": fmt.Errorf("%w: session is still open", apperrors.ErrNotSettled)},
	}
	invites := inviteapp.NewService(memstore.New(), identity.NewAdminSet())
	cat := catalog.NewStatic([]catalog.Product{
		{ID: "prod_1", Title: "Indicator", Price: 2000, Currency: "usd", RequiresInvite: true},
		{ID: "prod_2", Title: "Guide", Price: 500, Currency: "usd", DownloadHandle: "guides/guide.pdf"},
	}, nil)
	purchases := NewMemoryPurchases()
	return NewService(payments, invites, cat, purchases), invites, purchases
}

func TestClaimInvite_CreatesPendingRecord(t *testing.T) {
	svc, invites, _ := newFixture()
	ctx := context.Background()

	rec, err := svc.ClaimInvite(ctx, buyerX, ClaimInput{SessionID: "order_9", ProductID: "prod_1", Username: "trader1"})
	require.NoError(t, err)
	assert.Equal(t, inviteapp.Key{ProductID: "prod_1", OrderID: "order_9", Buyer: buyerX}, rec.Key)
	assert.Equal(t, inviteapp.StatusPending, rec.Status)
	assert.Equal(t, "trader1", rec.Username)

	mine, err := invites.ListMine(ctx, buyerX)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	ok, err := svc.HasPurchased(ctx, buyerX, "prod_2")
	require.NoError(t, err)
	assert.True(t, ok, "bundle siblings are recorded with the claim")

	_, err = svc.ClaimInvite(ctx, buyerX, ClaimInput{SessionID: "order_9", ProductID: "prod_1", Username: "trader1"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestClaimInvite_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		caller  identity.Principal
		in      ClaimInput
		wantErr error
	}{
		{"anonymous", identity.Principal{}, ClaimInput{SessionID: "order_9", ProductID: "prod_1", Username: "t"}, apperrors.ErrUnauthorized},
		{"someone else's session", buyerX, ClaimInput{SessionID: "cs_other", ProductID: "prod_1", Username: "t"}, apperrors.ErrUnauthorized},
		{"product not in session", buyerX, ClaimInput{SessionID: "cs_guide", ProductID: "prod_1", Username: "t"}, apperrors.ErrUnauthorized},
		{"not invite-gated", buyerX, ClaimInput{SessionID: "order_9", ProductID: "prod_2", Username: "t"}, apperrors.ErrInvalidInput},
		{"unknown product", buyerX, ClaimInput{SessionID: "order_9", ProductID: "nope", Username: "t"}, apperrors.ErrNotFound},
		{"missing product", buyerX, ClaimInput{SessionID: "order_9", Username: "t"}, apperrors.ErrInvalidInput},
		{"expired session", buyerX, ClaimInput{SessionID: "cs_expire", ProductID: "prod_1", Username: "t"}, apperrors.ErrInvalidInput},
		{"open session", buyerX, ClaimInput{SessionID: "cs_open", ProductID: "prod_1", Username: "t"}, apperrors.ErrNotSettled},
		{"unknown session", buyerX, ClaimInput{SessionID: "cs_missing", ProductID: "prod_1", Username: "t"}, apperrors.ErrNotFound},
		{"missing username", buyerX, ClaimInput{SessionID: "order_9", ProductID: "prod_1"}, apperrors.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newFixture()
			_, err := svc.ClaimInvite(context.Background(), tt.caller, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfirmPurchase(t *testing.T) {
	svc, _, purchases := newFixture()
	ctx := context.Background()

	ids, err := svc.ConfirmPurchase(ctx, buyerX, "cs_guide")
	require.NoError(t, err)
	assert.Equal(t, []string{"prod_2"}, ids)

	ok, _ := purchases.Has(ctx, buyerX, "prod_2")
	assert.True(t, ok)
	ok, _ = purchases.Has(ctx, buyerX, "prod_1")
	assert.False(t, ok)

	_, err = svc.ConfirmPurchase(ctx, buyerX, "cs_other")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
