// Package fulfillment turns completed checkout sessions into entitlements: purchase records
// for direct downloads and pending invite requests for invite-gated products.
package fulfillment

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/logging"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
)

// ClaimInput is submitted by a buyer after paying for an invite-gated product.
type ClaimInput struct {
	SessionID string `json:"sessionId"`
	ProductID string `json:"productId"`
	Username  string `json:"username"`
}

// Service is the purchase-completion handler.
type Service struct {
	payments  stripeapp.Service
	invites   inviteapp.Service
	catalog   catalog.Catalog
	purchases PurchaseStore
}

func NewService(payments stripeapp.Service, invites inviteapp.Service, c catalog.Catalog, purchases PurchaseStore) *Service {
	return &Service{payments: payments, invites: invites, catalog: c, purchases: purchases}
}

// ConfirmPurchase records the products paid for in sessionID and returns their ids.
// Only the buyer named on the session may confirm it.
func (s *Service) ConfirmPurchase(ctx context.Context, caller identity.Principal, sessionID string) ([]string, error) {
	completed, err := s.completedBy(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	ids := completed.PurchasedProductIDs()
	if err := s.purchases.Record(ctx, caller, sessionID, ids); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabase, err)
	}
	logging.FromContext(ctx).Info("purchase confirmed", "session_id", sessionID, "buyer", caller.String(), "products", ids)
	return ids, nil
}

// ClaimInvite creates the pending invite request for an invite-gated product bought in a
// completed session. The record is keyed by (product, session id, buyer).
func (s *Service) ClaimInvite(ctx context.Context, caller identity.Principal, in ClaimInput) (inviteapp.Record, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.ProductID = strings.TrimSpace(in.ProductID)
	if in.ProductID == "" {
		return inviteapp.Record{}, fmt.Errorf("%w: product id is required", apperrors.ErrInvalidInput)
	}
	product, err := s.catalog.Product(ctx, in.ProductID)
	if err != nil {
		return inviteapp.Record{}, err
	}
	if !product.RequiresInvite {
		return inviteapp.Record{}, fmt.Errorf("%w: product %s is not invite-gated", apperrors.ErrInvalidInput, product.ID)
	}

	completed, err := s.completedBy(ctx, caller, in.SessionID)
	if err != nil {
		return inviteapp.Record{}, err
	}
	ids := completed.PurchasedProductIDs()
	if !slices.Contains(ids, product.ID) {
		return inviteapp.Record{}, fmt.Errorf("%w: session %s did not purchase product %s", apperrors.ErrUnauthorized, in.SessionID, product.ID)
	}
	if err := s.purchases.Record(ctx, caller, in.SessionID, ids); err != nil {
		return inviteapp.Record{}, fmt.Errorf("%w: %v", apperrors.ErrDatabase, err)
	}

	return s.invites.Create(ctx, identity.System, inviteapp.CreateInput{
		Username:  in.Username,
		ProductID: product.ID,
		OrderID:   in.SessionID,
		Buyer:     caller,
	})
}

// HasPurchased implements access.PurchaseVerifier.
func (s *Service) HasPurchased(ctx context.Context, caller identity.Principal, productID string) (bool, error) {
	return s.purchases.Has(ctx, caller, productID)
}

func (s *Service) completedBy(ctx context.Context, caller identity.Principal, sessionID string) (stripeapp.Completed, error) {
	if caller.IsAnonymous() {
		return stripeapp.Completed{}, fmt.Errorf("%w: sign in to claim a purchase", apperrors.ErrUnauthorized)
	}
	outcome, err := s.payments.GetSessionStatus(ctx, sessionID)
	if err != nil {
		return stripeapp.Completed{}, err
	}
	completed, ok := outcome.(stripeapp.Completed)
	if !ok {
		failed := outcome.(stripeapp.Failed)
		return stripeapp.Completed{}, fmt.Errorf("%w: checkout did not complete: %s", apperrors.ErrInvalidInput, failed.Error)
	}
	if completed.Buyer != caller {
		return stripeapp.Completed{}, fmt.Errorf("%w: session %s belongs to another buyer", apperrors.ErrUnauthorized, sessionID)
	}
	return completed, nil
}
