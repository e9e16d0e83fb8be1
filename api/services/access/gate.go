// Package access decides whether a caller may use a product. It is read-only: no decision
// changes the ledger.
package access

import (
	"context"
	"fmt"
	"time"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
)

const (
	reasonFree         = "Free product"
	reasonPurchased    = "Purchased"
	reasonNotPurchased = "Purchase required"
	reasonNoInvite     = "No invite request - submit your TradingView username after purchase"
)

// PurchaseVerifier answers whether caller bought a product that is not invite-gated.
// Order history lives outside this service.
type PurchaseVerifier interface {
	HasPurchased(ctx context.Context, caller identity.Principal, productID string) (bool, error)
}

// InviteLookup returns the caller's invite records for a product, newest first.
// inviteapp.Service satisfies it.
type InviteLookup interface {
	ListMineForProduct(ctx context.Context, caller identity.Principal, productID string) ([]inviteapp.Record, error)
}

// URLSigner issues short-lived download URLs for asset handles.
type URLSigner interface {
	SignURL(ctx context.Context, handle string) (string, time.Time, error)
}

// Decision is the outcome of an access check. Status is set when an invite record decided it.
type Decision struct {
	Allowed bool             `json:"allowed"`
	Reason  string           `json:"reason"`
	Status  inviteapp.Status `json:"status,omitempty"`
}

// DownloadLink is a signed, expiring URL for a product asset.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gate combines the ledger with the external purchase history.
type Gate struct {
	invites   InviteLookup
	purchases PurchaseVerifier
	signer    URLSigner
}

// NewGate builds a Gate. A nil verifier denies every paid non-invite product; a nil signer
// makes downloads report apperrors.ErrUnconfigured.
func NewGate(invites InviteLookup, purchases PurchaseVerifier, signer URLSigner) *Gate {
	if purchases == nil {
		purchases = noPurchases{}
	}
	return &Gate{invites: invites, purchases: purchases, signer: signer}
}

// CanAccess reports whether caller may use product.
func (g *Gate) CanAccess(ctx context.Context, caller identity.Principal, product catalog.Product) (bool, error) {
	d, err := g.Decide(ctx, caller, product)
	return d.Allowed, err
}

// Decide explains the access decision for caller and product.
func (g *Gate) Decide(ctx context.Context, caller identity.Principal, product catalog.Product) (Decision, error) {
	if !product.RequiresInvite {
		if product.IsFree {
			return Decision{Allowed: true, Reason: reasonFree}, nil
		}
		if caller.IsAnonymous() {
			return Decision{Reason: reasonNotPurchased}, nil
		}
		ok, err := g.purchases.HasPurchased(ctx, caller, product.ID)
		if err != nil {
			return Decision{}, fmt.Errorf("error verifying purchase: %w", err)
		}
		if ok {
			return Decision{Allowed: true, Reason: reasonPurchased}, nil
		}
		return Decision{Reason: reasonNotPurchased}, nil
	}

	records, err := g.invites.ListMineForProduct(ctx, caller, product.ID)
	if err != nil {
		return Decision{}, err
	}
	for _, r := range records {
		if r.Status == inviteapp.StatusGranted {
			return Decision{Allowed: true, Reason: r.Status.Message(), Status: r.Status}, nil
		}
	}
	if len(records) == 0 {
		return Decision{Reason: reasonNoInvite}, nil
	}
	latest := records[0]
	return Decision{Reason: latest.Status.Message(), Status: latest.Status}, nil
}

// Download returns a signed URL for the product asset when caller may access it.
func (g *Gate) Download(ctx context.Context, caller identity.Principal, product catalog.Product) (DownloadLink, error) {
	d, err := g.Decide(ctx, caller, product)
	if err != nil {
		return DownloadLink{}, err
	}
	if !d.Allowed {
		return DownloadLink{}, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, d.Reason)
	}
	if product.DownloadHandle == "" {
		return DownloadLink{}, fmt.Errorf("%w: product %s has no downloadable asset", apperrors.ErrNotFound, product.ID)
	}
	if g.signer == nil {
		return DownloadLink{}, fmt.Errorf("%w: asset storage is not configured", apperrors.ErrUnconfigured)
	}
	url, expires, err := g.signer.SignURL(ctx, product.DownloadHandle)
	if err != nil {
		return DownloadLink{}, fmt.Errorf("error signing download url: %w", err)
	}
	return DownloadLink{URL: url, ExpiresAt: expires}, nil
}

type noPurchases struct{}

func (noPurchases) HasPurchased(context.Context, identity.Principal, string) (bool, error) {
	return false, nil
}
