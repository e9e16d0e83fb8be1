package app

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
)

// MetadataProductIDs is the session metadata key listing purchased catalog products.
const MetadataProductIDs = "product_ids"

// LineItem is one cart line submitted to checkout. Prices are integer minor units.
// Keep value types to avoid pointer proliferation in domain.
type LineItem struct {
	ProductName string `json:"productName" validate:"required"`
	Description string `json:"description"`
	Currency    string `json:"currency" validate:"required,len=3,alpha"`
	Price       int64  `json:"price" validate:"gte=0"`
	Quantity    int64  `json:"quantity" validate:"gte=1"`

	// ProductIDs are the catalog products this line entitles the buyer to. Only set
	// server-side when pricing from the catalog.
	ProductIDs []string `json:"-"`
}

// CheckoutSession is the provider-issued handle the client is redirected to. Not persisted.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ProviderConfiguration is the admin-managed payment provider setup.
type ProviderConfiguration struct {
	SecretKey        string   `json:"secretKey" validate:"required"`
	AllowedCountries []string `json:"allowedCountries" validate:"dive,iso3166_1_alpha2"`
}

// Total sums price*quantity over items in minor units. All items must share one currency;
// the currency is returned upper-cased. Overflow is reported, never wrapped.
func Total(items []LineItem) (int64, string, error) {
	var total int64
	currency := ""
	for i, item := range items {
		if item.Price < 0 || item.Quantity < 1 {
			return 0, "", fmt.Errorf("%w: item %d: price must be >= 0 and quantity >= 1", apperrors.ErrInvalidInput, i)
		}
		c := strings.ToUpper(item.Currency)
		if currency == "" {
			currency = c
		} else if c != currency {
			return 0, "", fmt.Errorf("%w: mixed currencies %s and %s", apperrors.ErrInvalidInput, currency, c)
		}
		if item.Price != 0 && item.Quantity > math.MaxInt64/item.Price {
			return 0, "", fmt.Errorf("%w: item %d: amount overflows", apperrors.ErrInvalidInput, i)
		}
		line := item.Price * item.Quantity
		if total > math.MaxInt64-line {
			return 0, "", fmt.Errorf("%w: cart total overflows", apperrors.ErrInvalidInput)
		}
		total += line
	}
	return total, currency, nil
}

// SessionOutcome is the settled result of a checkout session: exactly one of Completed or
// Failed. Unsettled sessions are reported as apperrors.ErrNotSettled instead.
type SessionOutcome interface {
	isSessionOutcome()
}

// Completed means the provider collected payment. Buyer is the anonymous principal when the
// session carried no client reference. RawResponse is the canonical provider body.
type Completed struct {
	Buyer       identity.Principal
	RawResponse string
}

// PurchasedProductIDs returns the catalog product ids recorded on the session when it was
// created from a catalog cart. Sessions built from free-form line items carry none.
func (c Completed) PurchasedProductIDs() []string {
	var body struct {
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(c.RawResponse), &body); err != nil {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(body.Metadata[MetadataProductIDs], ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Failed means the session can no longer be paid.
type Failed struct {
	Error string
}

func (Completed) isSessionOutcome() {}
func (Failed) isSessionOutcome()    {}

// Match dispatches on the outcome variant.
func Match[T any](o SessionOutcome, completed func(Completed) T, failed func(Failed) T) T {
	switch v := o.(type) {
	case Completed:
		return completed(v)
	case Failed:
		return failed(v)
	default:
		panic(fmt.Sprintf("unknown session outcome %T", o))
	}
}
