package gateway

//go:generate mockgen -destination=mock/mock_gateway.go -package=mock github.com/tbeaudouin05/stripe-storefront/api/services/stripe/gateway CheckoutGateway

import (
	"context"
	"errors"
)

// Errors returned by CheckoutGateway implementations. The app layer maps them onto the
// shared taxonomy so transports never see provider-specific types.
var (
	// ErrSessionNotFound indicates the provider does not know the session id.
	ErrSessionNotFound = errors.New("checkout session not found")
	// ErrRequestFailed indicates a network error, timeout or non-2xx provider response.
	ErrRequestFailed = errors.New("provider request failed")
)

// Item is a single line of a checkout session, amounts in minor units.
type Item struct {
	Name        string
	Description string
	Currency    string
	UnitAmount  int64
	Quantity    int64
}

// CreateSessionRequest carries everything the provider needs to open a hosted checkout page.
type CreateSessionRequest struct {
	SecretKey         string
	Items             []Item
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	AllowedCountries  []string
	Metadata          map[string]string
}

// Session is the provider's view of a checkout session. Raw holds the canonical response
// body it was decoded from.
type Session struct {
	ID                string
	URL               string
	Status            string
	PaymentStatus     string
	ClientReferenceID string
	Raw               []byte
}

// CheckoutGateway abstracts the provider calls needed by the app layer.
// Methods return values (not pointers) to keep provider types out of the domain.
type CheckoutGateway interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error)
	GetSession(ctx context.Context, secretKey, sessionID string) (Session, error)
}
