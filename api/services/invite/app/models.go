package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
)

// Status is the lifecycle state of an invite request.
type Status string

const (
	StatusPending           Status = "pending"
	StatusGranted           Status = "granted"
	StatusExpired           Status = "expired"
	StatusUsernameIncorrect Status = "usernameIncorrect"
)

// Statuses lists every valid status.
var Statuses = []Status{StatusPending, StatusGranted, StatusExpired, StatusUsernameIncorrect}

// ParseStatus accepts exactly one of the four status spellings.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown invite status %q", apperrors.ErrInvalidInput, s)
}

// Message is the buyer-facing explanation of the status.
func (s Status) Message() string {
	switch s {
	case StatusGranted:
		return "Access granted - check your TradingView invites"
	case StatusPending:
		return "Pending admin approval"
	case StatusExpired:
		return "Access expired"
	case StatusUsernameIncorrect:
		return "Username incorrect - please contact support"
	default:
		return "Unknown status"
	}
}

// Key identifies an invite record. Unique across the ledger.
type Key struct {
	ProductID string
	OrderID   string
	Buyer     identity.Principal
}

func (k Key) String() string {
	return k.ProductID + "/" + k.OrderID + "/" + k.Buyer.String()
}

// Record is one invite request. Only Status changes after creation.
type Record struct {
	Key
	Username  string
	Status    Status
	CreatedAt time.Time
}

// CreateInput is the payload of Service.Create. An empty Status means pending.
type CreateInput struct {
	Username  string `validate:"required"`
	Status    Status
	ProductID string `validate:"required"`
	OrderID   string `validate:"required"`
	Buyer     identity.Principal
}

// UpdateInput is the payload of Service.Transition. Username is optional; when set it must
// match the stored one.
type UpdateInput struct {
	Username  string
	Status    Status `validate:"required"`
	ProductID string `validate:"required"`
	OrderID   string `validate:"required"`
	Buyer     identity.Principal
}

func (in *CreateInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.OrderID = strings.TrimSpace(in.OrderID)
}

func (in *UpdateInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.OrderID = strings.TrimSpace(in.OrderID)
}
