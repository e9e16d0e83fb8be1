package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/logging"
	gw "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/gateway"
)

// Service defines the payment operations: opening a checkout session, reconciling its outcome
// and managing provider credentials. None of them touch the entitlement ledger.
type Service interface {
	CreateCheckoutSession(ctx context.Context, buyer identity.Principal, items []LineItem, successURL, cancelURL string) (CheckoutSession, error)
	GetSessionStatus(ctx context.Context, sessionID string) (SessionOutcome, error)
	IsConfigured(ctx context.Context) (bool, error)
	SetConfiguration(ctx context.Context, caller identity.Principal, cfg ProviderConfiguration) error
}

const expiredMessage = "checkout session expired"

var validate = validator.New()

type serviceImpl struct {
	gw       gw.CheckoutGateway
	configs  ConfigStore
	admins   identity.Authorizer
	fallback ProviderConfiguration
	cache    OutcomeCache
	cacheTTL time.Duration
}

// Option customises the service.
type Option func(*serviceImpl)

// WithEnvironmentConfiguration sets the configuration used when none has been stored.
func WithEnvironmentConfiguration(cfg ProviderConfiguration) Option {
	return func(s *serviceImpl) { s.fallback = cfg }
}

// WithOutcomeCache caches settled outcomes for ttl.
func WithOutcomeCache(c OutcomeCache, ttl time.Duration) Option {
	return func(s *serviceImpl) {
		if c != nil {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

func NewService(g gw.CheckoutGateway, configs ConfigStore, admins identity.Authorizer, opts ...Option) Service {
	s := &serviceImpl{gw: g, configs: configs, admins: admins, cache: noCache{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type checkoutRequest struct {
	Items      []LineItem `validate:"required,min=1,dive"`
	SuccessURL string     `validate:"required,url"`
	CancelURL  string     `validate:"required,url"`
}

// CreateCheckoutSession opens a hosted checkout page for items and returns its redirect URL.
func (s *serviceImpl) CreateCheckoutSession(ctx context.Context, buyer identity.Principal, items []LineItem, successURL, cancelURL string) (CheckoutSession, error) {
	req := checkoutRequest{Items: items, SuccessURL: successURL, CancelURL: cancelURL}
	if err := validate.Struct(req); err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := checkRedirect(successURL); err != nil {
		return CheckoutSession{}, err
	}
	if err := checkRedirect(cancelURL); err != nil {
		return CheckoutSession{}, err
	}
	total, currency, err := Total(items)
	if err != nil {
		return CheckoutSession{}, err
	}

	cfg, err := s.configuration(ctx)
	if err != nil {
		return CheckoutSession{}, err
	}

	var productIDs []string
	seen := map[string]bool{}
	gwItems := make([]gw.Item, 0, len(items))
	for _, item := range items {
		for _, id := range item.ProductIDs {
			if !seen[id] {
				seen[id] = true
				productIDs = append(productIDs, id)
			}
		}
		gwItems = append(gwItems, gw.Item{
			Name:        item.ProductName,
			Description: item.Description,
			Currency:    strings.ToLower(item.Currency),
			UnitAmount:  item.Price,
			Quantity:    item.Quantity,
		})
	}

	var metadata map[string]string
	if len(productIDs) > 0 {
		metadata = map[string]string{MetadataProductIDs: strings.Join(productIDs, ",")}
	}

	log := logging.FromContext(ctx)
	session, err := s.gw.CreateSession(ctx, gw.CreateSessionRequest{
		SecretKey:         cfg.SecretKey,
		Items:             gwItems,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		ClientReferenceID: buyer.String(),
		AllowedCountries:  cfg.AllowedCountries,
		Metadata:          metadata,
	})
	if err != nil {
		log.Warn("checkout session creation failed", "err", err)
		return CheckoutSession{}, fmt.Errorf("%w: error creating checkout session: %v", apperrors.ErrProvider, err)
	}
	if session.URL == "" {
		return CheckoutSession{}, fmt.Errorf("%w: provider returned no redirect url for session %s", apperrors.ErrProvider, session.ID)
	}
	log.Info("checkout session created", "session_id", session.ID, "total", total, "currency", currency, "items", len(items))
	return CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// GetSessionStatus reconciles a checkout session with the provider. Open or unpaid sessions
// yield apperrors.ErrNotSettled so callers can poll again.
func (s *serviceImpl) GetSessionStatus(ctx context.Context, sessionID string) (SessionOutcome, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", apperrors.ErrInvalidInput)
	}
	log := logging.FromContext(ctx).With("session_id", sessionID)

	key := outcomeKey(sessionID)
	if cached, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Warn("outcome cache read failed", "err", err)
	} else if ok {
		if outcome, err := decodeOutcome(cached); err == nil {
			return outcome, nil
		}
		log.Warn("discarding undecodable cached outcome")
	}

	cfg, err := s.configuration(ctx)
	if err != nil {
		return nil, err
	}
	session, err := s.gw.GetSession(ctx, cfg.SecretKey, sessionID)
	if err != nil {
		if errors.Is(err, gw.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: checkout session %s", apperrors.ErrNotFound, sessionID)
		}
		log.Warn("checkout session lookup failed", "err", err)
		return nil, fmt.Errorf("%w: error retrieving checkout session: %v", apperrors.ErrProvider, err)
	}

	outcome, err := outcomeOf(session)
	if err != nil {
		return nil, err
	}
	if encoded, err := encodeOutcome(outcome); err == nil {
		if err := s.cache.Set(ctx, key, encoded, s.cacheTTL); err != nil {
			log.Warn("outcome cache write failed", "err", err)
		}
	}
	log.Info("checkout session settled", "completed", IsCompleted(outcome))
	return outcome, nil
}

func outcomeOf(session gw.Session) (SessionOutcome, error) {
	switch session.Status {
	case "complete":
		switch session.PaymentStatus {
		case "paid", "no_payment_required":
			buyer, _ := identity.Parse(session.ClientReferenceID)
			return Completed{Buyer: buyer, RawResponse: string(session.Raw)}, nil
		}
		return nil, fmt.Errorf("%w: payment status %q", apperrors.ErrNotSettled, session.PaymentStatus)
	case "expired":
		return Failed{Error: expiredMessage}, nil
	case "open", "":
		return nil, fmt.Errorf("%w: session is still open", apperrors.ErrNotSettled)
	default:
		return nil, fmt.Errorf("%w: unexpected session status %q", apperrors.ErrProvider, session.Status)
	}
}

// IsCompleted reports whether o is a Completed outcome.
func IsCompleted(o SessionOutcome) bool {
	_, ok := o.(Completed)
	return ok
}

// IsConfigured reports whether a secret key is available. It never exposes the key.
func (s *serviceImpl) IsConfigured(ctx context.Context) (bool, error) {
	_, err := s.configuration(ctx)
	if errors.Is(err, apperrors.ErrUnconfigured) {
		return false, nil
	}
	return err == nil, err
}

// SetConfiguration stores provider credentials. Admin only.
func (s *serviceImpl) SetConfiguration(ctx context.Context, caller identity.Principal, cfg ProviderConfiguration) error {
	if s.admins == nil || !s.admins.IsAdmin(caller) {
		return fmt.Errorf("%w: only admins can configure the payment provider", apperrors.ErrUnauthorized)
	}
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	countries := make([]string, 0, len(cfg.AllowedCountries))
	for _, c := range cfg.AllowedCountries {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			countries = append(countries, c)
		}
	}
	cfg.AllowedCountries = countries
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	if err := s.configs.Save(ctx, cfg); err != nil {
		return fmt.Errorf("%w: error saving provider configuration: %v", apperrors.ErrDatabase, err)
	}
	logging.FromContext(ctx).Info("payment provider configured", "caller", caller.String(), "allowed_countries", countries)
	return nil
}

// configuration returns the stored configuration, falling back to the environment.
func (s *serviceImpl) configuration(ctx context.Context) (ProviderConfiguration, error) {
	if s.configs != nil {
		cfg, found, err := s.configs.Get(ctx)
		if err != nil {
			return ProviderConfiguration{}, fmt.Errorf("%w: error loading provider configuration: %v", apperrors.ErrDatabase, err)
		}
		if found && cfg.SecretKey != "" {
			return cfg, nil
		}
	}
	if s.fallback.SecretKey != "" {
		return s.fallback, nil
	}
	return ProviderConfiguration{}, fmt.Errorf("%w: no secret key stored or in environment", apperrors.ErrUnconfigured)
}

func checkRedirect(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: redirect url %q must be absolute http(s)", apperrors.ErrInvalidInput, raw)
	}
	return nil
}

func outcomeKey(sessionID string) string { return "checkout:outcome:" + sessionID }

type cachedOutcome struct {
	Kind  string `json:"kind"`
	Buyer string `json:"buyer,omitempty"`
	Raw   string `json:"raw,omitempty"`
	Error string `json:"error,omitempty"`
}

func encodeOutcome(o SessionOutcome) ([]byte, error) {
	c := Match(o,
		func(c Completed) cachedOutcome {
			return cachedOutcome{Kind: "completed", Buyer: c.Buyer.String(), Raw: c.RawResponse}
		},
		func(f Failed) cachedOutcome {
			return cachedOutcome{Kind: "failed", Error: f.Error}
		},
	)
	return json.Marshal(c)
}

func decodeOutcome(b []byte) (SessionOutcome, error) {
	var c cachedOutcome
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	switch c.Kind {
	case "completed":
		buyer, _ := identity.Parse(c.Buyer)
		return Completed{Buyer: buyer, RawResponse: c.Raw}, nil
	case "failed":
		return Failed{Error: c.Error}, nil
	}
	return nil, fmt.Errorf("unknown outcome kind %q", c.Kind)
}
