package stripegw

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go"
	"github.com/stripe/stripe-go/form"

	gw "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/gateway"
	"github.com/tbeaudouin05/stripe-storefront/api/services/stripe/outcall"
)

// client talks to the Stripe REST API directly. Every response goes through outcall.Transport,
// so decoding only ever sees canonical bytes.
type client struct {
	baseURL string
	http    *http.Client
}

// Option customises the client.
type Option func(*client)

// WithBaseURL points the client at another API host (tests, stripe-mock).
func WithBaseURL(u string) Option {
	return func(c *client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout bounds every outbound call. A timeout surfaces as gw.ErrRequestFailed.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithBaseTransport replaces the round tripper underneath the canonicalising transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *client) { c.http.Transport = &outcall.Transport{Base: rt, Context: canonicalContext} }
}

// Stripe-Version is worth keeping: it tells the decoder which payload shape it is reading.
var canonicalContext = []byte("stripe-version")

// New returns a CheckoutGateway backed by the Stripe REST API.
func New(opts ...Option) gw.CheckoutGateway {
	c := &client{
		baseURL: stripe.APIURL,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &outcall.Transport{Context: canonicalContext},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// sessionPayload is the subset of the checkout session object the app layer needs.
type sessionPayload struct {
	ID                string `json:"id"`
	URL               string `json:"url"`
	Status            string `json:"status"`
	PaymentStatus     string `json:"payment_status"`
	ClientReferenceID string `json:"client_reference_id"`
}

func (c *client) CreateSession(ctx context.Context, req gw.CreateSessionRequest) (gw.Session, error) {
	params := &stripe.CheckoutSessionParams{
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
	}
	if len(req.AllowedCountries) > 0 {
		params.ShippingAddressCollection = &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(req.AllowedCountries),
		}
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	for _, item := range req.Items {
		li := &stripe.CheckoutSessionLineItemParams{
			Name:     stripe.String(item.Name),
			Amount:   stripe.Int64(item.UnitAmount),
			Currency: stripe.String(strings.ToLower(item.Currency)),
			Quantity: stripe.Int64(item.Quantity),
		}
		if item.Description != "" {
			li.Description = stripe.String(item.Description)
		}
		params.LineItems = append(params.LineItems, li)
	}

	values := &form.Values{}
	form.AppendTo(values, params)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(values.Encode()))
	if err != nil {
		return gw.Session{}, fmt.Errorf("%w: build request: %v", gw.ErrRequestFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(httpReq, req.SecretKey)
}

func (c *client) GetSession(ctx context.Context, secretKey, sessionID string) (gw.Session, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return gw.Session{}, fmt.Errorf("%w: build request: %v", gw.ErrRequestFailed, err)
	}
	return c.do(httpReq, secretKey)
}

func (c *client) do(req *http.Request, secretKey string) (gw.Session, error) {
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return gw.Session{}, fmt.Errorf("%w: %v", gw.ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gw.Session{}, fmt.Errorf("%w: read body: %v", gw.ErrRequestFailed, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return gw.Session{}, fmt.Errorf("%w: %s", gw.ErrSessionNotFound, providerMessage(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return gw.Session{}, fmt.Errorf("%w: status %d: %s", gw.ErrRequestFailed, resp.StatusCode, providerMessage(body))
	}

	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return gw.Session{}, fmt.Errorf("%w: decode session: %v", gw.ErrRequestFailed, err)
	}
	if payload.ID == "" {
		return gw.Session{}, fmt.Errorf("%w: session id missing from response", gw.ErrRequestFailed)
	}
	return gw.Session{
		ID:                payload.ID,
		URL:               payload.URL,
		Status:            payload.Status,
		PaymentStatus:     payload.PaymentStatus,
		ClientReferenceID: payload.ClientReferenceID,
		Raw:               body,
	}, nil
}

// providerMessage extracts the human message from a Stripe error body, falling back to the
// raw text for anything else (proxies, HTML error pages).
func providerMessage(body []byte) string {
	var envelope struct {
		Error *stripe.Error `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Msg != "" {
		return envelope.Error.Msg
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
