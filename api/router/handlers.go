package router

import (
	"net/http"

	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/services/catalog"
	"github.com/tbeaudouin05/stripe-storefront/api/services/fulfillment"
	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
	stripeapp "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/app"
	"github.com/tbeaudouin05/stripe-storefront/api/services/stripe/outcall"
)

type checkoutRequest struct {
	Items      []stripeapp.LineItem `json:"items"`
	SuccessURL string               `json:"successUrl"`
	CancelURL  string               `json:"cancelUrl"`
}

type cartCheckoutRequest struct {
	Items      []catalog.CartEntry `json:"items"`
	SuccessURL string              `json:"successUrl"`
	CancelURL  string              `json:"cancelUrl"`
}

type checkoutResponse struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

type cartTotalResponse struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// outcomeResponse flattens stripeapp.SessionOutcome; Outcome is "completed" or "failed".
type outcomeResponse struct {
	Outcome     string `json:"outcome"`
	Buyer       string `json:"buyer,omitempty"`
	RawResponse string `json:"rawResponse,omitempty"`
	Error       string `json:"error,omitempty"`
}

type transformRequest struct {
	Context  []byte              `json:"context"`
	Response outcall.RawResponse `json:"response"`
}

type transformResponse struct {
	Response    outcall.CanonicalResponse `json:"response"`
	Fingerprint string                    `json:"fingerprint"`
}

type inviteRequest struct {
	Username  string `json:"username"`
	Status    string `json:"status"`
	ProductID string `json:"productId"`
	OrderID   string `json:"orderId"`
	Buyer     string `json:"buyer"`
}

type inviteRecord struct {
	ProductID string `json:"productId"`
	OrderID   string `json:"orderId"`
	Buyer     string `json:"buyer"`
	Username  string `json:"username"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

type inviteList struct {
	Records []inviteRecord `json:"records"`
}

func toInviteRecord(r inviteapp.Record) inviteRecord {
	return inviteRecord{
		ProductID: r.ProductID,
		OrderID:   r.OrderID,
		Buyer:     r.Buyer.String(),
		Username:  r.Username,
		Status:    string(r.Status),
		Message:   r.Status.Message(),
		CreatedAt: r.CreatedAt.UnixMilli(),
	}
}

func toInviteList(records []inviteapp.Record) inviteList {
	out := inviteList{Records: make([]inviteRecord, 0, len(records))}
	for _, r := range records {
		out.Records = append(out.Records, toInviteRecord(r))
	}
	return out
}

// buyerOf parses the buyer named in an admin request; blank stays anonymous and is rejected
// by the ledger.
func buyerOf(s string) identity.Principal {
	p, _ := identity.Parse(s)
	return p
}

func (h *handlers) createCheckoutSession(r *http.Request, _ map[string]string) (int, any, error) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	caller := identity.FromContext(r.Context())
	s, err := h.services.Payments.CreateCheckoutSession(r.Context(), caller, req.Items, req.SuccessURL, req.CancelURL)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, checkoutResponse{SessionID: s.ID, URL: s.URL}, nil
}

func (h *handlers) createCartCheckout(r *http.Request, _ map[string]string) (int, any, error) {
	var req cartCheckoutRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	items, err := catalog.LineItems(r.Context(), h.services.Catalog, req.Items)
	if err != nil {
		return 0, nil, err
	}
	caller := identity.FromContext(r.Context())
	s, err := h.services.Payments.CreateCheckoutSession(r.Context(), caller, items, req.SuccessURL, req.CancelURL)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, checkoutResponse{SessionID: s.ID, URL: s.URL}, nil
}

func (h *handlers) cartTotal(r *http.Request, _ map[string]string) (int, any, error) {
	var req cartCheckoutRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	total, currency, err := catalog.CartTotal(r.Context(), h.services.Catalog, req.Items)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, cartTotalResponse{Total: total, Currency: currency}, nil
}

func (h *handlers) getSessionStatus(r *http.Request, params map[string]string) (int, any, error) {
	outcome, err := h.services.Payments.GetSessionStatus(r.Context(), params["session_id"])
	if err != nil {
		return 0, nil, err
	}
	resp := stripeapp.Match(outcome,
		func(c stripeapp.Completed) outcomeResponse {
			return outcomeResponse{Outcome: "completed", Buyer: c.Buyer.String(), RawResponse: c.RawResponse}
		},
		func(f stripeapp.Failed) outcomeResponse {
			return outcomeResponse{Outcome: "failed", Error: f.Error}
		},
	)
	return http.StatusOK, resp, nil
}

func (h *handlers) confirmPurchase(r *http.Request, _ map[string]string) (int, any, error) {
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	ids, err := h.services.Fulfillment.ConfirmPurchase(r.Context(), identity.FromContext(r.Context()), req.SessionID)
	if err != nil {
		return 0, nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return http.StatusOK, map[string][]string{"productIds": ids}, nil
}

func (h *handlers) isConfigured(r *http.Request, _ map[string]string) (int, any, error) {
	ok, err := h.services.Payments.IsConfigured(r.Context())
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]bool{"configured": ok}, nil
}

func (h *handlers) setConfiguration(r *http.Request, _ map[string]string) (int, any, error) {
	var cfg stripeapp.ProviderConfiguration
	if err := decode(r, &cfg); err != nil {
		return 0, nil, err
	}
	if err := h.services.Payments.SetConfiguration(r.Context(), identity.FromContext(r.Context()), cfg); err != nil {
		return 0, nil, err
	}
	return http.StatusOK, map[string]bool{"configured": true}, nil
}

func (h *handlers) transform(r *http.Request, _ map[string]string) (int, any, error) {
	var req transformRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	canonical := outcall.Transform(req.Context, req.Response)
	return http.StatusOK, transformResponse{Response: canonical, Fingerprint: canonical.Fingerprint()}, nil
}

func (h *handlers) createInvite(r *http.Request, _ map[string]string) (int, any, error) {
	var req inviteRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	in := inviteapp.CreateInput{
		Username:  req.Username,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		Buyer:     buyerOf(req.Buyer),
	}
	if req.Status != "" {
		st, err := inviteapp.ParseStatus(req.Status)
		if err != nil {
			return 0, nil, err
		}
		in.Status = st
	}
	rec, err := h.services.Invites.Create(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, toInviteRecord(rec), nil
}

func (h *handlers) updateInvite(r *http.Request, _ map[string]string) (int, any, error) {
	var req inviteRequest
	if err := decode(r, &req); err != nil {
		return 0, nil, err
	}
	st, err := inviteapp.ParseStatus(req.Status)
	if err != nil {
		return 0, nil, err
	}
	rec, err := h.services.Invites.Transition(r.Context(), identity.FromContext(r.Context()), inviteapp.UpdateInput{
		Username:  req.Username,
		Status:    st,
		ProductID: req.ProductID,
		OrderID:   req.OrderID,
		Buyer:     buyerOf(req.Buyer),
	})
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toInviteRecord(rec), nil
}

func (h *handlers) listInvites(r *http.Request, _ map[string]string) (int, any, error) {
	records, err := h.services.Invites.List(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toInviteList(records), nil
}

func (h *handlers) listMyInvites(r *http.Request, _ map[string]string) (int, any, error) {
	records, err := h.services.Invites.ListMine(r.Context(), identity.FromContext(r.Context()))
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, toInviteList(records), nil
}

func (h *handlers) claimInvite(r *http.Request, _ map[string]string) (int, any, error) {
	var in fulfillment.ClaimInput
	if err := decode(r, &in); err != nil {
		return 0, nil, err
	}
	rec, err := h.services.Fulfillment.ClaimInvite(r.Context(), identity.FromContext(r.Context()), in)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusCreated, toInviteRecord(rec), nil
}

func (h *handlers) productAccess(r *http.Request, params map[string]string) (int, any, error) {
	product, err := h.services.Catalog.Product(r.Context(), params["product_id"])
	if err != nil {
		return 0, nil, err
	}
	d, err := h.services.Access.Decide(r.Context(), identity.FromContext(r.Context()), product)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, d, nil
}

func (h *handlers) productDownload(r *http.Request, params map[string]string) (int, any, error) {
	product, err := h.services.Catalog.Product(r.Context(), params["product_id"])
	if err != nil {
		return 0, nil, err
	}
	link, err := h.services.Access.Download(r.Context(), identity.FromContext(r.Context()), product)
	if err != nil {
		return 0, nil, err
	}
	return http.StatusOK, link, nil
}
