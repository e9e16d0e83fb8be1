package router

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/tbeaudouin05/stripe-storefront/api/apperrors"
	bootstrap "github.com/tbeaudouin05/stripe-storefront/api/bootstrap"
	"github.com/tbeaudouin05/stripe-storefront/api/config"
	"github.com/tbeaudouin05/stripe-storefront/api/identity"
	"github.com/tbeaudouin05/stripe-storefront/api/logging"
)

// bodyCodec reads and writes plain Go DTOs; errorCodec renders google.rpc.Status payloads.
var (
	bodyCodec  = &runtime.JSONBuiltin{}
	errorCodec = &runtime.JSONPb{MarshalOptions: protojson.MarshalOptions{EmitUnpopulated: true}}
)

// NewRouter returns the central HTTP router for the API using grpc-gateway.
func NewRouter() http.Handler {
	// Initialize app dependencies (non-fatal if it fails here; handlers re-check).
	if err := bootstrap.Ensure(); err != nil {
		slog.Error("bootstrap ensure failed", "err", err)
	}
	return New(bootstrap.Get())
}

// New builds the router over s. A nil s answers every route with UNCONFIGURED.
func New(s *bootstrap.Services) http.Handler {
	mux := runtime.NewServeMux(runtime.WithMarshalerOption(runtime.MIMEWildcard, bodyCodec))
	h := &handlers{services: s, mux: mux}

	routes := []struct {
		method, path string
		fn           handlerFunc
	}{
		{http.MethodPost, "/api/checkout/sessions", h.createCheckoutSession},
		{http.MethodPost, "/api/checkout/cart", h.createCartCheckout},
		{http.MethodPost, "/api/cart/total", h.cartTotal},
		{http.MethodGet, "/api/checkout/sessions/{session_id}", h.getSessionStatus},
		{http.MethodPost, "/api/purchases/confirm", h.confirmPurchase},
		{http.MethodGet, "/api/stripe/configured", h.isConfigured},
		{http.MethodPut, "/api/stripe/configuration", h.setConfiguration},
		{http.MethodPost, "/api/outcall/transform", h.transform},
		{http.MethodPost, "/api/invites", h.createInvite},
		{http.MethodPut, "/api/invites", h.updateInvite},
		{http.MethodGet, "/api/invites", h.listInvites},
		{http.MethodGet, "/api/invites/mine", h.listMyInvites},
		{http.MethodPost, "/api/invites/claim", h.claimInvite},
		{http.MethodGet, "/api/products/{product_id}/access", h.productAccess},
		{http.MethodGet, "/api/products/{product_id}/download", h.productDownload},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.path, h.wrap(rt.fn)); err != nil {
			slog.Error("failed to register route", "method", rt.method, "path", rt.path, "err", err)
		}
	}
	if err := mux.HandlePath(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		h.write(w, http.StatusOK, map[string]string{"status": "ok"})
	}); err != nil {
		slog.Error("failed to register route", "path", "/healthz", "err", err)
	}
	return withRequestContext(mux)
}

// withRequestContext attaches the request id and caller identity to the request context.
func withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithRequestID(r.Context(), r.Header.Get(config.RequestIDHeader))
		w.Header().Set(config.RequestIDHeader, logging.RequestID(ctx))
		if p, err := identity.Parse(r.Header.Get(config.UserIDHeader)); err == nil {
			ctx = identity.WithPrincipal(ctx, p)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type handlerFunc func(r *http.Request, params map[string]string) (status int, body any, err error)

type handlers struct {
	services *bootstrap.Services
	mux      *runtime.ServeMux
}

func (h *handlers) wrap(fn handlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if h.services == nil {
			h.fail(w, r, fmt.Errorf("%w: services not initialized", apperrors.ErrUnconfigured))
			return
		}
		code, body, err := fn(r, params)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.write(w, code, body)
	}
}

func (h *handlers) write(w http.ResponseWriter, code int, body any) {
	b, err := bodyCodec.Marshal(body)
	if err != nil {
		slog.Error("failed to marshal response", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", bodyCodec.ContentType(body))
	w.WriteHeader(code)
	w.Write(b)
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	st := apperrors.Status(err)
	log := logging.FromContext(r.Context()).With("method", r.Method, "path", r.URL.Path, "reason", apperrors.Reason(err))
	if st.Code() == codes.Internal {
		log.Error("request failed", "err", err)
	} else {
		log.Info("request rejected", "err", err)
	}
	runtime.HTTPError(r.Context(), h.mux, errorCodec, w, r, st.Err())
}

func decode(r *http.Request, v any) error {
	if err := bodyCodec.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}
