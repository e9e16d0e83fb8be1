package outcall

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tbeaudouin05/stripe-storefront/api/services/stripe/outcall"

// Transport is an http.RoundTripper that hands callers the canonical form of every response.
// Network failures are returned as errors and never turned into response data.
type Transport struct {
	// Base performs the request. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// Context is passed to Transform for every response.
	Context []byte
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx, span := otel.Tracer(tracerName).Start(req.Context(), "outcall "+req.Method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("server.address", req.URL.Host),
		attribute.String("url.path", req.URL.Path),
	)

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "outcall failed")
		return nil, err
	}

	raw, err := FromHTTP(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "outcall body read failed")
		return nil, err
	}
	canonical := Transform(t.Context, raw)
	span.SetAttributes(
		attribute.Int("http.response.status_code", canonical.Status),
		attribute.String("outcall.fingerprint", canonical.Fingerprint()),
	)
	return canonical.toHTTP(req), nil
}

// FromHTTP drains and closes resp.Body and returns the raw response.
func FromHTTP(resp *http.Response) (RawResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return RawResponse{}, fmt.Errorf("read response body: %w", err)
	}
	var headers []Header
	for name, values := range resp.Header {
		for _, v := range values {
			headers = append(headers, Header{Name: name, Value: v})
		}
	}
	return RawResponse{Status: resp.StatusCode, Headers: headers, Body: body}, nil
}

func (c CanonicalResponse) toHTTP(req *http.Request) *http.Response {
	header := make(http.Header, len(c.Headers))
	for _, h := range c.Headers {
		header.Add(h.Name, h.Value)
	}
	return &http.Response{
		Status:        strconv.Itoa(c.Status) + " " + http.StatusText(c.Status),
		StatusCode:    c.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(c.Body)),
		ContentLength: int64(len(c.Body)),
		Request:       req,
	}
}
