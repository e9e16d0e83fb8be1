package outcall

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedSession is a provider response as two replicas would see it: same body, different
// volatile metadata.
func capturedSession(requestID, date string) RawResponse {
	return RawResponse{
		Status: 200,
		Headers: []Header{
			{Name: "Date", Value: date},
			{Name: "Request-Id", Value: requestID},
			{Name: "Set-Cookie", Value: "__stripe_orig_props=" + requestID},
			{Name: "Content-Type", Value: "application/json "},
			{Name: "Stripe-Version", Value: "2020-03-02"},
			{Name: "Traceparent", Value: "00-" + requestID + "-01"},
			{Name: "X-Unknown", Value: "whatever"},
		},
		Body: []byte(`{"id":"cs_test_1","status":"complete","payment_status":"paid"}`),
	}
}

func TestTransform_ReplicasAgree(t *testing.T) {
	a := Transform(nil, capturedSession("req_A", "Mon, 19 Oct 2026 10:00:00 GMT"))
	b := Transform(nil, capturedSession("req_B", "Mon, 19 Oct 2026 10:00:01 GMT"))

	assert.Equal(t, a, b)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestTransform_ReferentiallyTransparent(t *testing.T) {
	in := capturedSession("req_A", "now")
	first := Transform([]byte("stripe-version"), in)
	second := Transform([]byte("stripe-version"), in)
	assert.Equal(t, first, second)
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())
}

func TestTransform_KeepsOnlyAllowedHeaders(t *testing.T) {
	out := Transform(nil, capturedSession("req_A", "now"))

	assert.Equal(t, 200, out.Status)
	assert.Equal(t, []Header{{Name: "content-type", Value: "application/json"}}, out.Headers)
	assert.Equal(t, `{"id":"cs_test_1","status":"complete","payment_status":"paid"}`, string(out.Body))
}

func TestTransform_NeverRetainsVolatileHeaders(t *testing.T) {
	in := capturedSession("req_A", "now")
	// Asking for volatile headers through the context must not bring them back.
	out := Transform([]byte("date, request-id\nset-cookie,traceparent,stripe-version"), in)

	for _, h := range out.Headers {
		assert.False(t, volatile[h.Name], "volatile header %q leaked", h.Name)
	}
	assert.Equal(t, "2020-03-02", out.Header("Stripe-Version"))
	assert.Equal(t, "application/json", out.Header("content-type"))
	assert.Empty(t, out.Header("date"))
}

func TestTransform_ErrorStatusPassesThrough(t *testing.T) {
	in := RawResponse{
		Status:  404,
		Headers: []Header{{Name: "Content-Type", Value: "application/json"}},
		Body:    []byte(`{"error":{"type":"invalid_request_error","code":"resource_missing"}}`),
	}
	out := Transform(nil, in)
	assert.Equal(t, 404, out.Status)
	assert.False(t, out.IsSuccess())
	assert.Equal(t, in.Body, out.Body)
}

func TestTransform_UnexpectedBodyForwardedUnchanged(t *testing.T) {
	in := RawResponse{Status: 502, Body: []byte("<html>bad gateway</html>")}
	out := Transform([]byte{0xff, 0x00, ','}, in)
	assert.Equal(t, in.Body, out.Body)
	assert.Empty(t, out.Headers)
}

func TestTransform_DoesNotAliasInput(t *testing.T) {
	in := RawResponse{Status: 200, Body: []byte("abc")}
	out := Transform(nil, in)
	in.Body[0] = 'z'
	assert.Equal(t, "abc", string(out.Body))
}

func TestTransform_HeaderOrderIsCanonical(t *testing.T) {
	ctx := []byte("x-b,x-a")
	one := Transform(ctx, RawResponse{Status: 200, Headers: []Header{{"X-B", "2"}, {"X-A", "1"}, {"x-a", "0"}}})
	two := Transform(ctx, RawResponse{Status: 200, Headers: []Header{{"x-a", "0"}, {"X-B", "2"}, {"X-A", "1"}}})
	assert.Equal(t, one, two)
	assert.Equal(t, []Header{{"x-a", "0"}, {"x-a", "1"}, {"x-b", "2"}}, one.Headers)
}

func TestFingerprint_DistinguishesResponses(t *testing.T) {
	a := CanonicalResponse{Status: 200, Body: []byte("a")}
	b := CanonicalResponse{Status: 201, Body: []byte("a")}
	c := CanonicalResponse{Status: 200, Body: []byte("b")}
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)
}

func TestTransport_CanonicalisesLiveResponses(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Request-Id", fmt.Sprintf("req_%d", calls))
		w.Header().Set("Set-Cookie", "session=abc")
		w.Header().Set("X-Internal", "1")
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":{"message":"card declined"}}`)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{}}
	var fingerprints []string
	for i := 0; i < 2; i++ {
		resp, err := client.Get(srv.URL)
		require.NoError(t, err)
		raw, err := FromHTTP(resp)
		require.NoError(t, err)

		assert.Equal(t, http.StatusPaymentRequired, raw.Status)
		assert.Equal(t, []Header{{Name: "Content-Type", Value: "application/json"}}, raw.Headers)
		assert.Equal(t, `{"error":{"message":"card declined"}}`, string(raw.Body))
		fingerprints = append(fingerprints, Transform(nil, raw).Fingerprint())
	}
	assert.Equal(t, fingerprints[0], fingerprints[1])
}

func TestTransport_PropagatesNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{}, Timeout: 20 * time.Millisecond}
	_, err := client.Get(srv.URL)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Client.Timeout") || strings.Contains(err.Error(), "deadline"))
}
