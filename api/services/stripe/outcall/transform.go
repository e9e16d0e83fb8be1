// Package outcall canonicalises responses from outbound HTTP calls so that every replica
// issuing the same request agrees byte-for-byte on the result.
//
// Transform is a pure function: it performs no I/O, reads no clock, random source or
// mutable state, and never fails. Validation of what the provider actually said is the
// caller's job.
package outcall

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"
)

// Header is a single response header.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawResponse is a response as received from the network.
type RawResponse struct {
	Status  int      `json:"status"`
	Headers []Header `json:"headers"`
	Body    []byte   `json:"body"`
}

// CanonicalResponse is the replica-agnostic projection of a RawResponse.
type CanonicalResponse struct {
	Status  int      `json:"status"`
	Headers []Header `json:"headers"`
	Body    []byte   `json:"body"`
}

// retained lists the headers every caller needs.
var retained = headerSet("content-type")

// volatile headers differ between replicas and are never retained, even on request.
var volatile = headerSet(
	"age", "alt-svc", "cf-ray", "connection", "date", "etag", "expires",
	"idempotency-key", "keep-alive", "last-modified", "original-request", "report-to",
	"request-id", "server-timing", "set-cookie", "stripe-request-id", "traceparent",
	"tracestate", "via", "x-amzn-trace-id", "x-cloud-trace-context", "x-request-id",
	"x-stripe-routing-context-priority-tier", "x-trace-id",
)

func headerSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Transform projects resp onto its canonical form. context is an opaque caller payload; when
// it names extra headers (comma or newline separated) those are retained too, unless volatile.
func Transform(context []byte, resp RawResponse) CanonicalResponse {
	keep := extraHeaders(context)

	headers := make([]Header, 0, len(resp.Headers))
	for _, h := range resp.Headers {
		name := strings.ToLower(strings.TrimSpace(h.Name))
		if name == "" || volatile[name] {
			continue
		}
		if !retained[name] && !keep[name] {
			continue
		}
		headers = append(headers, Header{Name: name, Value: strings.TrimSpace(h.Value)})
	}
	sort.SliceStable(headers, func(i, j int) bool {
		if headers[i].Name != headers[j].Name {
			return headers[i].Name < headers[j].Name
		}
		return headers[i].Value < headers[j].Value
	})

	var body []byte
	if resp.Body != nil {
		body = make([]byte, len(resp.Body))
		copy(body, resp.Body)
	}

	return CanonicalResponse{Status: resp.Status, Headers: headers, Body: body}
}

func extraHeaders(context []byte) map[string]bool {
	if len(context) == 0 {
		return nil
	}
	fields := strings.FieldsFunc(string(context), func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
	keep := make(map[string]bool, len(fields))
	for _, f := range fields {
		if name := strings.ToLower(strings.TrimSpace(f)); name != "" {
			keep[name] = true
		}
	}
	return keep
}

// Header returns the first value of the named header, if retained.
func (c CanonicalResponse) Header(name string) string {
	name = strings.ToLower(name)
	for _, h := range c.Headers {
		if h.Name == name {
			return h.Value
		}
	}
	return ""
}

// IsSuccess reports a 2xx status.
func (c CanonicalResponse) IsSuccess() bool { return c.Status >= 200 && c.Status < 300 }

// Fingerprint is a hex SHA-256 over a length-prefixed encoding of c. Replicas that agree on
// the canonical response agree on the fingerprint.
func (c CanonicalResponse) Fingerprint() string {
	h := sha256.New()
	var n [8]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint64(n[:], uint64(len(b)))
		h.Write(n[:])
		h.Write(b)
	}
	binary.BigEndian.PutUint64(n[:], uint64(int64(c.Status)))
	h.Write(n[:])
	binary.BigEndian.PutUint64(n[:], uint64(len(c.Headers)))
	h.Write(n[:])
	for _, hd := range c.Headers {
		write([]byte(hd.Name))
		write([]byte(hd.Value))
	}
	write(c.Body)
	return hex.EncodeToString(h.Sum(nil))
}
