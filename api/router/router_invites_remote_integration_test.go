package router

import (
	"net/http"
	"testing"
)

// This test targets a remote deployment via grpc-gateway HTTP.
// It is skipped unless INTEGRATION_BASE_URL is provided.
func TestListMyInvitesHTTP_Remote_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in -short mode")
	}
	base := remoteBaseURL(t)

	// Without a caller identity the endpoint must refuse.
	resp, err := http.Get(base + "/api/invites/mine")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("expected non-200 for anonymous caller, got %d", resp.StatusCode)
	}
}
