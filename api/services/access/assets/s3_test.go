package assets

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Signer_SignURL(t *testing.T) {
	s, err := NewS3Signer(Config{
		Bucket:    "products",
		Region:    "auto",
		Endpoint:  "https://storage.example.com",
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		TTL:       10 * time.Minute,
	})
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return now }

	raw, expires, err := s.SignURL(context.Background(), "/guides/guide.pdf")
	require.NoError(t, err)
	assert.Equal(t, now.Add(10*time.Minute), expires)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "storage.example.com", u.Host)
	assert.Equal(t, "/products/guides/guide.pdf", u.Path)
	assert.Equal(t, "600", u.Query().Get("X-Amz-Expires"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}

func TestS3Signer_Errors(t *testing.T) {
	_, err := NewS3Signer(Config{})
	assert.Error(t, err)

	s, err := NewS3Signer(Config{Bucket: "b", Region: "us-east-1", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	_, _, err = s.SignURL(context.Background(), "")
	assert.Error(t, err)
}
