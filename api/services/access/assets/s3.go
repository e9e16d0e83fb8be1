// Package assets signs short-lived download URLs for product files kept in S3-compatible
// object storage.
package assets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Config locates the bucket. Endpoint is optional for AWS itself and required for other
// S3-compatible providers.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	TTL       time.Duration
}

// S3Signer presigns GetObject requests. Signing is local; no request reaches the bucket.
type S3Signer struct {
	client *s3.S3
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func NewS3Signer(cfg Config) (*S3Signer, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("asset bucket is required")
	}
	awsCfg := aws.NewConfig().WithRegion(cfg.Region).WithS3ForcePathStyle(cfg.Endpoint != "")
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Signer{client: s3.New(sess), bucket: cfg.Bucket, ttl: ttl, now: time.Now}, nil
}

// SignURL returns a presigned GET URL for handle and its expiry.
func (s *S3Signer) SignURL(_ context.Context, handle string) (string, time.Time, error) {
	key := strings.TrimLeft(handle, "/")
	if key == "" {
		return "", time.Time{}, fmt.Errorf("empty asset handle")
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	expires := s.now().Add(s.ttl)
	url, err := req.Presign(s.ttl)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return url, expires, nil
}
