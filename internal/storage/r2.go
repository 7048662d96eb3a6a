package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"lpr-dashboard/internal/config"
)

var ErrNotConfigured = errors.New("r2 storage is not configured")

// R2Client archives uploaded videos in a Cloudflare R2 bucket through the
// S3 API.
type R2Client struct {
	client        *s3.Client
	bucket        string
	endpoint      string
	publicBaseURL string
}

// NewR2Client returns ErrNotConfigured unless endpoint, bucket and both keys
// are set.
func NewR2Client(cfg config.ArchiveConfig) (*R2Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &R2Client{
		client:        client,
		bucket:        cfg.Bucket,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// Upload puts body under key and returns the object URL.
func (r *R2Client) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if r == nil || r.client == nil {
		return "", ErrNotConfigured
	}
	if size <= 0 {
		return "", fmt.Errorf("r2 upload %s: empty body", key)
	}

	_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("r2 upload %s: %w", key, err)
	}
	return r.objectURL(key), nil
}

// ArchiveVideo stores an uploaded video under uploads/YYYY/MM/DD/<uuid>-<name>
// and returns the object key and its URL.
func (r *R2Client) ArchiveVideo(ctx context.Context, filename string, body io.Reader, size int64, contentType string) (key, url string, err error) {
	key = ArchiveKey(time.Now().UTC(), uuid.New(), filename)
	url, err = r.Upload(ctx, key, body, size, contentType)
	if err != nil {
		return "", "", err
	}
	return key, url, nil
}

func ArchiveKey(at time.Time, id uuid.UUID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == "/" {
		name = "video"
	}
	return fmt.Sprintf("uploads/%s/%s-%s", at.Format("2006/01/02"), id.String(), name)
}

func (r *R2Client) objectURL(key string) string {
	key = strings.TrimLeft(key, "/")
	if r.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", r.publicBaseURL, r.bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", r.endpoint, r.bucket, key)
}
