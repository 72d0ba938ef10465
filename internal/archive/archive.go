// Package archive stores fetched article text in S3-compatible object
// storage for later audit of what the analyzer actually saw.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/veridia/newstrust/internal/tracing"
)

// Configuration errors.
var (
	ErrMissingBucket    = errors.New("bucket name is required")
	ErrMissingKeyID     = errors.New("access key ID is required")
	ErrMissingSecretKey = errors.New("secret access key is required")
	ErrMissingEndpoint  = errors.New("endpoint is required")
)

// Archiver is the content-archive contract the pipeline consumes.
// Archiving is best effort; callers log failures and continue.
type Archiver interface {
	PutArticleText(ctx context.Context, articleID string, text string) error
}

// Config holds configuration for the archive service.
type Config struct {
	BucketName      string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// Configured reports whether any archive setting is present. The archive
// is optional; when unconfigured the pipeline runs without it.
func (c Config) Configured() bool {
	return c.BucketName != "" || c.AccessKeyID != "" || c.SecretAccessKey != "" || c.Endpoint != ""
}

// Service archives article text to an S3-compatible bucket.
type Service struct {
	s3Client   *s3.Client
	bucketName string
}

var _ Archiver = (*Service)(nil)

// NewService creates an archive service with R2-compatible configuration.
func NewService(cfg Config) (*Service, error) {
	if cfg.BucketName == "" {
		return nil, ErrMissingBucket
	}
	if cfg.AccessKeyID == "" {
		return nil, ErrMissingKeyID
	}
	if cfg.SecretAccessKey == "" {
		return nil, ErrMissingSecretKey
	}
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}

	s3Client := s3.New(s3.Options{
		Region: "auto",
		Credentials: aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		BaseEndpoint: aws.String(cfg.Endpoint),
		UsePathStyle: true,
	})

	return &Service{
		s3Client:   s3Client,
		bucketName: cfg.BucketName,
	}, nil
}

// PutArticleText stores the fetched text under articles/<id>.txt.
func (s *Service) PutArticleText(ctx context.Context, articleID string, text string) error {
	ctx, endSpan := tracing.StartExternalSpan(ctx, "object-storage", "put_article_text")

	key := ObjectKey(articleID)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	endSpan(err)
	if err != nil {
		return fmt.Errorf("archive: put %s: %w", key, err)
	}
	return nil
}

// ObjectKey returns the bucket key for an article's archived text.
func ObjectKey(articleID string) string {
	return "articles/" + articleID + ".txt"
}
