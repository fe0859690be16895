// Package storage publishes finished recordings to S3-compatible object
// storage (AWS, R2, MinIO).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"github.com/nadzzz/narrator/internal/config"
)

// ErrNoDataTransferred is returned when an upload reports success but the
// object is missing or empty afterwards.
var ErrNoDataTransferred = errors.New("no data transferred")

const partSize = 10 * 1024 * 1024

// S3 uploads files to a single bucket.
type S3 struct {
	bucket    string
	prefix    string
	publicURL string
	svc       *s3.S3
	uploader  *s3manager.Uploader
}

// NewS3 creates an S3 publisher from config.
func NewS3(cfg config.S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("no s3 bucket configured")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("no s3 endpoint configured")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(region),
		Endpoint:         aws.String(cfg.Endpoint),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to s3: %w", err)
	}

	slog.Debug("s3 configuration",
		"endpoint", cfg.Endpoint,
		"region", region,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
		"public", cfg.PublicURL,
	)

	return &S3{
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
		svc:       s3.New(sess),
		uploader: s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
			u.PartSize = partSize
			u.LeavePartsOnError = false
		}),
	}, nil
}

// Publish uploads the file at path under prefix+basename and returns where
// it can be fetched from.
func (s *S3) Publish(ctx context.Context, path string) (string, error) {
	key := s.prefix + filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := s.Upload(ctx, f, key); err != nil {
		return "", err
	}
	return s.Location(key), nil
}

// Upload streams body to key and checks that the object landed.
func (s *S3) Upload(ctx context.Context, body io.Reader, key string) error {
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String("audio/wav"),
	})
	if err != nil {
		return fmt.Errorf("failed putobject: %w", err)
	}

	exists, err := s.KeyExists(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check put succeeded: %w", err)
	}
	if !exists {
		return ErrNoDataTransferred
	}
	return nil
}

// KeyExists reports whether key holds a non-empty object.
func (s *S3) KeyExists(ctx context.Context, key string) (bool, error) {
	out, err := s.svc.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchKey, "NotFound":
				return false, nil
			}
		}
		return false, fmt.Errorf("failed headobject: %w", err)
	}
	// a zero-byte object is treated as missing
	if out.ContentLength != nil && *out.ContentLength == 0 {
		return false, nil
	}
	return true, nil
}

// Location returns the public URL for key, or an s3:// URI when no public
// URL is configured.
func (s *S3) Location(key string) string {
	if s.publicURL != "" {
		return s.publicURL + "/" + key
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}
