// Package storage keeps copies of finalized bills in object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
	infraconfig "github.com/retail/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const (
	defaultEndpoint = "http://localhost:9000"
	defaultRegion   = "us-east-1"
	contentTypeJSON = "application/json"
)

// Ensure S3BillArchive implements BillArchive
var _ salesapp.BillArchive = (*S3BillArchive)(nil)

// S3BillArchive stores each finalized bill as a JSON document keyed by its
// serial number. It works with any S3-compatible storage (AWS S3, MinIO, etc.)
type S3BillArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3BillArchiveOption is a functional option for configuring S3BillArchive
type S3BillArchiveOption func(*S3BillArchive)

// WithLogger sets a custom logger for S3BillArchive
func WithLogger(logger *zap.Logger) S3BillArchiveOption {
	return func(a *S3BillArchive) {
		a.logger = logger
	}
}

// NewS3BillArchive creates a new S3BillArchive from configuration.
func NewS3BillArchive(cfg *infraconfig.ArchiveConfig, opts ...S3BillArchiveOption) (*S3BillArchive, error) {
	if cfg == nil {
		return nil, errors.New("archive configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("archive access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("archive secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	archive := &S3BillArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

// normalizeEndpoint adds the scheme the SDK needs
func normalizeEndpoint(endpoint string, useSSL bool) (string, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if useSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid archive endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
// Call this during application startup to ensure the bucket is ready.
func (a *S3BillArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating bill archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		// Another instance may have created it first
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Key returns the object key of a serial number
func (a *S3BillArchive) Key(serial string) string {
	return archiveKey(a.prefix, serial)
}

func archiveKey(prefix, serial string) string {
	return prefix + serial + ".json"
}

// Store uploads the bill as JSON. Only finalized bills carry a serial number.
func (a *S3BillArchive) Store(ctx context.Context, bill *sales.Bill) error {
	body, err := encodeBill(bill)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(bill.SerialNumber)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentTypeJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to upload bill %s: %w", bill.SerialNumber, err)
	}
	return nil
}

// Fetch downloads an archived bill, NotFound if it was never archived
func (a *S3BillArchive) Fetch(ctx context.Context, serial string) (*sales.Bill, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.Key(serial)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, shared.NewNotFoundError("Archived bill", serial)
		}
		return nil, fmt.Errorf("failed to download bill %s: %w", serial, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read bill %s: %w", serial, err)
	}
	var bill sales.Bill
	if err := json.Unmarshal(data, &bill); err != nil {
		return nil, fmt.Errorf("failed to decode bill %s: %w", serial, err)
	}
	return &bill, nil
}

// GetBucket returns the bucket name
func (a *S3BillArchive) GetBucket() string {
	return a.bucket
}

func encodeBill(bill *sales.Bill) ([]byte, error) {
	if bill == nil || bill.SerialNumber == "" {
		return nil, errors.New("only finalized bills can be archived")
	}
	body, err := json.Marshal(bill)
	if err != nil {
		return nil, fmt.Errorf("failed to encode bill %s: %w", bill.SerialNumber, err)
	}
	return body, nil
}
