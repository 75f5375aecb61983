// Package gcs opens idx files from Google Cloud Storage.
//
// NOAA mirrors GFS output to the public bucket "global-forecast-system"
// with the same key layout as the AWS bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gribidx/internal/logging"
	"gribidx/internal/source"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Factory parameter keys.
const (
	ParamBucket    = "bucket"
	ParamEndpoint  = "endpoint"
	ParamAnonymous = "anonymous"
)

// DefaultBucket is NOAA's public GFS bucket on GCS.
const DefaultBucket = "global-forecast-system"

// Config configures a GCS source.
type Config struct {
	Bucket   string // empty: DefaultBucket
	Endpoint string
	// Anonymous skips credential discovery. Only works for public buckets.
	Anonymous bool
	Logger    *slog.Logger
}

// Source opens objects in one bucket.
type Source struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
	logger *slog.Logger
}

// New builds the storage client. Credentials come from Application Default
// Credentials unless cfg.Anonymous is set.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}

	var opts []option.ClientOption
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &Source{
		client: client,
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		logger: logging.Default(cfg.Logger).With("component", "source", "type", "gcs", "bucket", cfg.Bucket),
	}, nil
}

// NewFactory returns a factory for GCS sources.
func NewFactory() source.Factory {
	return func(ctx context.Context, params map[string]string, logger *slog.Logger) (source.Opener, error) {
		anonymous, err := source.BoolParam(params, ParamAnonymous, false)
		if err != nil {
			return nil, err
		}
		return New(ctx, Config{
			Bucket:    params[ParamBucket],
			Endpoint:  params[ParamEndpoint],
			Anonymous: anonymous,
			Logger:    logger,
		})
	}
}

func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			s.logger.Debug("object not found", "key", key)
			return nil, fmt.Errorf("%w: gs://%s/%s", source.ErrNotFound, s.name, key)
		}
		s.logger.Debug("open failed", "key", key, "error", err)
		return nil, fmt.Errorf("read gs://%s/%s: %w", s.name, key, err)
	}
	return r, nil
}

// Close releases the client's connections.
func (s *Source) Close() error {
	return s.client.Close()
}
