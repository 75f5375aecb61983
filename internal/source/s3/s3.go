// Package s3 opens idx files from Amazon S3 or any S3-compatible store.
//
// The NOAA GFS archive is a public bucket (noaa-gfs-bdp-pds in us-east-1),
// so anonymous access is supported and is the default for that bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gribidx/internal/logging"
	"gribidx/internal/runkey"
	"gribidx/internal/source"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Factory parameter keys.
const (
	ParamBucket          = "bucket"
	ParamRegion          = "region"
	ParamEndpoint        = "endpoint"
	ParamPathStyle       = "pathStyle"
	ParamAnonymous       = "anonymous"
	ParamAccessKeyID     = "accessKeyId"
	ParamSecretAccessKey = "secretAccessKey"
	ParamSessionToken    = "sessionToken"
)

// DefaultRegion is used when the default provider chain yields no region.
const DefaultRegion = "us-east-1"

// DefaultBucket is the NOAA GFS archive.
const DefaultBucket = runkey.DefaultBucket

// Config configures an S3 source.
type Config struct {
	Bucket   string // empty: DefaultBucket
	Region   string // empty: default provider chain, then DefaultRegion
	Endpoint string // empty: AWS
	// PathStyle addresses objects as <endpoint>/<bucket>/<key>. Most
	// S3-compatible servers need it.
	PathStyle bool
	// Anonymous sends unsigned requests. Only works for public buckets.
	Anonymous bool
	// Static credentials. When empty (and not Anonymous), the default
	// credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	Logger *slog.Logger
}

// Source opens objects in one bucket.
type Source struct {
	client *s3.Client
	bucket string
	logger *slog.Logger
}

// New resolves AWS configuration and builds the client. It does not
// contact S3.
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	logger := logging.Default(cfg.Logger).With("component", "source", "type", "s3", "bucket", cfg.Bucket)

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	switch {
	case cfg.Anonymous:
		opts = append(opts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case cfg.AccessKeyID != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	logger.Debug("s3 source ready", "region", awsCfg.Region, "anonymous", cfg.Anonymous)
	return &Source{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// NewFactory returns a factory for S3 sources.
func NewFactory() source.Factory {
	return func(ctx context.Context, params map[string]string, logger *slog.Logger) (source.Opener, error) {
		anonymous, err := source.BoolParam(params, ParamAnonymous, false)
		if err != nil {
			return nil, err
		}
		pathStyle, err := source.BoolParam(params, ParamPathStyle, false)
		if err != nil {
			return nil, err
		}
		return New(ctx, Config{
			Bucket:          params[ParamBucket],
			Region:          params[ParamRegion],
			Endpoint:        params[ParamEndpoint],
			PathStyle:       pathStyle,
			Anonymous:       anonymous,
			AccessKeyID:     params[ParamAccessKeyID],
			SecretAccessKey: params[ParamSecretAccessKey],
			SessionToken:    params[ParamSessionToken],
			Logger:          logger,
		})
	}
}

func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			s.logger.Debug("object not found", "key", key)
			return nil, fmt.Errorf("%w: s3://%s/%s", source.ErrNotFound, s.bucket, key)
		}
		s.logger.Debug("open failed", "key", key, "error", err)
		return nil, fmt.Errorf("get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
