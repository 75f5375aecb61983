// Package azure opens idx files from Azure Blob Storage.
//
// NOAA mirrors GFS output to the public container "gfs" in the "noaagfs"
// storage account, with the same key layout as the AWS bucket.
package azure

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"gribidx/internal/logging"
	"gribidx/internal/source"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// Factory parameter keys.
const (
	ParamAccountURL = "accountUrl"
	ParamContainer  = "container"
)

// Defaults point at NOAA's public GFS mirror.
const (
	DefaultAccountURL = "https://noaagfs.blob.core.windows.net"
	DefaultContainer  = "gfs"
)

// Config configures an Azure source. Access is anonymous; the container
// must allow public reads.
type Config struct {
	AccountURL string
	Container  string
	Logger     *slog.Logger
}

// Source opens blobs in one container.
type Source struct {
	client    *azblob.Client
	container string
	logger    *slog.Logger
}

// New builds the blob client. Empty fields take the NOAA defaults.
func New(cfg Config) (*Source, error) {
	if cfg.AccountURL == "" {
		cfg.AccountURL = DefaultAccountURL
	}
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}
	client, err := azblob.NewClientWithNoCredential(cfg.AccountURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure blob client: %w", err)
	}
	return &Source{
		client:    client,
		container: cfg.Container,
		logger:    logging.Default(cfg.Logger).With("component", "source", "type", "azure", "container", cfg.Container),
	}, nil
}

// NewFactory returns a factory for Azure sources.
func NewFactory() source.Factory {
	return func(_ context.Context, params map[string]string, logger *slog.Logger) (source.Opener, error) {
		return New(Config{
			AccountURL: params[ParamAccountURL],
			Container:  params[ParamContainer],
			Logger:     logger,
		})
	}
}

func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			s.logger.Debug("blob not found", "key", key)
			return nil, fmt.Errorf("%w: %s/%s", source.ErrNotFound, s.container, key)
		}
		s.logger.Debug("open failed", "key", key, "error", err)
		return nil, fmt.Errorf("download %s/%s: %w", s.container, key, err)
	}
	return resp.Body, nil
}
