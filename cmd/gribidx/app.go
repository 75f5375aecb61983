package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"gribidx/internal/cache"
	"gribidx/internal/config"
	"gribidx/internal/home"
	"gribidx/internal/indexer"
	"gribidx/internal/logging"
	"gribidx/internal/source"
	"gribidx/internal/source/azure"
	"gribidx/internal/source/file"
	"gribidx/internal/source/gcs"
	"gribidx/internal/source/s3"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

// app is the state shared by all subcommands, set up in PersistentPreRunE.
type app struct {
	stdout io.Writer
	stderr io.Writer

	logger *slog.Logger
	home   home.Dir
	cfg    *config.Config
	out    *printer
}

// buildFactories returns the source provider registry.
func buildFactories() map[string]source.Factory {
	return map[string]source.Factory{
		"s3":    s3.NewFactory(),
		"gcs":   gcs.NewFactory(),
		"azure": azure.NewFactory(),
		"file":  file.NewFactory(),
	}
}

func sourceTypes() []string {
	return slices.Sorted(maps.Keys(buildFactories()))
}

// setup builds the logger, resolves the home directory and loads the
// configuration with flag overrides applied.
func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()

	levelFlag, _ := flags.GetString("log-level")
	level, overrides, err := logging.ParseLevels(levelFlag)
	if err != nil {
		return err
	}
	formatFlag, _ := flags.GetString("log-format")
	handler, err := logging.NewHandler(a.stderr, formatFlag)
	if err != nil {
		return err
	}
	filter := logging.NewComponentFilterHandler(handler, level)
	for component, l := range overrides {
		filter.SetLevel(component, l)
	}
	a.logger = slog.New(filter)

	outFlag, _ := flags.GetString("output")
	if a.out, err = newPrinter(a.stdout, outFlag); err != nil {
		return err
	}

	homeFlag, _ := flags.GetString("home")
	if homeFlag != "" {
		a.home = home.New(homeFlag)
	} else if a.home, err = home.Default(); err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = a.home.ConfigPath()
	}
	if a.cfg, err = config.Load(configPath); err != nil {
		return err
	}
	if err := applyFlags(cmd, a.cfg); err != nil {
		return err
	}
	return a.cfg.Validate(sourceTypes())
}

// applyFlags overrides configuration values with explicitly set flags.
// Selecting a different source type discards the file's source params;
// the cloud providers then default to NOAA's public buckets, read
// anonymously.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("source") {
		typ, _ := flags.GetString("source")
		if typ != cfg.Source.Type {
			cfg.Source = config.SourceConfig{Type: typ, Params: make(map[string]string)}
			if typ == "s3" || typ == "gcs" {
				cfg.Source.Params[s3.ParamAnonymous] = "true"
			}
		}
	}
	params := cfg.Source.Params

	if flags.Changed("bucket") {
		v, _ := flags.GetString("bucket")
		switch cfg.Source.Type {
		case "azure":
			params[azure.ParamContainer] = v
		case "file":
			params[file.ParamDir] = v
		default:
			params[s3.ParamBucket] = v
		}
	}
	if flags.Changed("region") {
		v, _ := flags.GetString("region")
		params[s3.ParamRegion] = v
	}
	if flags.Changed("endpoint") {
		v, _ := flags.GetString("endpoint")
		if cfg.Source.Type == "azure" {
			params[azure.ParamAccountURL] = v
		} else {
			params[s3.ParamEndpoint] = v
		}
	}
	if flags.Changed("anonymous") {
		v, _ := flags.GetBool("anonymous")
		params[s3.ParamAnonymous] = fmt.Sprint(v)
	}
	if flags.Changed("no-cache") {
		v, _ := flags.GetBool("no-cache")
		cfg.Cache.Disabled = v
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit, _ = flags.GetFloat64("rate-limit")
		if cfg.RateLimit > 0 && cfg.Burst == 0 {
			cfg.Burst = 1
		}
	}
	return nil
}

// newCache returns the index cache, or nil when caching is disabled.
func (a *app) newCache() (*cache.Cache, error) {
	if a.cfg.Cache.Disabled {
		return nil, nil
	}
	if err := a.home.EnsureExists(); err != nil {
		return nil, err
	}
	return cache.New(a.home.CacheDir(), a.logger), nil
}

// newIndexer wires source, rate limiter and cache into an Indexer. The
// returned function releases the source.
func (a *app) newIndexer(ctx context.Context) (*indexer.Indexer, func(), error) {
	opener, err := source.New(ctx, buildFactories(), a.cfg.Source.Type, a.cfg.Source.Params, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s source: %w", a.cfg.Source.Type, err)
	}
	if a.cfg.RateLimit > 0 {
		opener = source.Limit(opener, rate.NewLimiter(rate.Limit(a.cfg.RateLimit), a.cfg.Burst))
	}
	closeFn := func() {
		if err := source.Close(opener); err != nil {
			a.logger.Warn("close source", "error", err)
		}
	}

	c, err := a.newCache()
	if err != nil {
		closeFn()
		return nil, nil, err
	}

	ix := indexer.New(indexer.Config{
		Opener:      opener,
		Cache:       c,
		Logger:      a.logger,
		Concurrency: a.cfg.Concurrency,
	})
	return ix, closeFn, nil
}
