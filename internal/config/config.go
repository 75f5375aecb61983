// Package config holds the settings of the gribidx tool.
//
// Configuration is a small JSON document stored under the home directory.
// A missing file is not an error: Load returns Default(). Command line
// flags override whatever the file says; that merge happens in main.
package config

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"gribidx/internal/runkey"

	"github.com/go-co-op/gocron/v2"
)

// Defaults.
const (
	DefaultSourceType    = "s3"
	DefaultConcurrency   = 4
	DefaultScheduleCron  = "30 3,9,15,21 * * *"
	DefaultScheduleHours = "0-24"
	DefaultScheduleDelay = "3h30m"
	DefaultWatchDebounce = "500ms"
)

// Config is the full tool configuration.
type Config struct {
	Source SourceConfig `json:"source"`

	// Concurrency bounds parallel index builds within one run.
	Concurrency int `json:"concurrency,omitempty"`

	// RateLimit caps object opens per second. Zero means unlimited.
	RateLimit float64 `json:"rateLimit,omitempty"`

	// Burst is the limiter bucket size. Defaults to 1 when RateLimit is set.
	Burst int `json:"burst,omitempty"`

	Cache    CacheConfig    `json:"cache"`
	Schedule ScheduleConfig `json:"schedule"`
	Watch    WatchConfig    `json:"watch"`
}

// SourceConfig selects the byte-stream provider. Params are passed to the
// provider factory unchanged (e.g. "bucket", "region", "dir").
type SourceConfig struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params,omitempty"`
}

// CacheConfig controls the on-disk index cache.
type CacheConfig struct {
	Disabled bool `json:"disabled,omitempty"`
}

// ScheduleConfig controls the cycle follower.
type ScheduleConfig struct {
	// Cron is a 5-field or 6-field (seconds first) cron expression.
	Cron string `json:"cron,omitempty"`

	// Hours is a forecast hour list, e.g. "0-24" or "0-120/3".
	Hours string `json:"hours,omitempty"`

	// Delay is how long after a cycle starts before its output is
	// expected to be complete. Go duration syntax.
	Delay string `json:"delay,omitempty"`
}

// WatchConfig controls the local directory watcher.
type WatchConfig struct {
	Patterns []string `json:"patterns,omitempty"`
	Debounce string   `json:"debounce,omitempty"`
}

// Default returns the configuration used when no file exists: the public
// NOAA bucket on S3, anonymous access.
func Default() *Config {
	cfg := &Config{
		Source: SourceConfig{
			Type: DefaultSourceType,
			Params: map[string]string{
				"bucket":    runkey.DefaultBucket,
				"anonymous": "true",
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero fields.
func (c *Config) applyDefaults() {
	if c.Source.Type == "" {
		c.Source.Type = DefaultSourceType
	}
	if c.Source.Params == nil {
		c.Source.Params = make(map[string]string)
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RateLimit > 0 && c.Burst == 0 {
		c.Burst = 1
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultScheduleCron
	}
	if c.Schedule.Hours == "" {
		c.Schedule.Hours = DefaultScheduleHours
	}
	if c.Schedule.Delay == "" {
		c.Schedule.Delay = DefaultScheduleDelay
	}
	if c.Watch.Debounce == "" {
		c.Watch.Debounce = DefaultWatchDebounce
	}
}

// Validate checks the configuration. sourceTypes lists the provider types
// the binary was built with; an empty list skips that check.
func (c *Config) Validate(sourceTypes []string) error {
	if c.Source.Type == "" {
		return errors.New("source type is required")
	}
	if len(sourceTypes) > 0 && !slices.Contains(sourceTypes, c.Source.Type) {
		return fmt.Errorf("unknown source type %q (available: %v)", c.Source.Type, sourceTypes)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency %d: must be positive", c.Concurrency)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("invalid rateLimit %g: must not be negative", c.RateLimit)
	}
	if c.Burst < 0 {
		return fmt.Errorf("invalid burst %d: must not be negative", c.Burst)
	}
	if err := c.Schedule.ValidateCron(); err != nil {
		return err
	}
	if _, err := c.Schedule.ParseHours(); err != nil {
		return err
	}
	if _, err := c.Schedule.ParseDelay(); err != nil {
		return err
	}
	if _, err := c.Watch.ParseDebounce(); err != nil {
		return err
	}
	return nil
}

// ValidateCron checks the Cron field. Supports both 5-field and 6-field
// syntax.
func (s ScheduleConfig) ValidateCron() error {
	cr := gocron.NewDefaultCron(true)
	if err := cr.IsValid(s.Cron, time.UTC, time.Now()); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", s.Cron, err)
	}
	return nil
}

// ParseHours returns the forecast hours to index.
func (s ScheduleConfig) ParseHours() ([]int, error) {
	hours, err := runkey.ParseHours(s.Hours)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule hours: %w", err)
	}
	return hours, nil
}

// ParseDelay returns the cycle delay.
func (s ScheduleConfig) ParseDelay() (time.Duration, error) {
	d, err := time.ParseDuration(s.Delay)
	if err != nil {
		return 0, fmt.Errorf("invalid schedule delay: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid schedule delay %s: must not be negative", d)
	}
	return d, nil
}

// ParseDebounce returns the watch debounce interval.
func (w WatchConfig) ParseDebounce() (time.Duration, error) {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid watch debounce: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid watch debounce %s: must be positive", d)
	}
	return d, nil
}
