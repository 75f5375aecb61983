package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gribidx/internal/config"
	"gribidx/internal/idx"
	"gribidx/internal/indexer"
	"gribidx/internal/runkey"
	"gribidx/internal/schedule"
	"gribidx/internal/watch"

	"github.com/spf13/cobra"
)

var errNoRecord = errors.New("no record")

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:           "gribidx",
		Short:         "Byte ranges of GRIB2 records from idx sidecar files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup(cmd)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.String("home", "", "home directory (default: platform config dir)")
	pf.String("config", "", "config file (default: <home>/config.json)")
	pf.String("log-level", "info", "log level (debug, info, warn, error), optionally with per-component overrides: warn,indexer=debug")
	pf.String("log-format", "text", "log format: text or json")
	pf.StringP("output", "o", "table", "output format: table or json")
	pf.String("source", "", "source type: s3, gcs, azure or file")
	pf.String("bucket", "", "bucket (s3, gcs), container (azure) or directory (file)")
	pf.String("region", "", "S3 region")
	pf.String("endpoint", "", "S3/GCS endpoint or Azure account URL")
	pf.Bool("anonymous", false, "unsigned requests (public buckets)")
	pf.Bool("no-cache", false, "do not read or write the index cache")
	pf.Int("concurrency", 0, "parallel fetches per run")
	pf.Float64("rate-limit", 0, "maximum object opens per second (0: unlimited)")

	rootCmd.AddCommand(
		newKeyCmd(a),
		newIndexCmd(a),
		newRangeCmd(a),
		newParseCmd(a),
		newWatchCmd(a),
		newScheduleCmd(a),
		newCacheCmd(a),
		newConfigCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				_, _ = fmt.Fprintln(stdout, version)
			},
		},
	)

	return rootCmd
}

func parseRunHour(runArg, hourArg string) (runkey.Key, error) {
	run, err := runkey.ParseRun(runArg)
	if err != nil {
		return runkey.Key{}, err
	}
	hour, err := strconv.Atoi(hourArg)
	if err != nil {
		return runkey.Key{}, fmt.Errorf("%w: %q", runkey.ErrInvalidHour, hourArg)
	}
	return runkey.New(run, hour)
}

func newKeyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "key RUN HOUR",
		Short: "Print the object keys of one forecast hour",
		Long:  "Print the GRIB2 and idx object keys for RUN (YYYYMMDDHH) and forecast HOUR.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseRunHour(args[0], args[1])
			if err != nil {
				return err
			}
			return a.out.key(k)
		},
	}
}

func newIndexCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index RUN",
		Short: "Index the idx files of a model run",
		Long:  "Fetch and index the idx files of RUN (YYYYMMDDHH, or \"latest\") for the selected forecast hours.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hoursFlag, _ := cmd.Flags().GetString("hours")
			hours, err := runkey.ParseHours(hoursFlag)
			if err != nil {
				return err
			}

			var run time.Time
			if args[0] == "latest" {
				delay, err := a.cfg.Schedule.ParseDelay()
				if err != nil {
					return err
				}
				run = runkey.LatestRun(time.Now(), delay)
			} else if run, err = runkey.ParseRun(args[0]); err != nil {
				return err
			}

			ix, closeFn, err := a.newIndexer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := ix.IndexRun(cmd.Context(), run, hours)
			if err != nil {
				return err
			}
			return a.out.results(results)
		},
	}
	cmd.Flags().String("hours", "0", "forecast hours, e.g. 0-24 or 0-120/3")
	return cmd
}

func newRangeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "range RUN HOUR VARIABLE LEVEL",
		Short: "Print the byte range of one record",
		Example: `  gribidx range 2022121518 1 CLWMR "1 hybrid level"
  curl -H "Range: $(gribidx range -o json 2022121518 1 TMP "2 m above ground" | jq -r .header)" ...`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseRunHour(args[0], args[1])
			if err != nil {
				return err
			}
			ix, closeFn, err := a.newIndexer(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			g, err := ix.Index(cmd.Context(), k.IndexKey())
			if err != nil {
				return err
			}
			variable, level := args[2], args[3]
			r, ok := g.Lookup(variable, level)
			if !ok {
				return fmt.Errorf("%w for %s at %q in %s", errNoRecord, variable, level, k.IndexKey())
			}
			return a.out.rangeOf(k.DataKey(), variable, level, r)
		},
	}
}

func newParseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FILE",
		Short: "Parse a local idx file (\"-\" for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			g, err := idx.Parse(cmd.Context(), r)
			if err != nil {
				return err
			}
			variable, _ := cmd.Flags().GetString("variable")
			return a.out.entries(g, variable)
		},
	}
	cmd.Flags().String("variable", "", "only list this variable")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [PATTERN...]",
		Short: "Index local idx files as they appear",
		Long:  "Watch glob patterns (doublestar syntax, e.g. /data/**/*.idx) and index matching files as they are written. Patterns default to the watch section of the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := args
			if len(patterns) == 0 {
				patterns = a.cfg.Watch.Patterns
			}
			debounce, err := a.cfg.Watch.ParseDebounce()
			if err != nil {
				return err
			}
			w, err := watch.New(watch.Config{
				Patterns: patterns,
				Debounce: debounce,
				Logger:   a.logger,
				Handler:  a.out.watchEvent,
			})
			if err != nil {
				return err
			}
			return w.Run(cmd.Context())
		},
	}
}

func newScheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Index each new model run as it becomes available",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			hours, err := a.cfg.Schedule.ParseHours()
			if err != nil {
				return err
			}
			delay, err := a.cfg.Schedule.ParseDelay()
			if err != nil {
				return err
			}
			ix, closeFn, err := a.newIndexer(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			f, err := schedule.New(schedule.Config{
				Indexer: ix,
				Cron:    a.cfg.Schedule.Cron,
				Hours:   hours,
				Delay:   delay,
				Logger:  a.logger,
				OnRun: func(run time.Time, results []indexer.Result) {
					_ = a.out.results(results)
				},
			})
			if err != nil {
				return err
			}

			if now, _ := cmd.Flags().GetBool("now"); now {
				if _, err := f.Poll(ctx); err != nil {
					a.logger.Warn("initial poll failed", "error", err)
				}
			}
			if err := f.Start(ctx); err != nil {
				_ = f.Stop()
				return err
			}
			if next, err := f.NextRun(); err == nil {
				a.logger.Info("next poll", "at", next.Format(time.RFC3339))
			}

			<-ctx.Done()
			return stopFollower(f)
		},
	}
	cmd.Flags().Bool("now", false, "poll once immediately before waiting for the schedule")
	return cmd
}

func stopFollower(f *schedule.Follower) error {
	if err := f.Stop(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the index cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all cached indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.Cache.Disabled = false
			c, err := a.newCache()
			if err != nil {
				return err
			}
			n, err := c.Clear()
			if err != nil {
				return err
			}
			return a.out.cleared(c.Dir(), n)
		},
	})
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration (file plus flags)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.out.json(a.cfg)
			},
		},
		&cobra.Command{
			Use:   "init",
			Short: "Write the effective configuration to the config file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, _ := cmd.Flags().GetString("config")
				if path == "" {
					path = a.home.ConfigPath()
				}
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file %s already exists", path)
				}
				if err := config.Save(path, a.cfg); err != nil {
					return err
				}
				a.logger.Info("config written", "path", path)
				return nil
			},
		},
	)
	return cmd
}
