// Package runkey builds object storage keys for GFS model output.
//
// GFS runs four times a day (00, 06, 12, 18 UTC). Each run writes one GRIB2
// object per forecast hour plus an idx sidecar next to it:
//
//	gfs.<YYYYMMDD>/<HH>/atmos/gfs.t<HH>z.pgrb2.0p25.f<FFF>
//	gfs.<YYYYMMDD>/<HH>/atmos/gfs.t<HH>z.pgrb2.0p25.f<FFF>.idx
package runkey

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBucket is the NOAA Open Data bucket on AWS.
	DefaultBucket = "noaa-gfs-bdp-pds"

	// CycleHours is the interval between model runs.
	CycleHours = 6

	// MaxHour is the last forecast hour GFS publishes.
	MaxHour = 384

	runLayout = "2006010215"
)

var (
	ErrInvalidRun  = errors.New("invalid model run")
	ErrInvalidHour = errors.New("invalid forecast hour")
	ErrInvalidKey  = errors.New("invalid object key")
)

var indexKeyRE = regexp.MustCompile(`^gfs\.(\d{8})/(\d{2})/atmos/gfs\.t(\d{2})z\.pgrb2\.0p25\.f(\d{3})\.idx$`)

// Key identifies one forecast hour of one model run.
type Key struct {
	Run  time.Time
	Hour int
}

// New validates run and hour. run is converted to UTC and must fall exactly
// on a cycle boundary.
func New(run time.Time, hour int) (Key, error) {
	run = run.UTC()
	if run.Minute() != 0 || run.Second() != 0 || run.Nanosecond() != 0 || run.Hour()%CycleHours != 0 {
		return Key{}, fmt.Errorf("%w: %s is not on a %d-hour cycle", ErrInvalidRun, run.Format(time.RFC3339), CycleHours)
	}
	if hour < 0 || hour > MaxHour {
		return Key{}, fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidHour, hour, MaxHour)
	}
	return Key{Run: run, Hour: hour}, nil
}

// DataKey returns the key of the GRIB2 object.
func (k Key) DataKey() string {
	hh := k.Run.Format("15")
	return fmt.Sprintf("gfs.%s/%s/atmos/gfs.t%sz.pgrb2.0p25.f%03d", k.Run.Format("20060102"), hh, hh, k.Hour)
}

// IndexKey returns the key of the idx sidecar.
func (k Key) IndexKey() string {
	return k.DataKey() + ".idx"
}

func (k Key) String() string {
	return fmt.Sprintf("%s+%03d", k.Run.Format(runLayout), k.Hour)
}

// ParseRun parses a run time written as YYYYMMDDHH.
func ParseRun(s string) (time.Time, error) {
	if len(s) != len(runLayout) {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYYMMDDHH)", ErrInvalidRun, s)
	}
	t, err := time.ParseInLocation(runLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want YYYYMMDDHH)", ErrInvalidRun, s)
	}
	if t.Hour()%CycleHours != 0 {
		return time.Time{}, fmt.Errorf("%w: %q is not on a %d-hour cycle", ErrInvalidRun, s, CycleHours)
	}
	return t, nil
}

// ParseIndexKey is the inverse of Key.IndexKey.
func ParseIndexKey(key string) (Key, error) {
	m := indexKeyRE.FindStringSubmatch(key)
	if m == nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if m[2] != m[3] {
		return Key{}, fmt.Errorf("%w: %q: directory hour %s does not match file hour %s", ErrInvalidKey, key, m[2], m[3])
	}
	run, err := ParseRun(m[1] + m[2])
	if err != nil {
		return Key{}, err
	}
	hour, _ := strconv.Atoi(m[4])
	return New(run, hour)
}

// LatestRun returns the most recent cycle that started at least delay
// before now. Output for a cycle appears gradually over a few hours, so a
// delay of 3-4 hours is typical.
func LatestRun(now time.Time, delay time.Duration) time.Time {
	t := now.UTC().Add(-delay)
	return t.Truncate(CycleHours * time.Hour)
}

// ParseHours parses a forecast hour list such as "0-6,12,24-48/6".
// Each comma-separated item is a single hour, an inclusive range, or a
// range with a step. The result is sorted and free of duplicates.
func ParseHours(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty hour list", ErrInvalidHour)
	}

	seen := make(map[int]bool)
	var hours []int
	add := func(h int) error {
		if h < 0 || h > MaxHour {
			return fmt.Errorf("%w: %d (want 0..%d)", ErrInvalidHour, h, MaxHour)
		}
		if !seen[h] {
			seen[h] = true
			hours = append(hours, h)
		}
		return nil
	}

	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		rangePart, stepPart, hasStep := strings.Cut(item, "/")
		step := 1
		if hasStep {
			n, err := strconv.Atoi(stepPart)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w: bad step in %q", ErrInvalidHour, item)
			}
			step = n
		}

		lo, hi, isRange := strings.Cut(rangePart, "-")
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHour, item)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidHour, item)
			}
		} else if hasStep {
			return nil, fmt.Errorf("%w: step without range in %q", ErrInvalidHour, item)
		}
		if to < from {
			return nil, fmt.Errorf("%w: descending range %q", ErrInvalidHour, item)
		}
		for h := from; h <= to; h += step {
			if err := add(h); err != nil {
				return nil, err
			}
		}
	}

	slices.Sort(hours)
	return hours, nil
}
