// Package wayspeed implements the way speed map: a hot-reloadable,
// CSV-backed table from an external way id to a speed in kilometers per
// hour, with optional mph-to-kph conversion on load.
package wayspeed

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tophatmaps/routeannotator/internal/csvstream"
	"github.com/tophatmaps/routeannotator/internal/ids"
	"github.com/tophatmaps/routeannotator/internal/obs"
)

const (
	reloadGuardMaxFailures = 3
	reloadGuardCooldown    = 30 * time.Second

	// mphToKph is the conversion factor applied to rows whose unit column
	// is "mph".
	mphToKph = 1.609
)

// Map is a read-mostly, atomically swappable table of way speeds.
type Map struct {
	table   atomic.Pointer[map[ids.ExternalWayID]ids.Speed]
	guard   *obs.ReloadGuard
	metrics *obs.Metrics
	logger  *zap.Logger
}

// Option configures a Map at construction time.
type Option func(*Map)

// WithMetrics attaches a metrics sink.
func WithMetrics(m *obs.Metrics) Option {
	return func(wm *Map) { wm.metrics = m }
}

// WithLogger attaches a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(wm *Map) { wm.logger = l }
}

// New returns an empty Map.
func New(opts ...Option) *Map {
	wm := &Map{
		guard:  obs.NewReloadGuard(reloadGuardMaxFailures, reloadGuardCooldown),
		logger: zap.NewNop(),
	}
	empty := make(map[ids.ExternalWayID]ids.Speed)
	wm.table.Store(&empty)
	for _, opt := range opts {
		opt(wm)
	}
	return wm
}

// Get returns the speed posted for way.
func (wm *Map) Get(way ids.ExternalWayID) (ids.Speed, bool) {
	table := *wm.table.Load()
	speed, ok := table[way]
	return speed, ok
}

// Len reports the number of ways currently loaded.
func (wm *Map) Len() int {
	return len(*wm.table.Load())
}

// LoadCSV parses a "way_id,name,unit,speed" CSV file and atomically
// replaces the map's contents. The unit column is either "mph", "kph", or
// empty (bare kph); an "mph" row is converted with round(speed * 1.609).
// A row whose speed, after any mph conversion, would reach ids.InvalidSpeed
// is dropped (a warning is logged and the rejected-row counter incremented)
// but the rest of the file still loads; a malformed row (bad field count,
// non-numeric way id or speed, unrecognized unit) aborts the load before
// any swap, leaving the previous table untouched.
func (wm *Map) LoadCSV(path string) error {
	if !wm.guard.Allow() {
		return fmt.Errorf("wayspeed: reload guard open, refusing to load %s", path)
	}

	next := make(map[ids.ExternalWayID]ids.Speed)

	f, err := csvstream.Open(path)
	if err != nil {
		wm.guard.RecordFailure()
		wm.metrics.IncSpeedMapReloadError()
		return err
	}
	defer f.Close()

	err = f.Each(func(fields [][]byte) error {
		if len(fields) != 4 {
			return fmt.Errorf("expected 4 fields, got %d", len(fields))
		}
		way, err := strconv.ParseUint(string(fields[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid way id: %w", err)
		}

		speed, ok, err := parseSpeed(string(fields[2]), string(fields[3]))
		if err != nil {
			return fmt.Errorf("invalid speed: %w", err)
		}
		if !ok {
			wm.metrics.IncSpeedMapRowRejected()
			wm.logger.Warn("wayspeed: dropping row, speed conversion out of range",
				zap.String("path", path),
				zap.Uint64("way_id", way),
				zap.ByteString("unit", fields[2]),
				zap.ByteString("speed", fields[3]),
			)
			return nil
		}

		next[ids.ExternalWayID(way)] = speed
		return nil
	})
	if err != nil {
		wm.guard.RecordFailure()
		wm.metrics.IncSpeedMapReloadError()
		wm.logger.Warn("wayspeed: reload failed", zap.String("path", path), zap.Error(err))
		return err
	}

	wm.table.Store(&next)
	wm.guard.RecordSuccess()
	wm.metrics.IncSpeedMapReload()
	return nil
}

// parseSpeed interprets a speed value under the given unit keyword
// ("mph", "kph", or empty for bare kph), converting mph to kph with
// round(speed * 1.609). ok is false, with a nil error, when the value
// parses but, after any mph conversion, would reach the sentinel
// invalid-speed value; err is non-nil only for a non-numeric speed column
// or an unrecognized unit.
func parseSpeed(unit, raw string) (speed ids.Speed, ok bool, err error) {
	unit = strings.ToLower(strings.TrimSpace(unit))
	raw = strings.TrimSpace(raw)

	switch unit {
	case "mph":
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid mph speed: %w", err)
		}
		converted := math.Round(float64(value) * mphToKph)
		if converted < 0 || converted >= float64(ids.InvalidSpeed) {
			return 0, false, nil
		}
		return ids.Speed(converted), true, nil
	case "kph", "":
		value, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("invalid speed: %w", err)
		}
		if value >= uint64(ids.InvalidSpeed) {
			return 0, false, nil
		}
		return ids.Speed(value), true, nil
	default:
		return 0, false, fmt.Errorf("unrecognized unit %q", unit)
	}
}
