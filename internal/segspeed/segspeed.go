// Package segspeed implements the segment speed map: a hot-reloadable,
// CSV-backed table from an ordered pair of external node ids to a speed in
// kilometers per hour.
package segspeed

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tophatmaps/routeannotator/internal/csvstream"
	"github.com/tophatmaps/routeannotator/internal/errs"
	"github.com/tophatmaps/routeannotator/internal/ids"
	"github.com/tophatmaps/routeannotator/internal/obs"
)

// reloadGuardMaxFailures and reloadGuardCooldown tune how aggressively a
// Map backs off from a CSV source that has started failing to parse.
const (
	reloadGuardMaxFailures = 3
	reloadGuardCooldown    = 30 * time.Second
)

// pairKey is the ordered (from, to) key a segment speed is stored under.
// Unlike the topology database's node-pair map, this key is not
// canonicalized: a segment's speed can legitimately differ by direction
// (a one-way street posted at a different limit inbound than outbound
// would never occur, but an uphill/downhill pair can).
type pairKey struct {
	from, to ids.ExternalNodeID
}

// Map is a read-mostly, atomically swappable table of segment speeds.
// The zero value is not usable; construct with New.
type Map struct {
	table   atomic.Pointer[map[pairKey]ids.Speed]
	guard   *obs.ReloadGuard
	metrics *obs.Metrics
	logger  *zap.Logger
}

// Option configures a Map at construction time.
type Option func(*Map)

// WithMetrics attaches a metrics sink.
func WithMetrics(m *obs.Metrics) Option {
	return func(sm *Map) { sm.metrics = m }
}

// WithLogger attaches a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(sm *Map) { sm.logger = l }
}

// New returns an empty Map.
func New(opts ...Option) *Map {
	sm := &Map{
		guard:  obs.NewReloadGuard(reloadGuardMaxFailures, reloadGuardCooldown),
		logger: zap.NewNop(),
	}
	empty := make(map[pairKey]ids.Speed)
	sm.table.Store(&empty)
	for _, opt := range opts {
		opt(sm)
	}
	return sm
}

// Get returns the speed posted for the ordered pair (from, to).
func (sm *Map) Get(from, to ids.ExternalNodeID) (ids.Speed, bool) {
	table := *sm.table.Load()
	speed, ok := table[pairKey{from: from, to: to}]
	return speed, ok
}

// GetMany returns the speed for each consecutive pair along path, in order.
// A pair with no entry reports ids.InvalidSpeed in that position.
func (sm *Map) GetMany(path []ids.ExternalNodeID) ([]ids.Speed, error) {
	if len(path) < 2 {
		return nil, errs.ErrTooShort
	}
	speeds := make([]ids.Speed, len(path)-1)
	table := *sm.table.Load()
	for i := 0; i+1 < len(path); i++ {
		if speed, ok := table[pairKey{from: path[i], to: path[i+1]}]; ok {
			speeds[i] = speed
		} else {
			speeds[i] = ids.InvalidSpeed
		}
	}
	return speeds, nil
}

// Len reports the number of segments currently loaded.
func (sm *Map) Len() int {
	return len(*sm.table.Load())
}

// LoadCSV parses a "from,to,speed" CSV file and atomically replaces the
// map's contents. Trailing columns beyond the first three are tolerated
// and ignored. A malformed row aborts the load before any swap occurs,
// leaving the previously loaded table untouched — callers relying on a live
// map during a failed reload see no interruption. A speed equal to
// ids.InvalidSpeed counts as a malformed row. Repeated failures trip the
// reload guard, which LoadCSV honors on subsequent attempts.
func (sm *Map) LoadCSV(path string) error {
	if !sm.guard.Allow() {
		return fmt.Errorf("segspeed: reload guard open, refusing to load %s", path)
	}

	next := make(map[pairKey]ids.Speed)

	f, err := csvstream.Open(path)
	if err != nil {
		sm.guard.RecordFailure()
		sm.metrics.IncSpeedMapReloadError()
		return err
	}
	defer f.Close()

	err = f.Each(func(fields [][]byte) error {
		if len(fields) < 3 {
			return fmt.Errorf("expected at least 3 fields, got %d", len(fields))
		}
		from, err := strconv.ParseUint(string(fields[0]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid from-node id: %w", err)
		}
		to, err := strconv.ParseUint(string(fields[1]), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid to-node id: %w", err)
		}
		speed, err := strconv.ParseUint(string(fields[2]), 10, 16)
		if err != nil {
			return fmt.Errorf("invalid speed: %w", err)
		}
		if ids.Speed(speed) == ids.InvalidSpeed {
			return fmt.Errorf("speed %d is the reserved invalid-speed value", speed)
		}
		next[pairKey{from: ids.ExternalNodeID(from), to: ids.ExternalNodeID(to)}] = ids.Speed(speed)
		return nil
	})
	if err != nil {
		sm.guard.RecordFailure()
		sm.metrics.IncSpeedMapReloadError()
		sm.logger.Warn("segspeed: reload failed", zap.String("path", path), zap.Error(err))
		return err
	}

	sm.table.Store(&next)
	sm.guard.RecordSuccess()
	sm.metrics.IncSpeedMapReload()
	return nil
}
