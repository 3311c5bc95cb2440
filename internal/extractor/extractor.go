// Package extractor consumes a stream of map elements (nodes and ways),
// filters ways by a configurable predicate, and populates a db.Database.
package extractor

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/tophatmaps/routeannotator/internal/db"
	"github.com/tophatmaps/routeannotator/internal/ids"
	"github.com/tophatmaps/routeannotator/internal/obs"
)

// defaultOnewayKey is the tag key this extractor checks for directionality.
// The conventional OSM key is "oneway"; some older data uses "one_way".
// This implementation prefers the conventional key, per the core
// specification's documented resolution of that ambiguity.
const defaultOnewayKey = "oneway"

// Extractor drives a Source into a db.Database, one way at a time.
type Extractor struct {
	db        *db.Database
	filter    WayFilter
	onewayKey string
	metrics   *obs.Metrics
	logger    *zap.Logger
}

// Option configures an Extractor at construction time.
type Option func(*Extractor)

// WithFilter overrides the way-retention predicate. The default is
// DefaultHighwayFilter{}.
func WithFilter(f WayFilter) Option {
	return func(e *Extractor) { e.filter = f }
}

// WithOnewayKey overrides the tag key checked for directionality.
func WithOnewayKey(key string) Option {
	return func(e *Extractor) { e.onewayKey = key }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *obs.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithLogger attaches a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New returns an Extractor that populates database.
func New(database *db.Database, opts ...Option) *Extractor {
	e := &Extractor{
		db:        database,
		filter:    DefaultHighwayFilter{},
		onewayKey: defaultOnewayKey,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run pulls every element from src, buffering node locations and ways as
// they arrive, and processes the ways in stream order once the stream is
// exhausted, so nodes may arrive before or after the ways that reference
// them. A segment with an endpoint whose location never arrived is skipped
// when geometry is enabled, and indexed without a location otherwise (see
// processWay).
func (e *Extractor) Run(src Source) error {
	nodeLocations := make(map[ids.ExternalNodeID]Point)
	var ways []*Way

	for {
		el, ok, err := src.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		switch {
		case el.Node != nil:
			nodeLocations[el.Node.ID] = el.Node.Point
		case el.Way != nil:
			ways = append(ways, el.Way)
		}
	}
	for _, w := range ways {
		if err := e.processWay(w, nodeLocations); err != nil {
			return err
		}
	}
	return nil
}

func (e *Extractor) processWay(w *Way, nodeLocations map[ids.ExternalNodeID]Point) error {
	if len(w.Nodes) < 2 {
		e.metrics.IncWaysSkipped()
		return nil
	}

	retained, captured := e.filter.Filter(w.Tags)
	if !retained {
		e.metrics.IncWaysSkipped()
		return nil
	}

	forward, reverse := e.directionality(w.Tags)
	if !forward && !reverse {
		e.metrics.IncWaysSkipped()
		return nil
	}

	first := e.db.Len()
	for _, t := range captured {
		keyID, err := e.db.AddString([]byte(t.Key))
		if err != nil {
			return err
		}
		valID, err := e.db.AddString([]byte(t.Value))
		if err != nil {
			return err
		}
		if _, err := e.db.AppendTagPair(keyID, valID); err != nil {
			return err
		}
	}

	wayIDKey, err := e.db.AddString([]byte("_way_id"))
	if err != nil {
		return err
	}
	wayIDVal, err := e.db.AddString([]byte(strconv.FormatUint(uint64(w.ID), 10)))
	if err != nil {
		return err
	}
	if _, err := e.db.AppendTagPair(wayIDKey, wayIDVal); err != nil {
		return err
	}
	last := e.db.Len()

	way, err := e.db.EmplaceWayTagRange(first, last, w.ID)
	if err != nil {
		return err
	}

	for i := 0; i+1 < len(w.Nodes); i++ {
		a, b := w.Nodes[i], w.Nodes[i+1]
		locA, okA := nodeLocations[a]
		locB, okB := nodeLocations[b]

		if e.db.GeometryEnabled() && (!okA || !okB) {
			e.logger.Debug("skipping segment with unresolved node location",
				zap.Uint64("from", uint64(a)), zap.Uint64("to", uint64(b)))
			e.metrics.IncSegmentsSkippedNoLoc()
			continue
		}

		internalA, err := e.db.InternalizeNode(a, locA.Lon, locA.Lat, okA)
		if err != nil {
			return err
		}
		internalB, err := e.db.InternalizeNode(b, locB.Lon, locB.Lat, okB)
		if err != nil {
			return err
		}

		if forward {
			if err := e.db.EmplacePair(internalA, internalB, way); err != nil {
				return err
			}
		}
		if reverse {
			if err := e.db.EmplacePair(internalB, internalA, way); err != nil {
				return err
			}
		}
	}
	return nil
}

// directionality inspects the oneway tag and reports which directions a
// way's segments should be inserted for. Absent the tag (or any value
// other than "yes"/"-1"), both directions are inserted.
func (e *Extractor) directionality(tags []Tag) (forward, reverse bool) {
	for _, t := range tags {
		if t.Key != e.onewayKey {
			continue
		}
		switch t.Value {
		case "yes":
			return true, false
		case "-1":
			return false, true
		}
	}
	return true, true
}
