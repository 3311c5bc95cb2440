// Package routeannotator is the public facade over the road-network
// annotation index: it wires together the extractor, the columnar
// database, the coordinate/route query layer, and the two hot-reloadable
// speed maps behind a single handle, mirroring the way this codebase's
// sibling packages expose a build-then-query facade over their internals.
package routeannotator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tophatmaps/routeannotator/internal/annotate"
	"github.com/tophatmaps/routeannotator/internal/db"
	"github.com/tophatmaps/routeannotator/internal/extractor"
	"github.com/tophatmaps/routeannotator/internal/ids"
	"github.com/tophatmaps/routeannotator/internal/obs"
	"github.com/tophatmaps/routeannotator/internal/segspeed"
	"github.com/tophatmaps/routeannotator/internal/wayspeed"
)

// Index is the top-level handle on a built road-network annotation index.
// It is built once from a Source and then used for read-only queries; its
// two speed maps may be reloaded independently at any time.
type Index struct {
	database *db.Database
	extract  *extractor.Extractor
	query    *annotate.Annotator

	segSpeeds *segspeed.Map
	waySpeeds *wayspeed.Map

	metrics *obs.Metrics
	logger  *zap.Logger
}

// Config collects the options New accepts.
type Config struct {
	geometry  bool
	filter    extractor.WayFilter
	onewayKey string
	metrics   *obs.Metrics
	logger    *zap.Logger
}

// Option configures an Index at construction time.
type Option func(*Config)

// WithGeometry enables coordinate-to-node resolution. Disabled by default.
func WithGeometry(enabled bool) Option {
	return func(c *Config) { c.geometry = enabled }
}

// WithFilter overrides the way-retention predicate.
func WithFilter(f extractor.WayFilter) Option {
	return func(c *Config) { c.filter = f }
}

// WithOnewayKey overrides the tag key checked for directionality.
func WithOnewayKey(key string) Option {
	return func(c *Config) { c.onewayKey = key }
}

// WithMetrics attaches a Prometheus metrics sink shared by every
// subsystem.
func WithMetrics(m *obs.Metrics) Option {
	return func(c *Config) { c.metrics = m }
}

// WithLogger attaches a structured logger. Defaults to zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.logger = l }
}

// New constructs an empty, unbuilt Index.
func New(opts ...Option) *Index {
	cfg := &Config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}

	dbOpts := []db.Option{db.WithGeometry(cfg.geometry)}
	if cfg.metrics != nil {
		dbOpts = append(dbOpts, db.WithMetrics(cfg.metrics))
	}
	database := db.New(dbOpts...)

	var extractOpts []extractor.Option
	if cfg.filter != nil {
		extractOpts = append(extractOpts, extractor.WithFilter(cfg.filter))
	}
	if cfg.onewayKey != "" {
		extractOpts = append(extractOpts, extractor.WithOnewayKey(cfg.onewayKey))
	}
	if cfg.metrics != nil {
		extractOpts = append(extractOpts, extractor.WithMetrics(cfg.metrics))
	}
	extractOpts = append(extractOpts, extractor.WithLogger(cfg.logger))

	return &Index{
		database: database,
		extract:  extractor.New(database, extractOpts...),
		metrics:  cfg.metrics,
		logger:   cfg.logger,
	}
}

// Build drains src into the index's database and seals it. Build may only
// be called once; subsequent calls return an error.
func (idx *Index) Build(src extractor.Source) error {
	if idx.database.Sealed() {
		return fmt.Errorf("routeannotator: index already built")
	}

	if err := idx.extract.Run(src); err != nil {
		return fmt.Errorf("routeannotator: extraction failed: %w", err)
	}
	if err := idx.database.Compact(); err != nil {
		return fmt.Errorf("routeannotator: compact failed: %w", err)
	}

	var annotateOpts []annotate.Option
	if idx.metrics != nil {
		annotateOpts = append(annotateOpts, annotate.WithMetrics(idx.metrics))
	}
	idx.query = annotate.New(idx.database, annotateOpts...)

	stats := idx.database.Stats()
	idx.logger.Info("route annotation index built",
		zap.Int("nodes", stats.NodeCount),
		zap.Int("ways", stats.WayCount),
		zap.Int("strings", stats.StringCount),
		zap.Int("pairs", stats.PairCount),
	)
	return nil
}

// ensureBuilt is checked by every query method below.
func (idx *Index) ensureBuilt() error {
	if idx.query == nil {
		return fmt.Errorf("routeannotator: index not built yet")
	}
	return nil
}

// CoordinateToInternal resolves a (lon, lat) query point to the nearest
// indexed node, if one lies within the coordinate match radius.
func (idx *Index) CoordinateToInternal(lon, lat float64) (ids.InternalNodeID, bool, error) {
	if err := idx.ensureBuilt(); err != nil {
		return 0, false, err
	}
	return idx.query.CoordinateToInternal(lon, lat)
}

// ExternalToInternal translates an external node id to its internal id.
func (idx *Index) ExternalToInternal(external ids.ExternalNodeID) (ids.InternalNodeID, bool, error) {
	if err := idx.ensureBuilt(); err != nil {
		return 0, false, err
	}
	internal, ok := idx.query.ExternalToInternal(external)
	return internal, ok, nil
}

// AnnotateRoute returns the way id carrying each consecutive pair of nodes
// along path.
func (idx *Index) AnnotateRoute(path []ids.InternalNodeID) ([]ids.WayID, error) {
	if err := idx.ensureBuilt(); err != nil {
		return nil, err
	}
	return idx.query.AnnotateRoute(path)
}

// GetTagRange returns the [first, last) tag range for way.
func (idx *Index) GetTagRange(way ids.WayID) (db.TagRange, error) {
	if err := idx.ensureBuilt(); err != nil {
		return db.TagRange{}, err
	}
	return idx.query.GetTagRange(way)
}

// GetTagKey returns the interned key bytes at tag table index i.
func (idx *Index) GetTagKey(i uint32) ([]byte, error) {
	if err := idx.ensureBuilt(); err != nil {
		return nil, err
	}
	return idx.query.GetTagKey(i)
}

// GetTagValue returns the interned value bytes at tag table index i.
func (idx *Index) GetTagValue(i uint32) ([]byte, error) {
	if err := idx.ensureBuilt(); err != nil {
		return nil, err
	}
	return idx.query.GetTagValue(i)
}

// GetExternalWayID returns the original external way id for an internal
// way.
func (idx *Index) GetExternalWayID(way ids.WayID) (ids.ExternalWayID, error) {
	if err := idx.ensureBuilt(); err != nil {
		return 0, err
	}
	return idx.query.GetExternalWayID(way)
}

// Stats reports the built database's size.
func (idx *Index) Stats() db.Stats {
	return idx.database.Stats()
}

// Sealed reports whether Build has completed, satisfying obs.Checkable.
func (idx *Index) Sealed() bool {
	return idx.database.Sealed()
}

// Health runs the index's health probes, suitable for backing a liveness
// or readiness endpoint.
func (idx *Index) Health(ctx context.Context) (*obs.HealthStatus, error) {
	return obs.NewHealthChecker(idx).Check(ctx)
}

// LoadSegmentSpeeds (re)loads the segment speed map from a "from,to,speed"
// CSV file. Safe to call repeatedly; a parse failure leaves the
// previously loaded map untouched.
func (idx *Index) LoadSegmentSpeeds(path string) error {
	if idx.segSpeeds == nil {
		opts := []segspeed.Option{segspeed.WithLogger(idx.logger)}
		if idx.metrics != nil {
			opts = append(opts, segspeed.WithMetrics(idx.metrics))
		}
		idx.segSpeeds = segspeed.New(opts...)
	}
	if err := idx.segSpeeds.LoadCSV(path); err != nil {
		return fmt.Errorf("routeannotator: loading segment speeds: %w", err)
	}
	return nil
}

// SegmentSpeed returns the posted speed for the ordered node pair
// (from, to).
func (idx *Index) SegmentSpeed(from, to ids.ExternalNodeID) (ids.Speed, bool) {
	if idx.segSpeeds == nil {
		return ids.InvalidSpeed, false
	}
	return idx.segSpeeds.Get(from, to)
}

// LoadWaySpeeds (re)loads the way speed map from a "way_id,name,unit,speed"
// CSV file. Safe to call repeatedly; a parse failure leaves the previously
// loaded map untouched.
func (idx *Index) LoadWaySpeeds(path string) error {
	if idx.waySpeeds == nil {
		opts := []wayspeed.Option{wayspeed.WithLogger(idx.logger)}
		if idx.metrics != nil {
			opts = append(opts, wayspeed.WithMetrics(idx.metrics))
		}
		idx.waySpeeds = wayspeed.New(opts...)
	}
	if err := idx.waySpeeds.LoadCSV(path); err != nil {
		return fmt.Errorf("routeannotator: loading way speeds: %w", err)
	}
	return nil
}

// WaySpeed returns the posted speed for an external way id.
func (idx *Index) WaySpeed(way ids.ExternalWayID) (ids.Speed, bool) {
	if idx.waySpeeds == nil {
		return ids.InvalidSpeed, false
	}
	return idx.waySpeeds.Get(way)
}
