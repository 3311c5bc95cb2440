// Package annotate implements the read-only query surface over a sealed
// db.Database: coordinate-to-node resolution, external-id translation, and
// way annotation along a route.
package annotate

import (
	"math"
	"time"

	"github.com/tophatmaps/routeannotator/internal/db"
	"github.com/tophatmaps/routeannotator/internal/errs"
	"github.com/tophatmaps/routeannotator/internal/ids"
	"github.com/tophatmaps/routeannotator/internal/obs"
)

// earthRadiusMeters is the sphere radius used for the haversine distance
// gate below, matching the constant the original coordinate matcher used.
const earthRadiusMeters = 6372795.0

// coordinateMatchRadiusMeters is the maximum distance a query coordinate
// may be from a candidate node for that node to be considered a match.
const coordinateMatchRadiusMeters = 5.0

// Annotator is a thin, stateless query wrapper over a sealed db.Database.
// Built once per database and safe for concurrent use by multiple callers,
// since every method it exposes only reads.
type Annotator struct {
	db      *db.Database
	metrics *obs.Metrics
}

// Option configures an Annotator at construction time.
type Option func(*Annotator)

// WithMetrics attaches a metrics sink.
func WithMetrics(m *obs.Metrics) Option {
	return func(a *Annotator) { a.metrics = m }
}

// New returns an Annotator over database, which must already be sealed.
func New(database *db.Database, opts ...Option) *Annotator {
	a := &Annotator{db: database}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// haversineMeters returns the great-circle distance in meters between two
// (lon, lat) points given in degrees.
func haversineMeters(lon1, lat1, lon2, lat2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	la1, la2 := rad(lat1), rad(lat2)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(la1)*math.Cos(la2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}

// CoordinateToInternal resolves a (lon, lat) query point to the internal id
// of the nearest indexed node, provided that node lies strictly within
// coordinateMatchRadiusMeters. Nodes farther away are reported as misses
// rather than best-effort matches, since a route-matching caller snapping
// to a distant node is worse than snapping to none.
func (a *Annotator) CoordinateToInternal(lon, lat float64) (ids.InternalNodeID, bool, error) {
	start := time.Now()
	miss := 0
	defer func() { a.metrics.ObserveCoordLookup(time.Since(start).Seconds(), miss) }()

	internal, nodeLon, nodeLat, ok, err := a.db.NearestNode(lon, lat)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		miss = 1
		return ids.InvalidInternalNodeID, false, nil
	}

	if haversineMeters(lon, lat, nodeLon, nodeLat) >= coordinateMatchRadiusMeters {
		miss = 1
		return ids.InvalidInternalNodeID, false, nil
	}
	return internal, true, nil
}

// ExternalToInternal translates an external node id to its internal id.
func (a *Annotator) ExternalToInternal(external ids.ExternalNodeID) (ids.InternalNodeID, bool) {
	return a.db.LookupExternal(external)
}

// AnnotateRoute returns, for each consecutive pair of nodes along path, the
// way id that carries that segment, or ids.InvalidWayID when no segment
// exists between the pair. For a path of two or more nodes the result has
// len(path)-1 entries; a shorter path returns errs.ErrTooShort.
func (a *Annotator) AnnotateRoute(path []ids.InternalNodeID) ([]ids.WayID, error) {
	start := time.Now()
	defer func() { a.metrics.ObserveAnnotateRoute(time.Since(start).Seconds()) }()

	if len(path) < 2 {
		return nil, errs.ErrTooShort
	}

	ways := make([]ids.WayID, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		way, ok := a.db.LookupPair(path[i], path[i+1])
		if !ok {
			ways[i] = ids.InvalidWayID
			continue
		}
		ways[i] = way
	}
	return ways, nil
}

// GetTagRange returns the [first, last) tag range for way.
func (a *Annotator) GetTagRange(way ids.WayID) (db.TagRange, error) {
	return a.db.TagRange(way)
}

// GetTagKey returns the interned key bytes at tag table index i.
func (a *Annotator) GetTagKey(i uint32) ([]byte, error) {
	return a.db.TagKey(i)
}

// GetTagValue returns the interned value bytes at tag table index i.
func (a *Annotator) GetTagValue(i uint32) ([]byte, error) {
	return a.db.TagValue(i)
}

// GetExternalWayID returns the original external way id for an internal
// way.
func (a *Annotator) GetExternalWayID(way ids.WayID) (ids.ExternalWayID, error) {
	return a.db.ExternalWayID(way)
}
