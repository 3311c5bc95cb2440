// Package db implements the compact, columnar, pointer-free in-memory
// database described by the core specification: interned tag strings, a
// flat key/value table sliced into per-way tag ranges, a node-pair-to-way
// map, an external-to-internal node id map, and a bulk-loaded R-tree over
// node locations. New returns a database already in the Building state
// (the Empty state is folded into it); Compact moves it to Sealed. Every
// mutating method rejects a sealed database, and the tag, way and geometry
// accessors require a sealed one.
package db

import (
	"sync"

	"github.com/dhconnelly/rtreego"

	"github.com/tophatmaps/routeannotator/internal/errs"
	"github.com/tophatmaps/routeannotator/internal/ids"
	"github.com/tophatmaps/routeannotator/internal/obs"
	"github.com/tophatmaps/routeannotator/internal/stringpool"
)

// rtree branching factors, matching the teacher's bulk-load constructor
// shape (a fixed min/max fanout passed once at tree construction).
const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

type state int

const (
	stateEmpty state = iota
	stateBuilding
	stateSealed
)

// KeyValuePair is one (key, value) tag entry, each half a StringID into the
// shared string pool.
type KeyValuePair struct {
	Key   ids.StringID
	Value ids.StringID
}

// TagRange is a half-open [First, Last) index window into the key/value
// pair table, identifying exactly the tags belonging to one way.
type TagRange struct {
	First uint32
	Last  uint32
}

// Stats summarizes a database's contents, mirroring the build-time dump the
// original extractor printed after every run.
type Stats struct {
	NodeCount   int
	WayCount    int
	StringCount int
	PairCount   int
}

// Database is the columnar, interned, pointer-free representation of the
// road network. The zero value is not usable; construct with New.
type Database struct {
	mu    sync.RWMutex
	state state

	geometryEnabled bool
	metrics         *obs.Metrics

	pool            *stringpool.Pool
	keyValuePairs   []KeyValuePair
	wayTagRanges    []TagRange
	externalWayIDs  []ids.ExternalWayID
	pairWayMap      map[pairKey]wayEntry
	externalToInt   map[ids.ExternalNodeID]ids.InternalNodeID
	nextInternalID  ids.InternalNodeID
	usedNodesList   []*geoNode // build-phase only
	rtree           *rtreego.Rtree
}

// Option configures a Database at construction time.
type Option func(*Database)

// WithGeometry enables retention of node locations and the bulk-built
// R-tree on Compact. Disabled by default: a build with WithGeometry(false)
// (the default) rejects coordinate queries with ErrRtreeNotBuilt.
func WithGeometry(enabled bool) Option {
	return func(d *Database) { d.geometryEnabled = enabled }
}

// WithMetrics attaches a metrics sink. Passing nil (the default) disables
// metrics without requiring callers to special-case a no-op.
func WithMetrics(m *obs.Metrics) Option {
	return func(d *Database) { d.metrics = m }
}

// New returns an empty, writable Database.
func New(opts ...Option) *Database {
	d := &Database{
		state:         stateBuilding,
		pool:          stringpool.New(),
		pairWayMap:    make(map[pairKey]wayEntry),
		externalToInt: make(map[ids.ExternalNodeID]ids.InternalNodeID),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddString interns b into the shared string pool.
func (d *Database) AddString(b []byte) (ids.StringID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateBuilding {
		return 0, errs.ErrSealed
	}
	before := d.pool.Len()
	id, err := d.pool.Add(b)
	if err == nil && d.pool.Len() > before {
		d.metrics.IncStringsInterned()
	}
	return id, err
}

// AppendTagPair appends one (key, value) entry to the flat key/value table
// and returns its index.
func (d *Database) AppendTagPair(key, value ids.StringID) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateBuilding {
		return 0, errs.ErrSealed
	}
	idx := uint32(len(d.keyValuePairs))
	d.keyValuePairs = append(d.keyValuePairs, KeyValuePair{Key: key, Value: value})
	return idx, nil
}

// Len returns the current size of the key/value pair table; callers use it
// to compute a tag range's `first` before appending that way's tags.
func (d *Database) Len() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint32(len(d.keyValuePairs))
}

// EmplaceWayTagRange records the [first, last) tag range for a newly
// retained way and assigns it the next sequential internal WayID.
func (d *Database) EmplaceWayTagRange(first, last uint32, external ids.ExternalWayID) (ids.WayID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateBuilding {
		return 0, errs.ErrSealed
	}
	if first > last || uint64(last) > uint64(len(d.keyValuePairs)) {
		return 0, errs.ErrOutOfRange
	}

	way := ids.WayID(len(d.wayTagRanges))
	d.wayTagRanges = append(d.wayTagRanges, TagRange{First: first, Last: last})
	d.externalWayIDs = append(d.externalWayIDs, external)
	d.metrics.IncWaysRetained()
	return way, nil
}

// InternalizeNode maps an external node id to a dense internal id,
// assigning a new one on first sight. If haveLocation is true and geometry
// is enabled, the node's location is queued for the R-tree bulk load.
func (d *Database) InternalizeNode(external ids.ExternalNodeID, lon, lat float64, haveLocation bool) (ids.InternalNodeID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateBuilding {
		return 0, errs.ErrSealed
	}
	if existing, ok := d.externalToInt[external]; ok {
		return existing, nil
	}

	if d.nextInternalID == ids.InvalidInternalNodeID {
		return 0, errs.ErrPoolFull
	}
	internal := d.nextInternalID
	d.nextInternalID++
	d.externalToInt[external] = internal

	if haveLocation && d.geometryEnabled {
		d.usedNodesList = append(d.usedNodesList, &geoNode{internal: internal, lon: lon, lat: lat})
	}
	return internal, nil
}

// EmplacePair inserts a directed segment (a, b) into the node-pair-to-way
// map, canonicalizing the key to (min, max). The forward and reverse
// directions of a canonical pair are tracked independently, so emplacing
// one direction of a one-way segment never makes the other direction
// answer a lookup, while emplacing both directions (a bidirectional way)
// leaves each direction's own entry intact.
func (d *Database) EmplacePair(a, b ids.InternalNodeID, way ids.WayID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateBuilding {
		return errs.ErrSealed
	}
	key, forward := packPair(a, b)
	entry, ok := d.pairWayMap[key]
	if !ok {
		entry = wayEntry{forwardWay: ids.InvalidWayID, reverseWay: ids.InvalidWayID}
	}
	if forward {
		entry.forwardWay = way
	} else {
		entry.reverseWay = way
	}
	d.pairWayMap[key] = entry
	d.metrics.IncSegmentsIndexed()
	return nil
}

// Compact seals the database: it bulk-builds the R-tree (if geometry was
// enabled), releases transient build-only state, and shrinks all backing
// arrays. It may be called exactly once.
func (d *Database) Compact() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == stateSealed {
		return errs.ErrAlreadySealed
	}

	if d.geometryEnabled {
		objs := make([]rtreego.Spatial, len(d.usedNodesList))
		for i, n := range d.usedNodesList {
			objs[i] = n
		}
		d.rtree = rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, objs...)
	}
	d.usedNodesList = nil

	d.pool.Seal()

	shrunkPairs := make([]KeyValuePair, len(d.keyValuePairs))
	copy(shrunkPairs, d.keyValuePairs)
	d.keyValuePairs = shrunkPairs

	shrunkRanges := make([]TagRange, len(d.wayTagRanges))
	copy(shrunkRanges, d.wayTagRanges)
	d.wayTagRanges = shrunkRanges

	d.state = stateSealed
	return nil
}

// requireSealed is a small helper the tag, way and geometry accessors below
// call first; LookupPair, LookupExternal and Stats do not.
func (d *Database) requireSealed() error {
	if d.state != stateSealed {
		return errs.ErrSealed
	}
	return nil
}

// TagRange returns the [first, last) tag range for way.
func (d *Database) TagRange(way ids.WayID) (TagRange, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.requireSealed(); err != nil {
		return TagRange{}, err
	}
	if uint64(way) >= uint64(len(d.wayTagRanges)) {
		return TagRange{}, errs.ErrOutOfRange
	}
	return d.wayTagRanges[way], nil
}

// TagKey returns the interned key bytes at index i of the key/value table.
func (d *Database) TagKey(i uint32) ([]byte, error) {
	return d.tagString(i, true)
}

// TagValue returns the interned value bytes at index i of the key/value
// table.
func (d *Database) TagValue(i uint32) ([]byte, error) {
	return d.tagString(i, false)
}

func (d *Database) tagString(i uint32, key bool) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.requireSealed(); err != nil {
		return nil, err
	}
	if uint64(i) >= uint64(len(d.keyValuePairs)) {
		return nil, errs.ErrOutOfRange
	}
	pair := d.keyValuePairs[i]
	if key {
		return d.pool.Get(pair.Key)
	}
	return d.pool.Get(pair.Value)
}

// ExternalWayID returns the original external way id for an internal way.
func (d *Database) ExternalWayID(way ids.WayID) (ids.ExternalWayID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := d.requireSealed(); err != nil {
		return 0, err
	}
	if uint64(way) >= uint64(len(d.externalWayIDs)) {
		return 0, errs.ErrOutOfRange
	}
	return d.externalWayIDs[way], nil
}

// LookupPair returns the way id originating the directed segment (a, b),
// and whether one was found. The canonical entry only answers for the
// direction it was actually inserted under: probing with the orientation
// the pair was stored as returns a hit, probing the reverse direction of a
// one-way segment returns a miss, even though both probes hash to the same
// canonical key.
func (d *Database) LookupPair(a, b ids.InternalNodeID) (ids.WayID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	key, forward := packPair(a, b)
	entry, ok := d.pairWayMap[key]
	if !ok {
		return ids.InvalidWayID, false
	}
	way := entry.reverseWay
	if forward {
		way = entry.forwardWay
	}
	if !way.Valid() {
		return ids.InvalidWayID, false
	}
	return way, true
}

// LookupExternal translates an external node id to its internal id.
func (d *Database) LookupExternal(external ids.ExternalNodeID) (ids.InternalNodeID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	internal, ok := d.externalToInt[external]
	if !ok {
		return ids.InvalidInternalNodeID, false
	}
	return internal, true
}

// NearestNode returns the internal id and location of the node nearest to
// (lon, lat) in the R-tree's degree space. No distance is returned: the
// caller is responsible for the haversine distance gate.
func (d *Database) NearestNode(lon, lat float64) (internal ids.InternalNodeID, nodeLon, nodeLat float64, ok bool, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if e := d.requireSealed(); e != nil {
		return 0, 0, 0, false, e
	}
	if !d.geometryEnabled {
		return 0, 0, 0, false, errs.ErrRtreeNotBuilt
	}
	if d.rtree == nil || d.rtree.Size() == 0 {
		return 0, 0, 0, false, nil
	}

	result := d.rtree.NearestNeighbor(rtreego.Point{lon, lat})
	if result == nil {
		return 0, 0, 0, false, nil
	}
	node, okType := result.(*geoNode)
	if !okType {
		return 0, 0, 0, false, nil
	}
	return node.internal, node.lon, node.lat, true, nil
}

// Stats reports the database's current size, valid in any state.
func (d *Database) Stats() Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return Stats{
		NodeCount:   int(d.nextInternalID),
		WayCount:    len(d.wayTagRanges),
		StringCount: d.pool.Len(),
		PairCount:   len(d.pairWayMap),
	}
}

// GeometryEnabled reports whether this database was built to retain node
// locations and an R-tree.
func (d *Database) GeometryEnabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.geometryEnabled
}

// Sealed reports whether Compact has completed.
func (d *Database) Sealed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state == stateSealed
}
