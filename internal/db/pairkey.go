package db

import "github.com/tophatmaps/routeannotator/internal/ids"

// pairKey packs an ordered pair of internal node ids into a single uint64,
// canonicalized to (min, max) so that a segment and its reverse share one
// entry — design choice (b) from the node-pair storage tradeoff: half the
// map entries of storing both orderings, with each entry holding a
// separate way id per direction (see wayEntry) so the inserted directions
// can be told apart.
type pairKey uint64

func packPair(a, b ids.InternalNodeID) (key pairKey, forward bool) {
	lo, hi := a, b
	forward = a < b
	if !forward {
		lo, hi = b, a
	}
	return pairKey(uint64(lo)<<32 | uint64(hi)), forward
}

// wayEntry is the value stored per canonical node pair. forwardWay and
// reverseWay are tracked independently so a one-way segment (only one
// direction emplaced) correctly misses when probed in the other
// direction, while a bidirectional segment (both directions emplaced,
// typically under the same way) hits either way.
type wayEntry struct {
	forwardWay ids.WayID // inserted as (min, max); ids.InvalidWayID if absent
	reverseWay ids.WayID // inserted as (max, min); ids.InvalidWayID if absent
}
