package extractor

import "github.com/tophatmaps/routeannotator/internal/ids"

// Point is a (longitude, latitude) coordinate in degrees, matching the
// spherical-equatorial point type the rest of the system uses.
type Point struct {
	Lon, Lat float64
}

// Tag is a raw (key, value) pair as read from the upstream map parser,
// before either half is interned.
type Tag struct {
	Key, Value string
}

// Node is one node record from the upstream stream: an external id plus
// its location.
type Node struct {
	ID    ids.ExternalNodeID
	Point Point
}

// Way is one way record from the upstream stream: an external id, its
// ordered node references, and its raw tags.
type Way struct {
	ID    ids.ExternalWayID
	Nodes []ids.ExternalNodeID
	Tags  []Tag
}

// Element is one item pulled from a Source: exactly one of Node or Way is
// non-nil.
type Element struct {
	Node *Node
	Way  *Way
}

// Source is a pull iterator over the upstream map element stream. Next
// returns ok=false once the stream is exhausted. Implementations are free
// to wrap any underlying map-file parser; this module assumes one is
// already decoding the source format upstream.
type Source interface {
	Next() (el Element, ok bool, err error)
}

// SliceSource adapts a pre-decoded slice of elements into a Source, mainly
// useful for tests and for callers who have already buffered a small
// extract in memory.
type SliceSource struct {
	elements []Element
	pos      int
}

// NewSliceSource returns a Source that yields elements in order.
func NewSliceSource(elements []Element) *SliceSource {
	return &SliceSource{elements: elements}
}

func (s *SliceSource) Next() (Element, bool, error) {
	if s.pos >= len(s.elements) {
		return Element{}, false, nil
	}
	el := s.elements[s.pos]
	s.pos++
	return el, true, nil
}
