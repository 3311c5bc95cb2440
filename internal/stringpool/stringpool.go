// Package stringpool interns arbitrary byte strings into compact numeric
// ids, backing every key and value stored by the columnar database.
package stringpool

import (
	"bytes"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/tophatmaps/routeannotator/internal/errs"
	"github.com/tophatmaps/routeannotator/internal/ids"
)

// maxStringLen is the clamp applied to every inserted string, per the
// 8-bit length field the original offset table was sized for.
const maxStringLen = 255

type offset struct {
	start  uint32
	length uint8
}

// Pool interns byte strings during the build phase and serves read-only
// id-to-bytes lookups once sealed. The zero value is not usable; construct
// with New.
type Pool struct {
	bytes   []byte
	offsets []offset
	index   map[uint64][]ids.StringID // build-phase only, nil after Seal; bucketed by xxhash, chained on collision
}

// New returns an empty, writable Pool.
func New() *Pool {
	return &Pool{
		index: make(map[uint64][]ids.StringID),
	}
}

// Add interns b, returning the id of an existing entry if b (after
// clamping to 255 bytes) matches exactly, else appending a new entry. The
// dedup index is keyed on an xxhash digest of the bytes rather than the
// bytes themselves, with an exact-match check against each candidate to
// resolve collisions.
func (p *Pool) Add(b []byte) (ids.StringID, error) {
	if len(b) > maxStringLen {
		b = b[:maxStringLen]
	}
	if p.index == nil {
		return 0, errs.ErrSealed
	}

	digest := xxhash.Sum64(b)
	for _, candidate := range p.index[digest] {
		if existing, err := p.Get(candidate); err == nil && bytes.Equal(existing, b) {
			return candidate, nil
		}
	}

	if len(p.offsets) >= math.MaxUint32 {
		return 0, errs.ErrPoolFull
	}
	start := len(p.bytes)
	if start+len(b) >= math.MaxUint32 {
		return 0, errs.ErrPoolFull
	}

	id := ids.StringID(len(p.offsets))
	p.bytes = append(p.bytes, b...)
	p.offsets = append(p.offsets, offset{start: uint32(start), length: uint8(len(b))})
	p.index[digest] = append(p.index[digest], id)
	return id, nil
}

// AddString is a convenience wrapper around Add for callers holding a Go
// string rather than a byte slice.
func (p *Pool) AddString(s string) (ids.StringID, error) {
	return p.Add([]byte(s))
}

// Get returns the interned bytes for id.
func (p *Pool) Get(id ids.StringID) ([]byte, error) {
	if int(id) >= len(p.offsets) {
		return nil, errs.ErrOutOfRange
	}
	off := p.offsets[id]
	return p.bytes[off.start : off.start+uint32(off.length)], nil
}

// Len returns the number of distinct strings interned so far.
func (p *Pool) Len() int { return len(p.offsets) }

// Seal discards the build-phase dedup index and shrinks backing storage.
// It is idempotent: calling it more than once is a no-op.
func (p *Pool) Seal() {
	if p.index == nil {
		return
	}
	p.index = nil

	shrunkBytes := make([]byte, len(p.bytes))
	copy(shrunkBytes, p.bytes)
	p.bytes = shrunkBytes

	shrunkOffsets := make([]offset, len(p.offsets))
	copy(shrunkOffsets, p.offsets)
	p.offsets = shrunkOffsets
}
