// Package errs collects the sentinel errors surfaced by the core, grouped
// by the subsystem that raises them, following the same grouped-var-block
// convention the rest of this module's ecosystem uses for error taxonomies.
package errs

import "errors"

// Lifecycle errors, raised by the columnar database's state machine.
var (
	ErrSealed        = errors.New("database is sealed: mutation rejected")
	ErrAlreadySealed = errors.New("compact called on an already-sealed database")
	ErrRtreeNotBuilt = errors.New("coordinate query requires geometry, but the database was built without it")
)

// Lookup errors, raised by the string pool and annotator accessors.
var (
	ErrOutOfRange = errors.New("id or index is out of range")
	ErrNotFound   = errors.New("key not present in map")
	ErrTooShort   = errors.New("input sequence is too short")
	ErrPoolFull   = errors.New("string pool exhausted its 32-bit id space")
)

// ErrorCode names each error kind of the core. No function in this package
// maps an error value to its code; callers match the sentinels above with
// errors.Is.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	CodeOutOfRange
	CodeSealed
	CodeAlreadySealed
	CodeRtreeNotBuilt
	CodeParseError
	CodeNotFound
	CodeTooShort
	CodePoolFull
)

func (c ErrorCode) String() string {
	switch c {
	case CodeOutOfRange:
		return "OUT_OF_RANGE"
	case CodeSealed:
		return "SEALED"
	case CodeAlreadySealed:
		return "ALREADY_SEALED"
	case CodeRtreeNotBuilt:
		return "RTREE_NOT_BUILT"
	case CodeParseError:
		return "PARSE_ERROR"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeTooShort:
		return "TOO_SHORT"
	case CodePoolFull:
		return "POOL_FULL"
	default:
		return "UNKNOWN"
	}
}
