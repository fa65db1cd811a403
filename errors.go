// Package recidx implements a fixed-length-key indexing engine that maps
// string or numeric keys to byte offsets in an external record-structured
// data file.
//
// Two interchangeable backing structures are provided behind a uniform
// contract: a Virtual Array (VA), a direct-addressed on-disk array with a
// write-back slot cache, and a Scatter Storage (SS) index, an
// open-addressed on-disk hash table using double hashing with twin primes.
// A key-access layer on top exposes lookup-by-key-list and
// lookup-by-search-expression against an opened index, backed by an
// in-memory offset cache and a record-fill buffer for scrolling data
// records.
package recidx

import "errors"

// Sentinel errors returned by index operations. NotFound, Duplicate and
// NeedsResize are expected outcomes a caller may see in normal operation;
// the rest indicate a programming error or on-disk corruption.
var (
	// ErrNotFound is returned when a lookup key is absent, or a VA slot
	// addressed by a numeric key has never been written.
	ErrNotFound = errors.New("recidx: key not found")

	// ErrDuplicate is returned when Insert targets a key that is already
	// present (SS) or a VA slot that is already occupied.
	ErrDuplicate = errors.New("recidx: key already present")

	// ErrFull is returned by SS Insert when fewer than two slots are
	// vacant, so at least one slot always stays vacant; the caller must
	// Resize before inserting further.
	ErrFull = errors.New("recidx: scatter storage full")

	// ErrNeedsResize is an advisory error from GetLoad when SS load has
	// reached the resize threshold. It is never fatal.
	ErrNeedsResize = errors.New("recidx: load threshold reached, resize advised")

	// ErrBadArg is returned for a malformed key string, out-of-range
	// index, or invalid open mode.
	ErrBadArg = errors.New("recidx: bad argument")

	// ErrBadList is returned when a key-list fails the expansion grammar.
	ErrBadList = errors.New("recidx: malformed key list")

	// ErrBadAlloc is returned when cache or buffer growth fails.
	ErrBadAlloc = errors.New("recidx: allocation failed")

	// ErrWrongFile is returned when an SS header's checksum does not
	// match its recomputed CRC-16.
	ErrWrongFile = errors.New("recidx: header checksum mismatch")

	// ErrBufferOverflow is returned when a record-fill could not fit
	// the requested window in the supplied buffer.
	ErrBufferOverflow = errors.New("recidx: record buffer overflow")

	// ErrAlreadyOpen is returned by Create when the target path exists.
	ErrAlreadyOpen = errors.New("recidx: index file already exists")

	// ErrReadOnly is returned when a mutating operation is attempted on
	// a handle opened ReadOnly.
	ErrReadOnly = errors.New("recidx: handle is read-only")

	// ErrClosed is returned when operating on a closed handle.
	ErrClosed = errors.New("recidx: handle is closed")
)
