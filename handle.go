// Generic index contract (§4.3): a single polymorphic interface over the
// VA and SS backends. The concrete backend is fixed when a handle is
// created or opened; every operation after that dispatches on the tag
// stored in the handle rather than requiring the caller to know which
// backend they hold.
package recidx

import (
	"fmt"
	"os"
)

// Handle is the generic, backend-tagged index handle. All exported index
// operations are methods on Handle; they dispatch to va or ss depending
// on Backend.
type Handle struct {
	backend Backend
	path    string
	mode    Mode
	config  Config
	state   handleState

	va *vaState
	ss *ssState
}

type handleState int

const (
	stateOpen handleState = iota
	stateClosed
)

// Create creates a new index file at path for the given backend and
// returns a handle opened ReadWrite. It fails with ErrAlreadyOpen if
// path exists. keySize is the fixed key length in bytes (ignored by VA,
// which indexes by numeric slot); initialCapacity seeds SS's twin-prime
// sizing and is ignored by VA.
func Create(backend Backend, path string, keySize int, initialCapacity uint64, config Config) (*Handle, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create %s: %w", path, ErrAlreadyOpen)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	h := &Handle{backend: backend, path: path, mode: ReadWrite, config: config}

	switch backend {
	case BackendVA:
		va, err := createVA(path, config)
		if err != nil {
			return nil, err
		}
		h.va = va
	case BackendSS:
		ss, err := createSS(path, keySize, initialCapacity, config)
		if err != nil {
			return nil, err
		}
		h.ss = ss
	default:
		return nil, fmt.Errorf("create %s: %w: unknown backend", path, ErrBadArg)
	}
	return h, nil
}

// Open opens an existing index file in the given mode.
func Open(backend Backend, path string, mode Mode, config Config) (*Handle, error) {
	h := &Handle{backend: backend, path: path, mode: mode, config: config}

	switch backend {
	case BackendVA:
		va, err := openVA(path, mode, config)
		if err != nil {
			return nil, err
		}
		h.va = va
	case BackendSS:
		ss, err := openSS(path, mode, config)
		if err != nil {
			return nil, err
		}
		h.ss = ss
	default:
		return nil, fmt.Errorf("open %s: %w: unknown backend", path, ErrBadArg)
	}
	return h, nil
}

// Close flushes (if ReadWrite) and releases the handle. Further
// operations on a closed handle return ErrClosed.
func (h *Handle) Close() error {
	if h.state == stateClosed {
		return ErrClosed
	}
	h.state = stateClosed

	switch h.backend {
	case BackendVA:
		return h.va.close(h.mode)
	case BackendSS:
		return h.ss.close(h.mode)
	}
	return nil
}

func (h *Handle) checkOpen() error {
	if h.state == stateClosed {
		return ErrClosed
	}
	return nil
}

// Insert maps key to a data-file offset. key is parsed as a decimal
// numeric slot for VA, or taken as a fixed-length byte key for SS.
func (h *Handle) Insert(key string, offset uint64) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.mode == ReadOnly {
		return ErrReadOnly
	}
	switch h.backend {
	case BackendVA:
		return h.va.insert(key, offset)
	case BackendSS:
		return h.ss.insert([]byte(key), offset)
	}
	return ErrBadArg
}

// Delete removes key's mapping, if present.
func (h *Handle) Delete(key string) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.mode == ReadOnly {
		return ErrReadOnly
	}
	switch h.backend {
	case BackendVA:
		return h.va.delete(key)
	case BackendSS:
		return h.ss.delete([]byte(key))
	}
	return ErrBadArg
}

// Find looks up key, returning its offset or ErrNotFound.
func (h *Handle) Find(key string) (uint64, error) {
	if err := h.checkOpen(); err != nil {
		return 0, err
	}
	switch h.backend {
	case BackendVA:
		return h.va.find(key)
	case BackendSS:
		return h.ss.find([]byte(key))
	}
	return 0, ErrBadArg
}

// GetSize returns (totalSlots, usedSlots).
func (h *Handle) GetSize() (total, used uint64) {
	switch h.backend {
	case BackendVA:
		return h.va.size.TotalSlots, h.va.size.UsedSlots
	case BackendSS:
		return h.ss.size.TotalSlots, h.ss.size.UsedSlots
	}
	return 0, 0
}

// GetLoad returns the percent load (0-100), and ErrNeedsResize if the SS
// backend has reached its configured resize threshold. VA always reports
// nil since it never needs resizing.
func (h *Handle) GetLoad() (percent int, err error) {
	total, used := h.GetSize()
	if total == 0 {
		return 0, nil
	}
	percent = int(used * 100 / total)

	if h.backend == BackendSS && percent >= h.config.resizeLoadPercent() {
		return percent, ErrNeedsResize
	}
	return percent, nil
}

// Resize is SS-only: it grows the table to roughly percent% of its
// current size, rounded up to the next twin-prime pair, preserving all
// live entries. It is a no-op returning ErrBadArg for VA, which never
// needs to be resized (it grows element-by-element on out-of-range
// Insert instead, per §3.2).
func (h *Handle) Resize(percent int) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	if h.mode == ReadOnly {
		return ErrReadOnly
	}
	if h.backend != BackendSS {
		return fmt.Errorf("resize: %w: VA backend grows implicitly", ErrBadArg)
	}
	return h.ss.resize(percent)
}

// ProcessAll visits every live (key, offset) pair. For SS this walks
// slots in physical order; VA emulates it with a sequential scan over
// [0, totalSlots).  visit returning false stops iteration early.
func (h *Handle) ProcessAll(visit func(key string, offset uint64) bool) error {
	if err := h.checkOpen(); err != nil {
		return err
	}
	switch h.backend {
	case BackendVA:
		return h.va.processAll(visit)
	case BackendSS:
		return h.ss.processAll(visit)
	}
	return ErrBadArg
}

// KeySize reports the fixed key length: SS's configured keySize, or for
// VA the width of the decimal representation is unconstrained (VA keys
// are arbitrary non-negative decimal integers), so VA returns 0.
func (h *Handle) KeySize() int {
	if h.backend == BackendSS {
		return h.ss.keySize
	}
	return 0
}

// Path returns the backing file path the handle was created or opened
// with, for diagnostics.
func (h *Handle) Path() string { return h.path }
