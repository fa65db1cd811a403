// Record-fill / windowed scrolling buffer engine (§3.6, §4.4.2,
// §4.4.3). A RecordBuffer is a fixed-size byte region that gets
// refilled, one cache window at a time, with the variable-length
// records an OffsetCache points at — each terminated by the key-mark
// byte that opens the next record in the data file.
//
// Ported from the original's eKeyDBRead (window-reposition dispatch
// over symbolic tokens) and eKeyBufFill (the BLKSIZ-sized block-read
// loop, key-mark scan, and overflow rollback).
package recidx

import (
	"bytes"
	"io"
)

type windowKind int

const (
	posFirst windowKind = iota
	posPrevious
	posCurrent
	posNext
	posLast
	posAbsolute
)

// WindowPos selects where a window repositioning starts from: one of
// the five symbolic tokens, or an absolute 1-based cache index via
// Absolute(k).
type WindowPos struct {
	kind windowKind
	abs  uint64
}

var (
	First    = WindowPos{kind: posFirst}
	Previous = WindowPos{kind: posPrevious}
	Current  = WindowPos{kind: posCurrent}
	Next     = WindowPos{kind: posNext}
	Last     = WindowPos{kind: posLast}
)

// Absolute positions the window at the 1-based cache index k.
func Absolute(k uint64) WindowPos { return WindowPos{kind: posAbsolute, abs: k} }

// RecordBuffer is the fixed-size byte region records are assembled
// into. keyMark identifies the first byte of each record in the
// underlying data file; fillByte pads unused buffer space after a
// fill.
type RecordBuffer struct {
	base      []byte
	keyMark   byte
	fillByte  byte
	blockSize int
}

// NewRecordBuffer allocates a buffer of the given size. size must be
// large enough to hold at least one complete record plus its
// terminator; very small sizes simply overflow on the first fill.
// config.BlockSize (the original's "BLKSIZ") tunes the per-seek read
// burst used while filling; zero defaults to DefaultBlockSize.
func NewRecordBuffer(size int, keyMark, fillByte byte, config Config) *RecordBuffer {
	return &RecordBuffer{base: make([]byte, size), keyMark: keyMark, fillByte: fillByte, blockSize: config.blockSize()}
}

// Bytes returns the buffer's current contents, including the
// trailing fill bytes and terminating '\0's.
func (rb *RecordBuffer) Bytes() []byte { return rb.base }

// CapturePattern returns the buffer's leading NUL-terminated content,
// bounded to maxPatternLength, for use as a search expression source
// per §4.4.1 step 1.
func (rb *RecordBuffer) CapturePattern() string {
	n := bytes.IndexByte(rb.base, 0)
	if n < 0 {
		n = len(rb.base)
	}
	if n > maxPatternLength {
		n = maxPatternLength
	}
	return string(rb.base[:n])
}

func clampU64(v, lo, hi uint64) uint64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func resolveTop(cache *OffsetCache, pos WindowPos) uint64 {
	switch pos.kind {
	case posFirst:
		return 1
	case posLast:
		return cache.used
	case posCurrent:
		if cache.top == 0 {
			return 1
		}
		return cache.top
	case posPrevious:
		if cache.top <= 1 {
			return 1
		}
		return cache.top - 1
	case posNext:
		if cache.bot == 0 {
			return 1
		}
		return cache.bot + 1
	case posAbsolute:
		return pos.abs
	}
	return 1
}

// Window repositions the buffer's cache window per §4.4.2 and refills
// it from data via the §4.4.3 block-read algorithm. setSize is the
// signed target window height; its sign only determines whether the
// window is measured forward or backward from the resolved top, and
// does not affect which end is lower (top is always <= bot on
// return).
func (rb *RecordBuffer) Window(cache *OffsetCache, pos WindowPos, setSize int, data io.ReaderAt) error {
	if cache.used == 0 {
		cache.top, cache.bot = 0, 0
		rb.clear(0)
		return nil
	}

	top := clampU64(resolveTop(cache, pos), 1, cache.used)

	sign := int64(1)
	if setSize < 0 {
		sign = -1
	}
	bot := int64(top) + int64(setSize) - sign
	bot = int64(clampU64(uint64(maxI64(bot, 1)), 1, cache.used))

	topI := int64(top)
	if bot < topI {
		topI, bot = bot, topI
	}

	_, err := rb.fill(cache, uint64(topI), uint64(bot), data)
	return err
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// clear resets the buffer to an empty, fully fill-byte-padded state
// starting at offset start.
func (rb *RecordBuffer) clear(start int) {
	size := len(rb.base)
	if start >= size {
		if size > 0 {
			rb.base[size-1] = 0
		}
		return
	}
	rb.base[start] = 0
	for i := start + 1; i < size-1; i++ {
		rb.base[i] = rb.fillByte
	}
	if size > 0 {
		rb.base[size-1] = 0
	}
}

// fill implements §4.4.3: block-read every record in cache.entries[top..bot]
// from data into the buffer, truncating at the key-mark byte that opens
// the next record, rolling back an incomplete last record on overflow.
// It returns the effective bot (the last record actually fully written)
// and ErrBufferOverflow if the window did not fit.
func (rb *RecordBuffer) fill(cache *OffsetCache, top, bot uint64, data io.ReaderAt) (uint64, error) {
	base := rb.base
	size := len(base)
	writePtr := 0
	recordStart := 0
	overflowed := false
	effectiveBot := top - 1

	for n := top; n <= bot; n++ {
		recordStart = writePtr
		offset := int64(cache.At(n))
		firstBlock := true
		recordDone := false

		for !recordDone {
			spaceLeft := size - writePtr
			block := rb.blockSize
			if spaceLeft-1 < block {
				block = spaceLeft - 1
			}
			if block <= 0 {
				overflowed = true
				recordDone = true
				break
			}

			buf := make([]byte, block)
			read, rerr := data.ReadAt(buf, offset)
			if rerr != nil && rerr != io.EOF {
				return effectiveBot, rerr
			}

			if read > 0 {
				scanFrom := 0
				if firstBlock {
					scanFrom = 1
				}
				if scanFrom <= read {
					if idx := bytes.IndexByte(buf[scanFrom:read], rb.keyMark); idx >= 0 {
						usable := scanFrom + idx
						copy(base[writePtr:], buf[:usable])
						writePtr += usable
						recordDone = true
					} else {
						copy(base[writePtr:], buf[:read])
						writePtr += read
						offset += int64(read)
					}
				}
			}
			firstBlock = false

			if rerr == io.EOF {
				recordDone = true
			}
		}

		if overflowed {
			break
		}
		effectiveBot = n
	}

	if overflowed {
		writePtr = recordStart
	}

	base[writePtr] = 0
	for i := writePtr + 1; i < size-1; i++ {
		base[i] = rb.fillByte
	}
	if size > 0 {
		base[size-1] = 0
	}

	cache.top, cache.bot = top, effectiveBot

	if overflowed {
		return effectiveBot, ErrBufferOverflow
	}
	return effectiveBot, nil
}
