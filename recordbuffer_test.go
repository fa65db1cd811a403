package recidx

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// memData is a fixed-length in-memory fake of the data file, backing
// io.ReaderAt the way an *os.File would.
type memData []byte

func (m memData) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m)) {
		return 0, io.EOF
	}
	n := copy(p, m[off:])
	if off+int64(n) >= int64(len(m)) {
		return n, io.EOF
	}
	return n, nil
}

// buildRecords concatenates n fixed-width records, each opening with
// keyMark, into one data blob, and returns the blob plus the 0-based
// byte offset each record starts at (usable directly as cache entries).
func buildRecords(keyMark byte, n, width int) (memData, []uint64) {
	data := make([]byte, 0, n*width)
	offsets := make([]uint64, n)
	for i := 0; i < n; i++ {
		offsets[i] = uint64(len(data))
		rec := make([]byte, width)
		rec[0] = keyMark
		for j := 1; j < width; j++ {
			rec[j] = byte('A' + (i+j)%26)
		}
		data = append(data, rec...)
	}
	return memData(data), offsets
}

func newFilledCache(offsets []uint64) *OffsetCache {
	c := NewOffsetCache()
	c.reset(offsetCacheInitSize)
	for _, off := range offsets {
		c.append(off)
	}
	return c
}

// TestRecordBufferFillBasic exercises a window that fits comfortably,
// confirming each record is copied verbatim up to (not including) the
// next record's key-mark, NUL-terminated, with the remainder fill-byte
// padded.
func TestRecordBufferFillBasic(t *testing.T) {
	const keyMark, fillByte = byte(1), byte(' ')
	data, offsets := buildRecords(keyMark, 5, 10)
	cache := newFilledCache(offsets)

	rb := NewRecordBuffer(64, keyMark, fillByte, Config{})
	if err := rb.Window(cache, First, 3, data); err != nil {
		t.Fatalf("Window: %v", err)
	}

	if cache.top != 1 || cache.bot != 3 {
		t.Fatalf("window = [%d,%d], want [1,3]", cache.top, cache.bot)
	}

	want := append(append([]byte{}, data[offsets[0]:offsets[0]+10]...), data[offsets[1]:offsets[1]+10]...)
	want = append(want, data[offsets[2]:offsets[2]+10]...)
	if !bytes.Equal(rb.base[:30], want) {
		t.Errorf("buffer[:30] = %q, want %q", rb.base[:30], want)
	}
	if rb.base[30] != 0 {
		t.Errorf("buffer[30] = %d, want 0 terminator", rb.base[30])
	}
	if rb.base[31] != fillByte {
		t.Errorf("buffer[31] = %d, want fill byte", rb.base[31])
	}
	if rb.base[63] != 0 {
		t.Errorf("buffer[size-1] = %d, want 0", rb.base[63])
	}
}

// TestRecordBufferFillIdempotent exercises P7: filling Current twice
// in a row without moving the window produces byte-identical buffer
// contents both times.
func TestRecordBufferFillIdempotent(t *testing.T) {
	const keyMark, fillByte = byte(1), byte(' ')
	data, offsets := buildRecords(keyMark, 6, 12)
	cache := newFilledCache(offsets)

	rb := NewRecordBuffer(64, keyMark, fillByte, Config{})
	if err := rb.Window(cache, First, 4, data); err != nil {
		t.Fatalf("first Window: %v", err)
	}
	first := append([]byte{}, rb.base...)

	if err := rb.Window(cache, Current, 4, data); err != nil {
		t.Fatalf("second Window: %v", err)
	}
	second := rb.base

	if !bytes.Equal(first, second) {
		t.Errorf("repeated Current fill differs:\n  first:  %q\n  second: %q", first, second)
	}
}

// TestRecordBufferFillHonorsConfiguredBlockSize forces a BlockSize far
// smaller than a single record, so a correct fill must stitch a record
// together from several block reads rather than one; the result must
// match a fill done with the default block size exactly.
func TestRecordBufferFillHonorsConfiguredBlockSize(t *testing.T) {
	const keyMark, fillByte = byte(1), byte(' ')
	data, offsets := buildRecords(keyMark, 5, 10)

	cacheDefault := newFilledCache(offsets)
	rbDefault := NewRecordBuffer(64, keyMark, fillByte, Config{})
	if err := rbDefault.Window(cacheDefault, First, 3, data); err != nil {
		t.Fatalf("default-block-size Window: %v", err)
	}

	cacheSmall := newFilledCache(offsets)
	rbSmall := NewRecordBuffer(64, keyMark, fillByte, Config{BlockSize: 3})
	if err := rbSmall.Window(cacheSmall, First, 3, data); err != nil {
		t.Fatalf("small-block-size Window: %v", err)
	}

	if !bytes.Equal(rbDefault.base, rbSmall.base) {
		t.Errorf("BlockSize=3 fill differs from default:\n  default: %q\n  small:   %q", rbDefault.base, rbSmall.base)
	}
}

// TestRecordBufferOverflowRollback exercises P8 against the spec's
// own worked example: a 64-byte buffer, a window of 10 records of
// ~20 bytes each, should end with a '\0' after the last complete
// record and report BufferOverflow, with window.bot clamped to that
// last complete record.
func TestRecordBufferOverflowRollback(t *testing.T) {
	const keyMark, fillByte = byte(1), byte(' ')
	data, offsets := buildRecords(keyMark, 10, 20)
	cache := newFilledCache(offsets)

	rb := NewRecordBuffer(64, keyMark, fillByte, Config{})
	err := rb.Window(cache, First, 10, data)
	if err == nil {
		t.Fatal("Window over-capacity = nil error, want ErrBufferOverflow")
	}
	if !isBufferOverflow(err) {
		t.Fatalf("Window over-capacity = %v, want ErrBufferOverflow", err)
	}

	if cache.bot != 3 {
		t.Errorf("window.bot = %d, want 3 (last complete record)", cache.bot)
	}
	if rb.base[60] != 0 {
		t.Errorf("buffer[60] = %d, want 0 terminator after last complete record", rb.base[60])
	}
	for i := 61; i < 63; i++ {
		if rb.base[i] != fillByte {
			t.Errorf("buffer[%d] = %d, want fill byte", i, rb.base[i])
		}
	}
	if rb.base[63] != 0 {
		t.Errorf("buffer[size-1] = %d, want 0", rb.base[63])
	}
}

func isBufferOverflow(err error) bool {
	return errors.Is(err, ErrBufferOverflow)
}
