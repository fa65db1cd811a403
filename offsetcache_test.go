package recidx

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

// TestOffsetCacheFillFromKeyList exercises the spec's §8 example 4
// scenario directly: a key-list against an index holding "00001"
// through "00010" should populate exactly 4 entries in expansion
// order.
func TestOffsetCacheFillFromKeyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oc.ss")
	h, err := Create(BackendSS, path, 5, 20, Config{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	for i := 1; i <= 10; i++ {
		k := fmt.Sprintf("%05d", i)
		if err := h.Insert(k, uint64(i)*100); err != nil {
			t.Fatalf("Insert(%s): %v", k, err)
		}
	}

	cache := NewOffsetCache()
	if err := cache.FillFromKeyList("00005-00007,00010", 5, h.Find); err != nil {
		t.Fatalf("FillFromKeyList: %v", err)
	}

	want := []uint64{500, 600, 700, 1000}
	if cache.Used() != uint64(len(want)) {
		t.Fatalf("Used = %d, want %d", cache.Used(), len(want))
	}
	for i, v := range want {
		if got := cache.At(uint64(i + 1)); got != v {
			t.Errorf("entries[%d] = %d, want %d", i+1, got, v)
		}
	}
}

// TestOffsetCacheFillFromKeyListSkipsMisses confirms unmatched keys
// are skipped silently rather than failing the whole fill.
func TestOffsetCacheFillFromKeyListSkipsMisses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oc2.ss")
	h, err := Create(BackendSS, path, 5, 20, Config{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer h.Close()

	if err := h.Insert("00001", 111); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cache := NewOffsetCache()
	if err := cache.FillFromKeyList("00001,00002", 5, h.Find); err != nil {
		t.Fatalf("FillFromKeyList: %v", err)
	}
	if cache.Used() != 1 || cache.At(1) != 111 {
		t.Errorf("cache after miss-skip = used %d entry[1] %d, want used 1 entry 111", cache.Used(), cache.At(1))
	}
}

// TestOffsetCacheFillFromKeyListBadList confirms a malformed key-list
// propagates ErrBadList from the expander.
func TestOffsetCacheFillFromKeyListBadList(t *testing.T) {
	cache := NewOffsetCache()
	err := cache.FillFromKeyList("12x", 5, func(string) (uint64, error) { return 0, nil })
	if !errors.Is(err, ErrBadList) {
		t.Fatalf("FillFromKeyList with malformed list = %v, want ErrBadList", err)
	}
}

// TestOffsetCacheGrowthBeyondInitialCapacity appends more entries than
// the initial 100-slot capacity to exercise the ×2 growth path.
func TestOffsetCacheGrowthBeyondInitialCapacity(t *testing.T) {
	cache := NewOffsetCache()
	cache.reset(offsetCacheInitSize)

	const n = 250
	for i := 0; i < n; i++ {
		cache.append(uint64(i))
	}
	if cache.Used() != n {
		t.Fatalf("Used = %d, want %d", cache.Used(), n)
	}
	for i := 0; i < n; i++ {
		if got := cache.At(uint64(i + 1)); got != uint64(i) {
			t.Errorf("entries[%d] = %d, want %d", i+1, got, i)
		}
	}
}

// TestOffsetCacheFillFromSearchExpressionCompacts exercises the
// tag-then-compact algorithm: entries whose record fails to match are
// removed, survivors keep their relative order.
func TestOffsetCacheFillFromSearchExpressionCompacts(t *testing.T) {
	records := map[uint64]string{
		10: "apple pie",
		20: "banana split",
		30: "apple tart",
		40: "cherry cake",
	}

	cache := NewOffsetCache()
	cache.reset(offsetCacheInitSize)
	for _, off := range []uint64{10, 20, 30, 40} {
		cache.append(off)
	}

	m, err := BuildSearch("apple", true)
	if err != nil {
		t.Fatalf("BuildSearch: %v", err)
	}

	readRecord := func(offset uint64) ([]byte, error) {
		return []byte(records[offset]), nil
	}

	if err := cache.FillFromSearchExpression(m, readRecord); err != nil {
		t.Fatalf("FillFromSearchExpression: %v", err)
	}

	if cache.Used() != 2 {
		t.Fatalf("Used after filter = %d, want 2", cache.Used())
	}
	if cache.At(1) != 10 || cache.At(2) != 30 {
		t.Errorf("entries after filter = [%d, %d], want [10, 30]", cache.At(1), cache.At(2))
	}
}
