package recidx

import (
	"errors"
	"path/filepath"
	"strconv"
	"testing"
)

func mustCreateVA(t *testing.T, cfg Config) (*vaState, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "va.idx")
	va, err := createVA(path, cfg)
	if err != nil {
		t.Fatalf("createVA: %v", err)
	}
	return va, path
}

// TestVARoundTrip exercises P1: insert then find returns the same
// offset, delete then find reports NotFound, and mappings survive a
// close/reopen cycle.
func TestVARoundTrip(t *testing.T) {
	va, path := mustCreateVA(t, Config{})

	keys := map[string]uint64{"5": 50, "10": 100, "5000": 50000}
	for k, v := range keys {
		if err := va.insert(k, v); err != nil {
			t.Fatalf("insert(%s): %v", k, err)
		}
	}

	for k, v := range keys {
		got, err := va.find(k)
		if err != nil {
			t.Fatalf("find(%s): %v", k, err)
		}
		if got != v {
			t.Errorf("find(%s) = %d, want %d", k, got, v)
		}
	}

	if err := va.delete("10"); err != nil {
		t.Fatalf("delete(10): %v", err)
	}
	if _, err := va.find("10"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find(10) after delete = %v, want ErrNotFound", err)
	}

	if err := va.close(ReadWrite); err != nil {
		t.Fatalf("close: %v", err)
	}

	va2, err := openVA(path, ReadWrite, Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer va2.close(ReadWrite)

	for k, v := range keys {
		if k == "10" {
			continue
		}
		got, err := va2.find(k)
		if err != nil {
			t.Fatalf("find(%s) after reopen: %v", k, err)
		}
		if got != v {
			t.Errorf("find(%s) after reopen = %d, want %d", k, got, v)
		}
	}
	if _, err := va2.find("10"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find(10) after reopen = %v, want ErrNotFound", err)
	}
}

// TestVAExtendOnInsert exercises the example scenario from spec §8:
// inserting keys "5", "10", "5000" in sequence, verifying totalSlots
// reaches 5001, an unwritten slot in between ("7") reads NotFound, and
// so does a key past the end ("10000").
func TestVAExtendOnInsert(t *testing.T) {
	va, _ := mustCreateVA(t, Config{})

	for _, k := range []string{"5", "10", "5000"} {
		v, _ := strconv.ParseUint(k, 10, 64)
		if err := va.insert(k, v); err != nil {
			t.Fatalf("insert(%s): %v", k, err)
		}
	}

	if va.size.TotalSlots != 5001 {
		t.Errorf("TotalSlots = %d, want 5001", va.size.TotalSlots)
	}

	if _, err := va.find("5"); err != nil {
		t.Errorf("find(5) = %v, want OK", err)
	}
	if _, err := va.find("7"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find(7) = %v, want ErrNotFound", err)
	}
	if _, err := va.find("10000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("find(10000) = %v, want ErrNotFound", err)
	}
}

func TestVADuplicateInsert(t *testing.T) {
	va, _ := mustCreateVA(t, Config{})

	if err := va.insert("3", 30); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := va.insert("3", 99); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate insert = %v, want ErrDuplicate", err)
	}
}

func TestVADeleteNotFound(t *testing.T) {
	va, _ := mustCreateVA(t, Config{})

	if err := va.delete("0"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete on empty VA = %v, want ErrNotFound", err)
	}
}

func TestVABadKey(t *testing.T) {
	va, _ := mustCreateVA(t, Config{})

	if _, err := va.find("not-a-number"); !errors.Is(err, ErrBadArg) {
		t.Errorf("find with bad key = %v, want ErrBadArg", err)
	}
	if err := va.insert("-1", 0); !errors.Is(err, ErrBadArg) {
		t.Errorf("insert with negative key = %v, want ErrBadArg", err)
	}
}

// TestVACacheEviction forces repeated collisions on the same cache
// slot (small B) to exercise the flush-dirty-on-evict path.
func TestVACacheEviction(t *testing.T) {
	va, _ := mustCreateVA(t, Config{CacheSize: 4})

	for i := uint64(0); i < 40; i++ {
		k := strconv.FormatUint(i, 10)
		if err := va.insert(k, i*10); err != nil {
			t.Fatalf("insert(%s): %v", k, err)
		}
	}
	for i := uint64(0); i < 40; i++ {
		k := strconv.FormatUint(i, 10)
		got, err := va.find(k)
		if err != nil {
			t.Fatalf("find(%s): %v", k, err)
		}
		if got != i*10 {
			t.Errorf("find(%s) = %d, want %d", k, got, i*10)
		}
	}
}

func TestVAProcessAll(t *testing.T) {
	va, _ := mustCreateVA(t, Config{})

	want := map[string]uint64{"1": 10, "4": 40, "9": 90}
	for k, v := range want {
		if err := va.insert(k, v); err != nil {
			t.Fatalf("insert(%s): %v", k, err)
		}
	}

	got := map[string]uint64{}
	err := va.processAll(func(key string, offset uint64) bool {
		got[key] = offset
		return true
	})
	if err != nil {
		t.Fatalf("processAll: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("processAll visited %d entries, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("processAll[%s] = %d, want %d", k, got[k], v)
		}
	}
}

func TestVACreateAlreadyExists(t *testing.T) {
	_, path := mustCreateVA(t, Config{})

	if _, err := createVA(path, Config{}); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("create over existing file = %v, want ErrAlreadyOpen", err)
	}
}
