package recidx

import (
	"encoding/binary"
	"fmt"
)

// vaCacheSlot mirrors one entry of the original module's VA cache
// buffer: a cached VA index (cachedKey) plus the elemSize record bytes
// that belong to it. cachedKey == vaEmpty marks the slot unused.
type vaCacheSlot struct {
	cachedKey uint64
	value     uint64
	dirty     bool
}

// vaCache is the direct-mapped, single-set write-back cache described
// in §3.3: slot = key mod B. A miss that finds the resident slot dirty
// flushes it to disk before the new record is read in; Close flushes
// every dirty slot (vaState.close).
type vaCache struct {
	slots []vaCacheSlot
}

func newVACache(b int, size vaSizeInfo) *vaCache {
	slots := make([]vaCacheSlot, b)
	for i := range slots {
		slots[i].cachedKey = vaEmpty
	}
	return &vaCache{slots: slots}
}

func (c *vaCache) slotFor(k uint64) *vaCacheSlot {
	return &c.slots[k%uint64(len(c.slots))]
}

// access returns the current value of VA[k], reading from disk through
// the cache on a miss.
func (c *vaCache) access(va *vaState, k uint64) (uint64, error) {
	s := c.slotFor(k)
	if s.cachedKey == k {
		return s.value, nil
	}

	if err := c.evictIfDirty(va, s); err != nil {
		return 0, err
	}

	v, err := readVARecord(va, k)
	if err != nil {
		return 0, err
	}
	s.cachedKey = k
	s.value = v
	s.dirty = false
	return v, nil
}

// write sets VA[k] = v in the cache, marking the slot dirty rather than
// writing through immediately; the value reaches disk on eviction or
// Close.
func (c *vaCache) write(va *vaState, k uint64, v uint64) error {
	s := c.slotFor(k)
	if s.cachedKey != k {
		if err := c.evictIfDirty(va, s); err != nil {
			return err
		}
	}
	s.cachedKey = k
	s.value = v
	s.dirty = true
	return nil
}

func (c *vaCache) evictIfDirty(va *vaState, s *vaCacheSlot) error {
	if s.cachedKey == vaEmpty || !s.dirty {
		return nil
	}
	if err := writeVARecord(va, s.cachedKey, s.value); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// flushAll writes every dirty cache slot back to disk; called from
// vaState.close in ReadWrite mode.
func (c *vaCache) flushAll(va *vaState) error {
	for i := range c.slots {
		s := &c.slots[i]
		if s.cachedKey == vaEmpty || !s.dirty {
			continue
		}
		if err := writeVARecord(va, s.cachedKey, s.value); err != nil {
			return err
		}
		s.dirty = false
	}
	return nil
}

func readVARecord(va *vaState, k uint64) (uint64, error) {
	buf := make([]byte, vaElemSize)
	if _, err := va.file.ReadAt(buf, vaRecordOffset(k)); err != nil {
		return 0, fmt.Errorf("read VA record %d: %w", k, err)
	}
	return binary.LittleEndian.Uint64(buf), nil
}

func writeVARecord(va *vaState, k uint64, v uint64) error {
	buf := make([]byte, vaElemSize)
	binary.LittleEndian.PutUint64(buf, v)
	if _, err := va.file.WriteAt(buf, vaRecordOffset(k)); err != nil {
		return fmt.Errorf("write VA record %d: %w", k, err)
	}
	return nil
}
