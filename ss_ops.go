// Slot I/O and the key-location engine shared by Insert/Delete/Find
// (§4.2.3, §4.2.4). Ported from the original module's eWriteIdxKey/
// eReadIdxKey and eHashKeyInsert/eHashKeyDelete/eHashKeyFind/eLocateKey.
package recidx

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type ssSlot struct {
	status int32
	key    []byte
	offset uint64
}

func (ss *ssState) readSlot(slot uint64) (ssSlot, error) {
	buf := make([]byte, ss.slotBytes())
	if _, err := ss.file.ReadAt(buf, ss.slotOffset(slot)); err != nil {
		return ssSlot{}, fmt.Errorf("read slot %d: %w", slot, err)
	}
	status := int32(binary.LittleEndian.Uint32(buf[0:4]))
	key := make([]byte, ss.keySize)
	copy(key, buf[4:4+ss.keySize])
	offset := binary.LittleEndian.Uint64(buf[4+ss.keySize:])
	return ssSlot{status: status, key: key, offset: offset}, nil
}

func (ss *ssState) writeSlot(slot uint64, s ssSlot) error {
	buf := make([]byte, ss.slotBytes())
	binary.LittleEndian.PutUint32(buf[0:4], uint32(s.status))
	copy(buf[4:4+ss.keySize], s.key)
	binary.LittleEndian.PutUint64(buf[4+ss.keySize:], s.offset)
	if _, err := ss.file.WriteAt(buf, ss.slotOffset(slot)); err != nil {
		return fmt.Errorf("write slot %d: %w", slot, err)
	}
	return nil
}

// locate finds key's slot, probing with double hashing. It returns the
// slot index and whether the key was found; slot is only meaningful
// when found is true, except that Insert reuses it as the first
// vacant/deleted slot encountered along the probe chain.
func (ss *ssState) locate(key []byte) (slot uint64, found bool, err error) {
	key = fixedKey(key, ss.keySize)
	cur := primaryHash(ss.algorithm, key, ss.size.TotalSlots)
	increment := rehashIncrement(ss.algorithm, key, ss.prime1())
	firstDeleted, sawDeleted := uint64(0), false

	for {
		s, err := ss.readSlot(cur)
		if err != nil {
			return 0, false, err
		}
		switch s.status {
		case slotStatusVacant:
			if sawDeleted {
				return firstDeleted, false, nil
			}
			return cur, false, nil
		case slotStatusUsed:
			if bytes.Equal(key, s.key) {
				return cur, true, nil
			}
			cur = rehash(cur, increment, ss.size.TotalSlots)
		case slotStatusDeleted:
			if !sawDeleted {
				firstDeleted, sawDeleted = cur, true
			}
			cur = rehash(cur, increment, ss.size.TotalSlots)
		default:
			return 0, false, fmt.Errorf("slot %d: %w: unknown status %d", cur, ErrBadArg, s.status)
		}
	}
}

func fixedKey(key []byte, keySize int) []byte {
	out := make([]byte, keySize)
	copy(out, key)
	return out
}

func (ss *ssState) insert(key []byte, offset uint64) error {
	if ss.mode != ReadWrite {
		return ErrReadOnly
	}
	if ss.size.UsedSlots+2 > ss.size.TotalSlots {
		return fmt.Errorf("insert %q: %w", key, ErrFull)
	}

	slot, found, err := ss.locate(key)
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("insert %q: %w", key, ErrDuplicate)
	}

	if err := ss.writeSlot(slot, ssSlot{status: slotStatusUsed, key: fixedKey(key, ss.keySize), offset: offset}); err != nil {
		return err
	}
	ss.size.UsedSlots++
	if ss.syncWrites {
		return ss.writeUsedSlots()
	}
	return nil
}

func (ss *ssState) delete(key []byte) error {
	if ss.mode != ReadWrite {
		return ErrReadOnly
	}

	slot, found, err := ss.locate(key)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("delete %q: %w", key, ErrNotFound)
	}

	if err := ss.writeSlot(slot, ssSlot{status: slotStatusDeleted, key: fixedKey(key, ss.keySize), offset: 0}); err != nil {
		return err
	}
	ss.size.UsedSlots--
	if ss.syncWrites {
		return ss.writeUsedSlots()
	}
	return nil
}

func (ss *ssState) find(key []byte) (uint64, error) {
	slot, found, err := ss.locate(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("find %q: %w", key, ErrNotFound)
	}
	s, err := ss.readSlot(slot)
	if err != nil {
		return 0, err
	}
	return s.offset, nil
}

// processAll visits every Used slot in physical order (§4.2, "eHashIdxProcess").
func (ss *ssState) processAll(visit func(key string, offset uint64) bool) error {
	for slot := uint64(0); slot < ss.size.TotalSlots; slot++ {
		s, err := ss.readSlot(slot)
		if err != nil {
			return err
		}
		if s.status != slotStatusUsed {
			continue
		}
		if !visit(string(trimTrailingNul(s.key)), s.offset) {
			return nil
		}
	}
	return nil
}

func trimTrailingNul(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}
