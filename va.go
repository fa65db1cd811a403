// Virtual Array backend (§4.1): a direct-addressed on-disk array,
// offset = header_size + k*elemSize for numeric key k, with empty slots
// marked by the sentinel value 0xFFFFFFFFFFFFFFFF. Ported from the
// original module's eVAIdxCreate/eVAIdxOpen/eVAIdxClose and
// eVAKeyInsert/eVAKeyDelete/eVAKeyFind, with the incore VACB cache
// (pVAopen/pvVAaccess/pvVAread) reworked into vaCache below.
package recidx

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
)

const (
	vaHeaderSize = 19 // totalSlots(8) + usedSlots(8) + elemSize(2) + fillByte(1)
	vaElemSize   = 8  // default record layout: a single u64 offset
)

// vaEmpty is the sentinel marking an unwritten or deleted VA slot.
const vaEmpty uint64 = 1<<64 - 1

type vaSizeInfo struct {
	TotalSlots uint64
	UsedSlots  uint64
	ElemSize   uint16
	FillByte   byte
}

// vaState is the incore descriptor for an open Virtual Array, the
// analogue of struct stVACore (VACB) in the original module.
type vaState struct {
	file  *os.File
	mode  Mode
	size  vaSizeInfo
	cache *vaCache
	lock  *fileLock
}

func createVA(path string, config Config) (*vaState, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("create %s: %w", path, ErrAlreadyOpen)
		}
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	size := vaSizeInfo{TotalSlots: 0, UsedSlots: 0, ElemSize: vaElemSize, FillByte: ' '}
	if err := writeVAHeader(f, size); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	va := &vaState{file: f, mode: ReadWrite, size: size, cache: newVACache(config.cacheSize(), size)}
	lk := newFileLock(f)
	if err := lk.Lock(LockExclusive); err != nil {
		f.Close()
		return nil, err
	}
	va.lock = lk
	return va, nil
}

func openVA(path string, mode Mode, config Config) (*vaState, error) {
	flag := os.O_RDWR
	if mode == ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	size, err := readVAHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	va := &vaState{file: f, mode: mode, size: size, cache: newVACache(config.cacheSize(), size)}

	lk := newFileLock(f)
	lockMode := LockShared
	if mode == ReadWrite {
		lockMode = LockExclusive
	}
	if err := lk.Lock(lockMode); err != nil {
		f.Close()
		return nil, err
	}
	va.lock = lk
	return va, nil
}

func (va *vaState) close(mode Mode) error {
	var err error
	if mode == ReadWrite {
		err = va.cache.flushAll(va)
		if err == nil {
			err = va.rewriteHeader()
		}
	}
	if va.lock != nil {
		_ = va.lock.Unlock()
	}
	if cerr := va.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func writeVAHeader(f *os.File, size vaSizeInfo) error {
	buf := make([]byte, vaHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], size.TotalSlots)
	binary.LittleEndian.PutUint64(buf[8:16], size.UsedSlots)
	binary.LittleEndian.PutUint16(buf[16:18], size.ElemSize)
	buf[18] = size.FillByte

	if _, err := f.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write VA header: %w", err)
	}
	return nil
}

func readVAHeader(f *os.File) (vaSizeInfo, error) {
	buf := make([]byte, vaHeaderSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return vaSizeInfo{}, fmt.Errorf("read VA header: %w", err)
	}
	return vaSizeInfo{
		TotalSlots: binary.LittleEndian.Uint64(buf[0:8]),
		UsedSlots:  binary.LittleEndian.Uint64(buf[8:16]),
		ElemSize:   binary.LittleEndian.Uint16(buf[16:18]),
		FillByte:   buf[18],
	}, nil
}

func (va *vaState) rewriteHeader() error {
	return writeVAHeader(va.file, va.size)
}

func (va *vaState) writeUsedSlots() error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, va.size.UsedSlots)
	if _, err := va.file.WriteAt(buf, 8); err != nil {
		return fmt.Errorf("write VA used-slots: %w", err)
	}
	return nil
}

func (va *vaState) writeTotalSlots() error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, va.size.TotalSlots)
	if _, err := va.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write VA total-slots: %w", err)
	}
	return nil
}

func vaRecordOffset(index uint64) int64 {
	return vaHeaderSize + int64(index)*vaElemSize
}

// insert parses keyStr as a decimal key k and maps VA[k] = offset.
func (va *vaState) insert(keyStr string, offset uint64) error {
	k, err := parseVAKey(keyStr)
	if err != nil {
		return err
	}

	if k < va.size.TotalSlots {
		cur, err := va.readSlot(k)
		if err != nil {
			return err
		}
		if cur != vaEmpty {
			return fmt.Errorf("insert %q: %w", keyStr, ErrDuplicate)
		}
	}

	if err := va.writeSlot(k, offset); err != nil {
		return err
	}

	va.size.UsedSlots++
	return va.writeUsedSlots()
}

// delete clears VA[k] back to the empty sentinel.
func (va *vaState) delete(keyStr string) error {
	k, err := parseVAKey(keyStr)
	if err != nil {
		return err
	}
	if k >= va.size.TotalSlots {
		return fmt.Errorf("delete %q: %w", keyStr, ErrNotFound)
	}

	cur, err := va.readSlot(k)
	if err != nil {
		return err
	}
	if cur == vaEmpty {
		return fmt.Errorf("delete %q: %w", keyStr, ErrNotFound)
	}

	if err := va.writeSlot(k, vaEmpty); err != nil {
		return err
	}

	va.size.UsedSlots--
	return va.writeUsedSlots()
}

// find reads VA[k], returning ErrNotFound if the slot is empty or out
// of range.
func (va *vaState) find(keyStr string) (uint64, error) {
	k, err := parseVAKey(keyStr)
	if err != nil {
		return 0, err
	}
	if k >= va.size.TotalSlots {
		return 0, fmt.Errorf("find %q: %w", keyStr, ErrNotFound)
	}

	v, err := va.readSlot(k)
	if err != nil {
		return 0, err
	}
	if v == vaEmpty {
		return 0, fmt.Errorf("find %q: %w", keyStr, ErrNotFound)
	}
	return v, nil
}

// readSlot returns VA[k] via the cache, extending the file first if k
// is past the current end.
func (va *vaState) readSlot(k uint64) (uint64, error) {
	if k >= va.size.TotalSlots {
		if va.mode != ReadWrite {
			return 0, fmt.Errorf("read slot %d: %w", k, ErrNotFound)
		}
		if err := va.extendTo(k); err != nil {
			return 0, err
		}
	}
	return va.cache.access(va, k)
}

// writeSlot sets VA[k] = v via the cache, extending the file first if
// needed.
func (va *vaState) writeSlot(k uint64, v uint64) error {
	if k >= va.size.TotalSlots {
		if err := va.extendTo(k); err != nil {
			return err
		}
	}
	return va.cache.write(va, k, v)
}

// extendTo appends blank records up to and including slot k, then
// rewrites totalSlots in the header.
func (va *vaState) extendTo(k uint64) error {
	blank := make([]byte, vaElemSize)
	binary.LittleEndian.PutUint64(blank, vaEmpty)

	if _, err := va.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("extend VA: %w", err)
	}
	for i := va.size.TotalSlots; i <= k; i++ {
		if _, err := va.file.Write(blank); err != nil {
			return fmt.Errorf("extend VA: %w", err)
		}
	}

	va.size.TotalSlots = k + 1
	return va.writeTotalSlots()
}

// processAll visits every occupied slot in [0, totalSlots) in order.
func (va *vaState) processAll(visit func(key string, offset uint64) bool) error {
	for k := uint64(0); k < va.size.TotalSlots; k++ {
		v, err := va.readSlot(k)
		if err != nil {
			return err
		}
		if v == vaEmpty {
			continue
		}
		if !visit(strconv.FormatUint(k, 10), v) {
			return nil
		}
	}
	return nil
}

func parseVAKey(keyStr string) (uint64, error) {
	k, err := strconv.ParseUint(keyStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse key %q: %w", keyStr, ErrBadArg)
	}
	return k, nil
}
