// Scatter Storage backend (§4.2): an open-addressed on-disk hash table
// using double hashing with twin primes, tombstone deletion, and a
// CRC-16-protected header with an integrity bit. Ported from the
// original module's eHashIdxCreate/eHashIdxOpen/eHashIdxClose and
// vUpdate_stHdisk, generalized from the fixed PJW/ADD/FLL trio to the
// selectable HashAlgorithm set in ss_hash.go.
package recidx

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

const (
	ssIntegrityOK      int64 = -1
	ssIntegrityUnknown int64 = 0
)

const (
	ssHeaderFixedSize = 28 // integrity(8) + checksum(2) + keySize(2) + totalSlots(8) + usedSlots(8)
	ssSizeInfoSize    = 18 // keySize(2) + totalSlots(8) + usedSlots(8)
)

const (
	slotStatusVacant  int32 = 0
	slotStatusUsed    int32 = 1
	slotStatusDeleted int32 = 2
)

type ssSizeInfo struct {
	KeySize    uint16
	TotalSlots uint64
	UsedSlots  uint64
}

// ssState is the incore descriptor for an open Scatter Storage index,
// the analogue of struct stHcore (HASH) in the original module.
type ssState struct {
	file       *os.File
	mode       Mode
	size       ssSizeInfo
	keySize    int
	algorithm  HashAlgorithm
	syncWrites bool
	lock       *fileLock
}

func (ss *ssState) slotBytes() int64 {
	return 4 + int64(ss.keySize) + 8
}

func (ss *ssState) slotOffset(slot uint64) int64 {
	return ssHeaderFixedSize + int64(slot)*ss.slotBytes()
}

// prime1 is the twin-prime partner of totalSlots, used as the modulus
// for the double-hashing increment (§4.2.2).
func (ss *ssState) prime1() uint64 {
	return ss.size.TotalSlots - 2
}

func createSS(path string, keySize int, initialCapacity uint64, config Config) (*ssState, error) {
	if keySize < 1 {
		return nil, fmt.Errorf("create %s: %w: keySize must be >= 1", path, ErrBadArg)
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("create %s: %w", path, ErrAlreadyOpen)
	}

	total := twinPrime(initialCapacity + 1)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	ss := &ssState{
		file:       f,
		mode:       ReadWrite,
		size:       ssSizeInfo{KeySize: uint16(keySize), TotalSlots: total, UsedSlots: 0},
		keySize:    keySize,
		algorithm:  config.Algorithm,
		syncWrites: config.SyncWrites,
	}

	if err := ss.writeHeader(ssIntegrityUnknown); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	if err := ss.writeVacantSlots(0, total); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}

	lk := newFileLock(f)
	if err := lk.Lock(LockExclusive); err != nil {
		f.Close()
		return nil, err
	}
	ss.lock = lk
	return ss, nil
}

func openSS(path string, mode Mode, config Config) (*ssState, error) {
	flag := os.O_RDWR
	if mode == ReadOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	integrity, checksum, size, err := readSSHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if !verifyChecksum(encodeSizeInfo(size), checksum) {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, ErrWrongFile)
	}

	ss := &ssState{
		file:       f,
		mode:       mode,
		size:       size,
		keySize:    int(size.KeySize),
		algorithm:  config.Algorithm,
		syncWrites: config.SyncWrites,
	}

	if mode == ReadWrite {
		if integrity == ssIntegrityOK {
			if err := ss.writeHeader(ssIntegrityUnknown); err != nil {
				f.Close()
				return nil, err
			}
		} else {
			if err := ss.restore(); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	lk := newFileLock(f)
	lockMode := LockShared
	if mode == ReadWrite {
		lockMode = LockExclusive
	}
	if err := lk.Lock(lockMode); err != nil {
		f.Close()
		return nil, err
	}
	ss.lock = lk
	return ss, nil
}

func (ss *ssState) close(mode Mode) error {
	var err error
	if mode == ReadWrite {
		err = ss.writeHeader(ssIntegrityOK)
	}
	if ss.lock != nil {
		_ = ss.lock.Unlock()
	}
	if cerr := ss.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func encodeSizeInfo(size ssSizeInfo) []byte {
	buf := make([]byte, ssSizeInfoSize)
	binary.LittleEndian.PutUint16(buf[0:2], size.KeySize)
	binary.LittleEndian.PutUint64(buf[2:10], size.TotalSlots)
	binary.LittleEndian.PutUint64(buf[10:18], size.UsedSlots)
	return buf
}

func (ss *ssState) writeHeader(integrity int64) error {
	sizeBuf := encodeSizeInfo(ss.size)
	checksum := checksum(sizeBuf)

	buf := make([]byte, ssHeaderFixedSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(integrity))
	binary.LittleEndian.PutUint16(buf[8:10], checksum)
	copy(buf[10:28], sizeBuf)

	if _, err := ss.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("write SS header: %w", err)
	}
	return nil
}

func readSSHeader(f *os.File) (integrity int64, checksum uint16, size ssSizeInfo, err error) {
	buf := make([]byte, ssHeaderFixedSize)
	if _, err = io.ReadFull(f, buf); err != nil {
		return 0, 0, ssSizeInfo{}, fmt.Errorf("read SS header: %w", err)
	}
	integrity = int64(binary.LittleEndian.Uint64(buf[0:8]))
	checksum = binary.LittleEndian.Uint16(buf[8:10])
	size = ssSizeInfo{
		KeySize:    binary.LittleEndian.Uint16(buf[10:12]),
		TotalSlots: binary.LittleEndian.Uint64(buf[12:20]),
		UsedSlots:  binary.LittleEndian.Uint64(buf[20:28]),
	}
	return integrity, checksum, size, nil
}

// writeVacantSlots fills [from, to) with vacant slots, the full-size
// initialization eHashIdxCreate performs up front.
func (ss *ssState) writeVacantSlots(from, to uint64) error {
	blank := make([]byte, ss.slotBytes())
	for i := from; i < to; i++ {
		if _, err := ss.file.WriteAt(blank, ss.slotOffset(i)); err != nil {
			return fmt.Errorf("write vacant slot %d: %w", i, err)
		}
	}
	return nil
}

// writeUsedSlots persists the current usedSlots by rewriting the whole
// header (integrity still unknown), so the stored checksum keeps
// matching the sizeInfo it covers.
func (ss *ssState) writeUsedSlots() error {
	return ss.writeHeader(ssIntegrityUnknown)
}
