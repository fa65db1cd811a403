// Load-driven resize for the Scatter Storage backend (§4.2). Ported
// from the original module's eHashIdxResize/wCopy2New: build a fresh,
// larger twin-prime-sized table in a temporary file, re-insert every
// live entry (which also silently drops tombstones), then atomically
// replace the original file. natefinch/atomic supplies the
// cross-platform atomic rename the original did "by hand" with
// remove+rename.
package recidx

import (
	"fmt"
	"os"

	atomicfile "github.com/natefinch/atomic"
)

// resize grows (or, if percent < 100, attempts to shrink) the table to
// roughly percent% of its current totalSlots, rounded up to the next
// twin-prime pair. It never shrinks below usedSlots.
func (ss *ssState) resize(percent int) error {
	if ss.mode != ReadWrite {
		return ErrReadOnly
	}
	if percent <= 0 {
		return fmt.Errorf("resize: %w: percent must be positive", ErrBadArg)
	}

	requested := ss.size.TotalSlots * uint64(percent) / 100
	if requested < ss.size.UsedSlots {
		requested = ss.size.UsedSlots
	}
	newTotal := twinPrime(requested + 1)

	tmpPath := ss.tmpResizePath()
	os.Remove(tmpPath)

	tmp, err := createSS(tmpPath, ss.keySize, newTotal-1, Config{
		Algorithm: ss.algorithm, SyncWrites: ss.syncWrites,
	})
	if err != nil {
		return fmt.Errorf("resize: create staging file: %w", err)
	}

	var insertErr error
	scanErr := ss.processAll(func(key string, offset uint64) bool {
		if err := tmp.insert([]byte(key), offset); err != nil {
			insertErr = err
			return false
		}
		return true
	})
	if insertErr == nil {
		insertErr = scanErr
	}
	if insertErr != nil {
		tmp.close(ReadWrite)
		os.Remove(tmpPath)
		return fmt.Errorf("resize: copy entries: %w", insertErr)
	}

	if err := tmp.close(ReadWrite); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("resize: close staging file: %w", err)
	}

	path := ss.path()
	if err := atomicfile.ReplaceFile(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("resize: replace %s: %w", path, err)
	}

	reopened, err := openSS(path, ReadWrite, Config{Algorithm: ss.algorithm, SyncWrites: ss.syncWrites})
	if err != nil {
		return fmt.Errorf("resize: reopen %s: %w", path, err)
	}

	if ss.lock != nil {
		_ = ss.lock.Unlock()
	}
	*ss = *reopened
	return nil
}

func (ss *ssState) path() string {
	return ss.file.Name()
}

func (ss *ssState) tmpResizePath() string {
	return ss.path() + ".resize.tmp"
}
