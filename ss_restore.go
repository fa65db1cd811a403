// Integrity repair for the Scatter Storage backend (§4.2.5). Ported
// from the original module's eHashIdxRestore: recompute totalSlots from
// the file's physical size, then rescan to recount usedSlots. No slot
// is modified; the corrected sizeInfo is only persisted by a later
// clean Close.
package recidx

import "fmt"

// restore recomputes size from the file's actual length and a full
// slot scan. Called from openSS when a ReadWrite open finds the on-disk
// integrity bit unclean; a ReadOnly open does not restore.
func (ss *ssState) restore() error {
	info, err := ss.file.Stat()
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	filesize := info.Size()
	slotBytes := ss.slotBytes()
	if filesize < ssHeaderFixedSize || slotBytes <= 0 {
		return fmt.Errorf("restore: %w: truncated file", ErrWrongFile)
	}

	total := uint64((filesize - ssHeaderFixedSize) / slotBytes)

	var used uint64
	for slot := uint64(0); slot < total; slot++ {
		s, err := ss.readSlot(slot)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if s.status == slotStatusUsed {
			used++
		}
	}

	ss.size.TotalSlots = total
	ss.size.UsedSlots = used
	return nil
}
