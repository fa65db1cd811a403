// Compressed index snapshot backup/restore. Neither VA nor SS files
// are ever edited in place by a snapshot: SnapshotIndex reads a
// closed index file whole, zstd-compresses it, and writes the frame
// to an io.Writer; RestoreIndex reverses it into a fresh file,
// refusing to overwrite an existing path the same way Create does.
//
// Adapted from the teacher's document-compression wiring — a shared
// package-level encoder/decoder (construction is comparatively
// expensive) and the same EncodeAll/DecodeAll one-shot API — but
// generalized from "compress one document body into a JSON-safe
// ascii85 string" to "compress an entire index file onto a plain
// io.Writer": a snapshot has no embedding-in-JSON constraint the
// teacher's ascii85 step existed for, so the zstd frame is written
// raw.
package recidx

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

var (
	snapshotEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	snapshotDecoder, _ = zstd.NewReader(nil)
)

// SnapshotIndex compresses the index file at path and writes the
// resulting zstd frame to w. The caller must ensure the index is not
// concurrently open ReadWrite (Close it, or open ReadOnly) so the
// bytes read are a consistent point-in-time copy.
func SnapshotIndex(path string, w io.Writer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", path, err)
	}

	compressed := snapshotEncoder.EncodeAll(raw, nil)
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("snapshot %s: write: %w", path, err)
	}
	return nil
}

// RestoreIndex decompresses a zstd frame produced by SnapshotIndex
// into a new file at destPath. It fails with ErrAlreadyOpen if
// destPath exists, matching Create's overwrite-refusal contract.
func RestoreIndex(r io.Reader, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("restore %s: %w", destPath, ErrAlreadyOpen)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("restore %s: %w", destPath, err)
	}

	frame, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("restore %s: read frame: %w", destPath, err)
	}

	raw, err := snapshotDecoder.DecodeAll(frame, nil)
	if err != nil {
		return fmt.Errorf("restore %s: decompress: %w", destPath, err)
	}

	if err := os.WriteFile(destPath, raw, 0o644); err != nil {
		return fmt.Errorf("restore %s: %w", destPath, err)
	}
	return nil
}
