// Index-Make driver (§4.5): scans a data file for key-marked records
// and builds a fresh index from them, one Insert per record, polling
// SS load after every insert and growing the table before it fills.
//
// Grounded on original_source/INDEX.C's build loop (read datafile
// lines, test byte 0 against the key-mark, extract the fixed-width
// key, insert at the line's file offset) generalized across both
// backends via the generic Handle contract instead of being
// SS-specific.
package recidx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// BuildStats reports what an index build did, for progress output
// and the optional .meta.json sidecar.
type BuildStats struct {
	DataFile         string  `json:"dataFile"`
	IndexFile        string  `json:"indexFile"`
	RecordCount      int     `json:"recordCount"`
	Duplicates       int     `json:"duplicates"`
	Resizes          int     `json:"resizes"`
	FinalTotalSlots  uint64  `json:"finalTotalSlots"`
	FinalUsedSlots   uint64  `json:"finalUsedSlots"`
	FinalLoadPercent int     `json:"finalLoadPercent"`
	ElapsedSeconds   float64 `json:"elapsedSeconds"`
}

// BuildIndex implements §4.5 end to end: Create the index, scan
// dataPath for key-marked records, Insert each at its file offset,
// grow SS as load demands, then report stats and Close. Duplicate
// keys are counted and skipped rather than failing the build, per
// §4.5 step 2; any other error aborts the build and the partially
// written index file is left for the caller to inspect or remove.
func BuildIndex(backend Backend, idxPath, dataPath string, keySize int, initialCapacity uint64, config Config) (BuildStats, error) {
	started := time.Now()
	stats := BuildStats{DataFile: dataPath, IndexFile: idxPath}

	h, err := Create(backend, idxPath, keySize, initialCapacity, config)
	if err != nil {
		return stats, err
	}

	if buildErr := scanAndInsert(h, dataPath, keySize, config.KeyMark, &stats); buildErr != nil {
		h.Close()
		return stats, buildErr
	}

	total, used := h.GetSize()
	stats.FinalTotalSlots = total
	stats.FinalUsedSlots = used
	if total > 0 {
		stats.FinalLoadPercent = int(used * 100 / total)
	}
	stats.ElapsedSeconds = time.Since(started).Seconds()

	if config.WriteMetaSidecar {
		if err := writeMetaSidecar(idxPath, stats); err != nil {
			h.Close()
			return stats, err
		}
	}

	if err := h.Close(); err != nil {
		return stats, err
	}
	return stats, nil
}

func scanAndInsert(h *Handle, dataPath string, keySize int, keyMark byte, stats *BuildStats) error {
	df, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("open data file %s: %w", dataPath, err)
	}
	defer df.Close()

	reader := bufio.NewReader(df)
	var offset int64

	for {
		lineStart := offset
		line, readErr := reader.ReadString('\n')
		offset += int64(len(line))

		if len(line) > 0 && line[0] == keyMark {
			key := extractKey(line, keySize)
			if insErr := h.Insert(key, uint64(lineStart)); insErr != nil {
				if errors.Is(insErr, ErrDuplicate) {
					stats.Duplicates++
				} else {
					return fmt.Errorf("insert at offset %d: %w", lineStart, insErr)
				}
			} else {
				stats.RecordCount++

				if h.backend == BackendSS {
					if _, loadErr := h.GetLoad(); errors.Is(loadErr, ErrNeedsResize) {
						if err := h.Resize(200); err != nil {
							return fmt.Errorf("resize after offset %d: %w", lineStart, err)
						}
						stats.Resizes++
					}
				}
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read data file %s: %w", dataPath, readErr)
		}
	}
}

// extractKey takes the bytes at positions 1..1+keySize of a record's
// first line, right-padding with spaces if the line is too short and
// truncating if it is too long, per §4.5 step 2 / §6.4. Mirrors
// original_source/INDEX.C's scan loop, which stops at the first
// '\r'/'\n'/'\0' before padding rather than treating the terminator as
// part of the key.
func extractKey(line string, keySize int) string {
	body := line
	if len(body) > 0 {
		body = body[1:]
	}
	if end := strings.IndexAny(body, "\r\n\x00"); end >= 0 {
		body = body[:end]
	}
	if len(body) >= keySize {
		return body[:keySize]
	}
	padded := make([]byte, keySize)
	copy(padded, body)
	for i := len(body); i < keySize; i++ {
		padded[i] = ' '
	}
	return string(padded)
}

func writeMetaSidecar(idxPath string, stats BuildStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build stats: %w", err)
	}
	if err := os.WriteFile(idxPath+".meta.json", data, 0o644); err != nil {
		return fmt.Errorf("write meta sidecar: %w", err)
	}
	return nil
}
