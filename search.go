// Opaque search capability (§1, §4.4.1): a search expression is
// compiled once into a matcher and then run against each candidate
// record pulled through the offset cache. The contract deliberately
// hides the expression language behind Build/Run so the cache-search
// algorithm in offsetcache.go never needs to know it is regexp
// underneath — another pattern engine could be swapped in behind the
// same two methods.
//
// Grounded on the teacher's own regex-over-record-content search
// (byte-scanning record content and matching with regexp), here
// generalized from "match one JSON field" to "match the raw record
// bytes produced by the record buffer".
package recidx

import (
	"fmt"
	"regexp"
)

// maxPatternLength mirrors the original's MAXPAT: a search pattern
// captured into the record buffer is bounded to 128 bytes.
const maxPatternLength = 128

// matcher is the compiled form of a search expression.
type matcher struct {
	re *regexp.Regexp
}

// BuildSearch compiles pattern into a matcher. Patterns longer than
// maxPatternLength are rejected with ErrBadArg, matching the buffer
// capture limit the original enforced at the call site.
func BuildSearch(pattern string, caseSensitive bool) (*matcher, error) {
	if len(pattern) > maxPatternLength {
		return nil, fmt.Errorf("%w: search pattern exceeds %d bytes", ErrBadArg, maxPatternLength)
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArg, err)
	}
	return &matcher{re: re}, nil
}

// Run reports whether record matches the compiled expression.
func (m *matcher) Run(record []byte) bool {
	return m.re.Match(record)
}
