// Key-list expansion grammar (§4.3.1, P6). Ported from the original
// module's eKeyBufScan: a restartable lazy iterator over a comma-
// separated list of key specifications, each either a literal key, a
// range ("A-B"), or a metachar class terminated by a bare "-".
//
// The original's trick of tracking per-position begin/end/work
// pointers in file-scope static arrays, with a boolean "trap" flag
// toggled across calls, is re-expressed here as an explicit odometer
// over a slice of per-position (or per-digit-run) value groups, kept
// as fields on keyExpander rather than package-level statics.
package recidx

import (
	"fmt"
	"strconv"
)

// collatingCompare orders a and b (equal-length byte slices) using
// each position's collating-sequence index. For equal-width decimal
// digit runs this agrees with numeric order, so it is the single
// comparison expandRange needs to decide whether a KeySpec's range is
// given in order.
func collatingCompare(a, b []byte) int {
	for i := range a {
		ai, bi := collatingIndex(a[i]), collatingIndex(b[i])
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
	}
	return 0
}

const (
	keyListSep      = ','
	keyListRangeSep = '-'
	classDigit      = '#'
	classLetter     = '@'
	classAlnum      = '*'
)

// collating is the custom collating sequence range expansion walks:
// digits, then lowercase, then uppercase.
const collating = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

func collatingIndex(c byte) int {
	for i := 0; i < len(collating); i++ {
		if collating[i] == c {
			return i
		}
	}
	return -1
}

// keyGroup is one independently-cycling unit of a KeySpec expansion: a
// maximal decimal digit run (spanning possibly several key positions,
// advancing as one base-10 counter with carry) or a single position
// cycling through a sub-range of the collating sequence. Each group's
// values are pre-expanded in enumeration order.
type keyGroup struct {
	values []string
}

// keyExpander is the restartable lazy iterator described in §4.3.1: it
// yields one literal key per Next call, preserving state across calls
// for ranges and classes, which expand to many keys.
type keyExpander struct {
	rest    string
	keySize int

	groups  []keyGroup
	counter []int
	active  bool
}

func newKeyExpander(keyList string, keySize int) *keyExpander {
	return &keyExpander{rest: keyList, keySize: keySize}
}

// Next returns the next literal key. At end-of-list it returns
// ("", false, nil) — EOL is a normal stop condition, not an error.
func (e *keyExpander) Next() (string, bool, error) {
	if e.active {
		if key, more := e.advance(); more {
			return key, true, nil
		}
		e.active = false
	}

	if e.rest == "" {
		return "", false, nil
	}

	groups, singleton, remainder, err := nextKeySpec(e.rest, e.keySize)
	if err != nil {
		return "", false, err
	}
	e.rest = remainder

	if groups == nil {
		return singleton, true, nil
	}
	e.groups = groups
	e.counter = make([]int, len(groups))
	e.active = true
	return e.current(), true, nil
}

func (e *keyExpander) current() string {
	buf := make([]byte, 0, e.keySize)
	for i, g := range e.groups {
		buf = append(buf, g.values[e.counter[i]]...)
	}
	return string(buf)
}

// advance steps the odometer to the next combination, rightmost group
// fastest, carrying left on overflow. Returns ("", false) once every
// combination has been produced.
func (e *keyExpander) advance() (string, bool) {
	for i := len(e.counter) - 1; i >= 0; i-- {
		if e.counter[i]+1 < len(e.groups[i].values) {
			e.counter[i]++
			for j := i + 1; j < len(e.counter); j++ {
				e.counter[j] = 0
			}
			return e.current(), true
		}
	}
	return "", false
}

// nextKeySpec parses one KeySpec off the front of s. It returns either
// a non-nil groups slice (range/class expansion) or a singleton key
// string, plus the unconsumed remainder of the key-list.
func nextKeySpec(s string, keySize int) (groups []keyGroup, singleton string, remainder string, err error) {
	if len(s) < keySize {
		return nil, "", "", fmt.Errorf("%w: key %q shorter than keySize %d", ErrBadList, s, keySize)
	}
	value := s[:keySize]
	tail := s[keySize:]

	if tail == "" {
		return nil, value, "", nil
	}

	switch tail[0] {
	case keyListSep:
		return nil, value, tail[1:], nil

	case keyListRangeSep:
		after := tail[1:]
		if after == "" || after[0] == keyListSep {
			g, err := expandClass([]byte(value))
			if err != nil {
				return nil, "", "", err
			}
			if after != "" {
				after = after[1:]
			}
			return g, "", after, nil
		}

		if len(after) < keySize {
			return nil, "", "", fmt.Errorf("%w: range end %q shorter than keySize %d", ErrBadList, after, keySize)
		}
		endValue := after[:keySize]
		rest := after[keySize:]
		if rest != "" && rest[0] != keyListSep {
			return nil, "", "", fmt.Errorf("%w: malformed range terminator in %q", ErrBadList, s)
		}
		if rest != "" {
			rest = rest[1:]
		}
		g, err := expandRange([]byte(value), []byte(endValue))
		if err != nil {
			return nil, "", "", err
		}
		return g, "", rest, nil

	default:
		return nil, "", "", fmt.Errorf("%w: expected ',' or '-' after key value in %q", ErrBadList, s)
	}
}

func isDecimalDigit(b byte) bool { return b >= '0' && b <= '9' }

// expandRange decomposes a KeyValue-KeyValue range into groups,
// merging maximal digit runs into a single decimal odometer digit per
// §4.3.1's "decimal-run sub-ranges" rule; non-digit positions cycle
// independently through the collating sequence.
func expandRange(begin, end []byte) ([]keyGroup, error) {
	if len(begin) != len(end) {
		return nil, fmt.Errorf("%w: range endpoints differ in length", ErrBadList)
	}

	// Open Question (spec §9.1): "A-B" with A > B yields the single
	// key A rather than an error or an empty expansion.
	if collatingCompare(begin, end) > 0 {
		return []keyGroup{{values: []string{string(begin)}}}, nil
	}

	var groups []keyGroup
	for i := 0; i < len(begin); {
		if isDecimalDigit(begin[i]) && isDecimalDigit(end[i]) {
			j := i + 1
			for j < len(begin) && isDecimalDigit(begin[j]) && isDecimalDigit(end[j]) {
				j++
			}
			g, err := digitRunGroup(begin[i:j], end[i:j])
			if err != nil {
				return nil, err
			}
			groups = append(groups, g)
			i = j
			continue
		}
		g, err := singlePositionGroup(begin[i], end[i])
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
		i++
	}
	return groups, nil
}

// expandClass builds one independent single-position group per byte of
// spec, per the metachar rules ("#" digits, "@" letters, "*"
// alphanumeric, anything else a literal fixed character). Unlike
// expandRange, class positions never merge into a combined decimal
// run — each metachar cycles on its own.
func expandClass(spec []byte) ([]keyGroup, error) {
	groups := make([]keyGroup, len(spec))
	for i, c := range spec {
		var lo, hi byte
		switch c {
		case classDigit:
			lo, hi = '0', '9'
		case classLetter:
			lo, hi = 'a', 'Z'
		case classAlnum:
			lo, hi = '0', 'Z'
		default:
			lo, hi = c, c
		}
		g, err := singlePositionGroup(lo, hi)
		if err != nil {
			return nil, err
		}
		groups[i] = g
	}
	return groups, nil
}

func digitRunGroup(begin, end []byte) (keyGroup, error) {
	width := len(begin)
	lo, err := strconv.ParseUint(string(begin), 10, 64)
	if err != nil {
		return keyGroup{}, fmt.Errorf("%w: bad digit run %q", ErrBadList, begin)
	}
	hi, err := strconv.ParseUint(string(end), 10, 64)
	if err != nil {
		return keyGroup{}, fmt.Errorf("%w: bad digit run %q", ErrBadList, end)
	}
	if lo > hi {
		return keyGroup{}, fmt.Errorf("%w: digit run %q-%q out of order", ErrBadList, begin, end)
	}
	values := make([]string, 0, hi-lo+1)
	for v := lo; v <= hi; v++ {
		values = append(values, fmt.Sprintf("%0*d", width, v))
	}
	return keyGroup{values: values}, nil
}

func singlePositionGroup(begin, end byte) (keyGroup, error) {
	lo := collatingIndex(begin)
	hi := collatingIndex(end)
	if lo < 0 || hi < 0 {
		return keyGroup{}, fmt.Errorf("%w: character outside collating sequence", ErrBadList)
	}
	if lo > hi {
		return keyGroup{}, fmt.Errorf("%w: position range out of order", ErrBadList)
	}
	values := make([]string, 0, hi-lo+1)
	for idx := lo; idx <= hi; idx++ {
		values = append(values, string(collating[idx]))
	}
	return keyGroup{values: values}, nil
}
