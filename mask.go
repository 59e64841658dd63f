package shufmask

import (
	"strconv"
	"strings"
)

// SentinelZero is the value Mask.Ints uses for a forced-zero lane. Consumers
// of the integer form must test for it before treating an entry as an index.
const SentinelZero = -1

// Elt is one output lane of a shuffle mask: either an index into the
// concatenation of the two sources, or Zero.
type Elt struct {
	idx  uint32
	zero bool
}

// Zero forces its output lane to 0.
var Zero = Elt{zero: true}

// Src selects element i of the concatenated sources. Indices below the
// element count read the first source, the rest read the second.
func Src(i int) Elt { return Elt{idx: uint32(i)} }

// IsZero reports whether the lane is forced to zero.
func (e Elt) IsZero() bool { return e.zero }

// Index returns the source index, or false for a zero lane.
func (e Elt) Index() (int, bool) {
	if e.zero {
		return 0, false
	}
	return int(e.idx), true
}

func (e Elt) String() string {
	if e.zero {
		return "Z"
	}
	return strconv.FormatUint(uint64(e.idx), 10)
}

// Mask lists, per output lane in order, where the lane's value comes from.
type Mask []Elt

// Validate checks that every source index addresses one of the 2*n elements
// of two n-element sources.
func (m Mask) Validate(n int) error {
	for i, e := range m {
		if e.zero {
			continue
		}
		if int(e.idx) >= 2*n {
			return preconditionf("lane %d: index %d out of range for %d-element sources", i, e.idx, n)
		}
	}
	return nil
}

// Ints returns the mask as plain integers with SentinelZero for zero lanes.
func (m Mask) Ints() []int {
	out := make([]int, len(m))
	for i, e := range m {
		if e.zero {
			out[i] = SentinelZero
		} else {
			out[i] = int(e.idx)
		}
	}
	return out
}

// MaskFromInts is the inverse of Mask.Ints.
func MaskFromInts(v []int) (Mask, error) {
	m := make(Mask, len(v))
	for i, x := range v {
		switch {
		case x == SentinelZero:
			m[i] = Zero
		case x < 0:
			return nil, preconditionf("lane %d: negative index %d", i, x)
		default:
			m[i] = Src(x)
		}
	}
	return m, nil
}

// HasZero reports whether any lane is forced to zero.
func (m Mask) HasZero() bool {
	for _, e := range m {
		if e.zero {
			return true
		}
	}
	return false
}

// UsesSecond reports whether any lane reads the second of two n-element
// sources.
func (m Mask) UsesSecond(n int) bool {
	for _, e := range m {
		if !e.zero && int(e.idx) >= n {
			return true
		}
	}
	return false
}

// IsIdentity reports whether lane i reads element i of the first source for
// every lane.
func (m Mask) IsIdentity() bool {
	for i, e := range m {
		if e.zero || int(e.idx) != i {
			return false
		}
	}
	return true
}

func (m Mask) String() string {
	var b strings.Builder
	b.WriteString("[")
	for i, e := range m {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.String())
	}
	b.WriteString("]")
	return b.String()
}
