package shufmask

import (
	"fmt"
	"strconv"
	"strings"
)

// VT describes the shape of a vector operand: how many elements it holds and
// how wide each element is.
type VT struct {
	elts int
	bits int
}

var (
	V8I8   = VT{elts: 8, bits: 8}
	V4I16  = VT{elts: 4, bits: 16}
	V16I8  = VT{elts: 16, bits: 8}
	V8I16  = VT{elts: 8, bits: 16}
	V4I32  = VT{elts: 4, bits: 32}
	V2I64  = VT{elts: 2, bits: 64}
	V32I8  = VT{elts: 32, bits: 8}
	V16I16 = VT{elts: 16, bits: 16}
	V8I32  = VT{elts: 8, bits: 32}
	V4I64  = VT{elts: 4, bits: 64}
)

// NewVT returns the shape <n x i<bits>>.
func NewVT(n, bits int) (VT, error) {
	if n <= 0 {
		return VT{}, preconditionf("vector element count must be positive, got %d", n)
	}
	switch bits {
	case 8, 16, 32, 64:
	default:
		return VT{}, preconditionf("unsupported element width %d", bits)
	}
	return VT{elts: n, bits: bits}, nil
}

// VTForBits returns the shape with the given total width and element width.
func VTForBits(total, elemBits int) (VT, error) {
	if elemBits <= 0 || total%elemBits != 0 {
		return VT{}, preconditionf("%d-bit vector cannot hold %d-bit elements", total, elemBits)
	}
	return NewVT(total/elemBits, elemBits)
}

// NumElts is the number of elements.
func (vt VT) NumElts() int { return vt.elts }

// ElemBits is the width of one element in bits.
func (vt VT) ElemBits() int { return vt.bits }

// SizeInBits is the width of the whole vector.
func (vt VT) SizeInBits() int { return vt.elts * vt.bits }

// IsValid reports whether vt has at least one element of nonzero width. The
// zero VT is invalid.
func (vt VT) IsValid() bool { return vt.elts > 0 && vt.bits > 0 }

// NumLanes is the number of independent 128-bit lanes. Vectors narrower than
// 128 bits count as a single lane.
func (vt VT) NumLanes() int {
	n := vt.SizeInBits() / 128
	if n == 0 {
		return 1
	}
	return n
}

// LaneElts is the number of elements in one 128-bit lane.
func (vt VT) LaneElts() int {
	return vt.elts / vt.NumLanes()
}

func (vt VT) String() string {
	if !vt.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("<%d x i%d>", vt.elts, vt.bits)
}

// ParseVT parses an LLVM vector type such as "<8 x i32>".
func ParseVT(s string) (VT, error) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "<") || !strings.HasSuffix(t, ">") {
		return VT{}, fmt.Errorf("invalid vector type %q", s)
	}
	t = strings.TrimSpace(t[1 : len(t)-1])
	n, elem, ok := strings.Cut(t, "x")
	if !ok {
		return VT{}, fmt.Errorf("invalid vector type %q", s)
	}
	elts, err := strconv.Atoi(strings.TrimSpace(n))
	if err != nil {
		return VT{}, fmt.Errorf("invalid vector length in %q", s)
	}
	elem = strings.TrimSpace(elem)
	if !strings.HasPrefix(elem, "i") {
		return VT{}, fmt.Errorf("invalid element type in %q", s)
	}
	bits, err := strconv.Atoi(elem[1:])
	if err != nil {
		return VT{}, fmt.Errorf("invalid element type in %q", s)
	}
	return NewVT(elts, bits)
}
