package shufmask

import (
	"fmt"
	"strings"
)

// Emitter writes textual LLVM IR for decoded shuffles.
type Emitter struct {
	b   *strings.Builder
	tmp int
}

func NewEmitter(b *strings.Builder) *Emitter {
	return &Emitter{b: b}
}

func (e *Emitter) newTmp() string {
	t := fmt.Sprintf("t%d", e.tmp)
	e.tmp++
	return t
}

func llvmVecType(n, bits int) string {
	return fmt.Sprintf("<%d x i%d>", n, bits)
}

// FormatMaskIR renders m as a shufflevector mask operand. Zero lanes become
// undef; callers pair the shuffle with a select (see Emitter.Shuffle).
func FormatMaskIR(m Mask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<%d x i32> <", len(m))
	for i, el := range m {
		if i != 0 {
			sb.WriteString(", ")
		}
		if idx, ok := el.Index(); ok {
			fmt.Fprintf(&sb, "i32 %d", idx)
		} else {
			sb.WriteString("i32 undef")
		}
	}
	sb.WriteString(">")
	return sb.String()
}

// keepMaskIR is the select condition keeping every non-zero lane.
func keepMaskIR(m Mask) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<%d x i1> <", len(m))
	for i, el := range m {
		if i != 0 {
			sb.WriteString(", ")
		}
		if el.IsZero() {
			sb.WriteString("i1 false")
		} else {
			sb.WriteString("i1 true")
		}
	}
	sb.WriteString(">")
	return sb.String()
}

// Shuffle emits the shuffle of x and y (both of type vt) by m and returns
// the SSA value holding the result, e.g. "%t3".
func (e *Emitter) Shuffle(vt VT, x, y string, m Mask) (string, error) {
	if err := checkVT(vt); err != nil {
		return "", err
	}
	if len(m) == 0 {
		return "", preconditionf("empty shuffle mask")
	}
	if err := m.Validate(vt.NumElts()); err != nil {
		return "", err
	}
	in := vt.String()
	outTy := llvmVecType(len(m), vt.ElemBits())

	sh := e.newTmp()
	fmt.Fprintf(e.b, "  %%%s = shufflevector %s %s, %s %s, %s\n", sh, in, x, in, y, FormatMaskIR(m))
	if !m.HasZero() {
		return "%" + sh, nil
	}
	sel := e.newTmp()
	fmt.Fprintf(e.b, "  %%%s = select %s, %s %%%s, %s zeroinitializer\n", sel, keepMaskIR(m), outTy, sh, outTy)
	return "%" + sel, nil
}

// FuncIR returns a function
//
//	define void @name(ptr %out, ptr %a, ptr %b)
//
// that loads two vt vectors from a and b, shuffles them by m and stores the
// result to out.
func FuncIR(name string, vt VT, m Mask) (string, error) {
	var b strings.Builder
	e := NewEmitter(&b)
	in := vt.String()

	fmt.Fprintf(&b, "define void @%s(ptr %%out, ptr %%a, ptr %%b) {\n", name)
	b.WriteString("entry:\n")
	x := e.newTmp()
	fmt.Fprintf(&b, "  %%%s = load %s, ptr %%a, align 1\n", x, in)
	y := e.newTmp()
	fmt.Fprintf(&b, "  %%%s = load %s, ptr %%b, align 1\n", y, in)
	res, err := e.Shuffle(vt, "%"+x, "%"+y, m)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	fmt.Fprintf(&b, "  store %s %s, ptr %%out, align 1\n", llvmVecType(len(m), vt.ElemBits()), res)
	b.WriteString("  ret void\n")
	b.WriteString("}\n")
	return b.String(), nil
}

// ModuleIR wraps function definitions into a module for triple (omitted when
// empty).
func ModuleIR(triple string, funcs ...string) string {
	var b strings.Builder
	b.WriteString("; ModuleID = 'shufmask'\n")
	if triple != "" {
		fmt.Fprintf(&b, "target triple = %q\n", triple)
	}
	for _, f := range funcs {
		b.WriteString("\n")
		b.WriteString(f)
	}
	return b.String()
}
