package shufmask

import (
	"fmt"
	"strconv"
	"strings"
)

type OperandKind uint8

const (
	OpInvalid OperandKind = iota
	OpImm                 // $imm with a known value
	OpExpr                // $expr that could not be evaluated
	OpReg                 // X3, Y12, AX
	OpSym                 // sym<>+off(SB)
	OpMem                 // off(base)(index*scale)
)

// Operand is one argument of a Plan 9 instruction.
type Operand struct {
	Kind OperandKind
	Imm  int64
	Reg  string
	Sym  string
	Off  int64
	Raw  string
}

func (o Operand) String() string { return o.Raw }

// Instr is one Plan 9 assembly statement. Operands are in Plan 9 order:
// sources first, destination last.
type Instr struct {
	Op   string
	Args []Operand
	Raw  string
	Line int
}

func (ins Instr) String() string { return ins.Raw }

// ParseInstr parses a single Plan 9 statement such as
// "VPSHUFD $0x1b, Y1, Y2". Labels ("loop:") are dropped.
func ParseInstr(text string) (Instr, error) {
	return parseInstr(text, 0, nil)
}

func parseInstr(text string, line int, defines map[string]string) (Instr, error) {
	raw := strings.TrimSpace(text)
	s := raw
	if i := strings.IndexByte(s, ':'); i > 0 && isIdent(s[:i]) {
		s = strings.TrimSpace(s[i+1:])
	}
	if s == "" {
		return Instr{Raw: raw, Line: line}, nil
	}
	op, rest := s, ""
	if j := strings.IndexAny(s, " \t"); j >= 0 {
		op, rest = s[:j], s[j+1:]
	}
	ins := Instr{Op: strings.ToUpper(op), Raw: raw, Line: line}
	for _, a := range splitArgs(rest) {
		arg, err := parseOperand(a, defines)
		if err != nil {
			return Instr{}, fmt.Errorf("%q: %w", raw, err)
		}
		ins.Args = append(ins.Args, arg)
	}
	return ins, nil
}

func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var (
		args    []string
		depth   int
		start   int
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		if inQuote {
			switch s[i] {
			case '\\':
				i++
			case '"':
				inQuote = false
			}
			continue
		}
		switch s[i] {
		case '"':
			inQuote = true
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(args, strings.TrimSpace(s[start:]))
}

func parseOperand(s string, defines map[string]string) (Operand, error) {
	op := Operand{Raw: s}
	switch {
	case s == "":
		return op, fmt.Errorf("empty operand")
	case strings.HasPrefix(s, "$"):
		v, err := evalExpr(s[1:], defines)
		if err != nil {
			op.Kind = OpExpr
			return op, nil
		}
		op.Kind = OpImm
		op.Imm = v
	case strings.HasSuffix(s, "(SB)"):
		sym := strings.TrimSuffix(s, "(SB)")
		op.Kind = OpSym
		op.Sym = sym
		if i := strings.LastIndexAny(sym, "+-"); i > 0 {
			off, err := evalExpr(sym[i:], defines)
			if err == nil {
				op.Sym = strings.TrimSpace(sym[:i])
				op.Off = off
			}
		}
	case strings.Contains(s, "("):
		op.Kind = OpMem
	default:
		op.Kind = OpReg
		op.Reg = strings.ToUpper(s)
	}
	return op, nil
}

// RegBits returns the width of a vector register name: M (MMX) 64,
// X 128, Y 256, Z 512. Other registers report 0.
func RegBits(reg string) int {
	if len(reg) < 2 {
		return 0
	}
	if _, err := strconv.Atoi(reg[1:]); err != nil {
		return 0
	}
	switch reg[0] {
	case 'M':
		return 64
	case 'X':
		return 128
	case 'Y':
		return 256
	case 'Z':
		return 512
	}
	return 0
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i], i == 0) {
			return false
		}
	}
	return true
}

// evalExpr evaluates the integer expressions Go assembly uses for
// immediates: literals, #defined names, parentheses, unary - ^ ~ and the
// binary operators * / % << >> & + - | ^ with Go precedence.
func evalExpr(s string, defines map[string]string) (int64, error) {
	p := &exprParser{s: s, defines: defines}
	v, err := p.binary(1)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.s) {
		return 0, fmt.Errorf("unexpected %q in %q", p.s[p.pos:], s)
	}
	return v, nil
}

type exprParser struct {
	s       string
	pos     int
	defines map[string]string
	depth   int
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

var binaryOps = []struct {
	tok  string
	prec int
}{
	{"<<", 5}, {">>", 5}, {"&^", 5},
	{"*", 5}, {"/", 5}, {"%", 5}, {"&", 5},
	{"+", 4}, {"-", 4}, {"|", 4}, {"^", 4},
}

func (p *exprParser) peekOp() (string, int) {
	p.skipSpace()
	for _, o := range binaryOps {
		if strings.HasPrefix(p.s[p.pos:], o.tok) {
			return o.tok, o.prec
		}
	}
	return "", 0
}

func (p *exprParser) binary(minPrec int) (int64, error) {
	lhs, err := p.unary()
	if err != nil {
		return 0, err
	}
	for {
		tok, prec := p.peekOp()
		if tok == "" || prec < minPrec {
			return lhs, nil
		}
		p.pos += len(tok)
		rhs, err := p.binary(prec + 1)
		if err != nil {
			return 0, err
		}
		switch tok {
		case "<<":
			lhs <<= uint64(rhs)
		case ">>":
			lhs >>= uint64(rhs)
		case "&^":
			lhs &^= rhs
		case "*":
			lhs *= rhs
		case "/", "%":
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero in %q", p.s)
			}
			if tok == "/" {
				lhs /= rhs
			} else {
				lhs %= rhs
			}
		case "&":
			lhs &= rhs
		case "+":
			lhs += rhs
		case "-":
			lhs -= rhs
		case "|":
			lhs |= rhs
		case "^":
			lhs ^= rhs
		}
	}
}

func (p *exprParser) unary() (int64, error) {
	p.skipSpace()
	if p.pos >= len(p.s) {
		return 0, fmt.Errorf("unexpected end of %q", p.s)
	}
	switch c := p.s[p.pos]; {
	case c == '-':
		p.pos++
		v, err := p.unary()
		return -v, err
	case c == '+':
		p.pos++
		return p.unary()
	case c == '^' || c == '~':
		p.pos++
		v, err := p.unary()
		return ^v, err
	case c == '(':
		p.pos++
		v, err := p.binary(1)
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.s) || p.s[p.pos] != ')' {
			return 0, fmt.Errorf("missing ')' in %q", p.s)
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9':
		start := p.pos
		for p.pos < len(p.s) && isIdentByte(p.s[p.pos], false) {
			p.pos++
		}
		lit := p.s[start:p.pos]
		if v, err := strconv.ParseInt(lit, 0, 64); err == nil {
			return v, nil
		}
		// Masks such as $0x8080808080808080 overflow int64.
		u, err := strconv.ParseUint(lit, 0, 64)
		return int64(u), err
	case isIdentByte(c, true):
		start := p.pos
		for p.pos < len(p.s) && isIdentByte(p.s[p.pos], false) {
			p.pos++
		}
		name := p.s[start:p.pos]
		body, ok := p.defines[name]
		if !ok {
			return 0, fmt.Errorf("undefined name %q", name)
		}
		if p.depth > 16 {
			return 0, fmt.Errorf("macro %q expands too deeply", name)
		}
		sub := &exprParser{s: body, defines: p.defines, depth: p.depth + 1}
		v, err := sub.binary(1)
		if err != nil {
			return 0, err
		}
		sub.skipSpace()
		if sub.pos != len(sub.s) {
			return 0, fmt.Errorf("macro %q is not a constant", name)
		}
		return v, nil
	}
	return 0, fmt.Errorf("unexpected %q in %q", p.s[p.pos:], p.s)
}
