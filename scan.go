package shufmask

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Site is a shuffle instruction found in assembly source together with its
// decoded mask.
type Site struct {
	Line   int
	Instr  Instr
	Result Result
}

// Scan finds every shuffle instruction in Plan 9 amd64 assembly whose control
// is known at assembly time and decodes it. Controls are known when they are
// immediates, or, for PSHUFB, a DATA symbol defined in the same source.
// Instructions whose control is a register or an unresolvable expression are
// skipped.
func Scan(src string) ([]Site, error) {
	lines, defines, err := preprocess(src)
	if err != nil {
		return nil, err
	}
	instrs := make([]Instr, 0, len(lines))
	data := dataTable{}
	for _, l := range lines {
		ins, err := parseInstr(l.text, l.no, defines)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", l.no, err)
		}
		if ins.Op == "DATA" {
			if err := data.add(ins); err != nil {
				return nil, fmt.Errorf("line %d: %w", l.no, err)
			}
			continue
		}
		instrs = append(instrs, ins)
	}

	var sites []Site
	for _, ins := range instrs {
		r, ok, err := decodeInstr(ins, data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", ins.Line, err)
		}
		if ok {
			sites = append(sites, Site{Line: ins.Line, Instr: ins, Result: r})
		}
	}
	return sites, nil
}

// DecodeInstr decodes a single parsed instruction. ok is false when the
// instruction is not a shuffle or its control is not a constant.
func DecodeInstr(ins Instr) (r Result, ok bool, err error) {
	return decodeInstr(ins, nil)
}

func decodeInstr(ins Instr, data dataTable) (Result, bool, error) {
	o, ok := Lookup(ins.Op)
	if !ok || len(ins.Args) < 2 {
		return Result{}, false, nil
	}
	dst := ins.Args[len(ins.Args)-1]
	if dst.Kind != OpReg {
		return Result{}, false, nil
	}
	regBits := RegBits(dst.Reg)
	if regBits == 0 {
		return Result{}, false, nil
	}
	vt, err := o.VTFor(regBits)
	if err != nil {
		return Result{}, false, err
	}

	ctl := ins.Args[0]
	switch {
	case o.Family == FamPSHUFB:
		if ctl.Kind != OpSym {
			return Result{}, false, nil
		}
		b, ok := data.bytes(ctl.Sym, ctl.Off, vt.NumElts())
		if !ok {
			return Result{}, false, nil
		}
		r, err := DecodeControl(o.Name, b)
		return r, err == nil, err
	case o.HasImm():
		if ctl.Kind != OpImm {
			return Result{}, false, nil
		}
		if ctl.Imm < 0 || ctl.Imm > 0xff {
			return Result{}, false, fmt.Errorf("%s immediate %d does not fit in 8 bits", o.Name, ctl.Imm)
		}
		r, err := Decode(o.Name, vt, uint8(ctl.Imm))
		return r, err == nil, err
	default:
		r, err := Decode(o.Name, vt, 0)
		return r, err == nil, err
	}
}

// dataTable holds the bytes of DATA directives, per symbol and offset.
type dataTable map[string]map[int64]byte

// add records "DATA sym+off(SB)/width, $value". Only integer values can
// hold shuffle controls; strings, addresses and floats are skipped before
// their width is looked at, since string data may be wider than 8 bytes.
func (d dataTable) add(ins Instr) error {
	if len(ins.Args) != 2 {
		return fmt.Errorf("DATA expects 2 operands: %q", ins.Raw)
	}
	target, val := ins.Args[0].Raw, ins.Args[1]
	if val.Kind != OpImm {
		return nil
	}
	slash := strings.LastIndexByte(target, '/')
	if slash < 0 {
		return fmt.Errorf("DATA without width: %q", ins.Raw)
	}
	width, err := evalExpr(target[slash+1:], nil)
	if err != nil || width <= 0 || width > 8 {
		return fmt.Errorf("invalid DATA width in %q", ins.Raw)
	}
	loc, err := parseOperand(target[:slash], nil)
	if err != nil {
		return err
	}
	if loc.Kind != OpSym {
		return nil
	}
	m := d[loc.Sym]
	if m == nil {
		m = map[int64]byte{}
		d[loc.Sym] = m
	}
	for i := int64(0); i < width; i++ {
		m[loc.Off+i] = byte(uint64(val.Imm) >> (8 * i))
	}
	return nil
}

func (d dataTable) bytes(sym string, off int64, n int) ([]byte, bool) {
	m, ok := d[sym]
	if !ok {
		return nil, false
	}
	out := make([]byte, n)
	for i := range out {
		b, ok := m[off+int64(i)]
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// ScanFile scans one assembly file.
func ScanFile(path string) ([]Site, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Scan(string(src))
}

// FileSites holds the shuffle sites of one file.
type FileSites struct {
	Path  string
	Sites []Site
}

// ScanFiles scans paths concurrently, at most limit at a time (no limit when
// limit <= 0). Results keep the order of paths. The first failure cancels
// the remaining work.
func ScanFiles(ctx context.Context, paths []string, limit int) ([]FileSites, error) {
	out := make([]FileSites, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sites, err := ScanFile(p)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			out[i] = FileSites{Path: p, Sites: sites}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
