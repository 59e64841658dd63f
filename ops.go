package shufmask

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sys/cpu"
)

// Feature is an x86 ISA extension a shuffle instruction needs.
type Feature string

const (
	SSE2  Feature = "SSE2"
	SSSE3 Feature = "SSSE3"
	SSE41 Feature = "SSE4.1"
	AVX   Feature = "AVX"
	AVX2  Feature = "AVX2"
)

// HostSupports reports whether the running CPU implements f.
func HostSupports(f Feature) bool {
	switch f {
	case SSE2:
		return cpu.X86.HasSSE2
	case SSSE3:
		return cpu.X86.HasSSSE3
	case SSE41:
		return cpu.X86.HasSSE41
	case AVX:
		return cpu.X86.HasAVX
	case AVX2:
		return cpu.X86.HasAVX2
	}
	return false
}

// Family identifies which decoder an instruction uses.
type Family uint8

const (
	FamInvalid Family = iota
	FamINSERTPS
	FamMOVHLPS
	FamMOVLHPS
	FamPALIGNR
	FamPSHUF
	FamPSHUFHW
	FamPSHUFLW
	FamSHUFP
	FamUNPCKH
	FamUNPCKL
	FamVPERM2X128
	FamPSHUFB
	FamBLEND
	FamVPERM
)

var familyNames = [...]string{
	FamInvalid:    "invalid",
	FamINSERTPS:   "insertps",
	FamMOVHLPS:    "movhlps",
	FamMOVLHPS:    "movlhps",
	FamPALIGNR:    "palignr",
	FamPSHUF:      "pshuf",
	FamPSHUFHW:    "pshufhw",
	FamPSHUFLW:    "pshuflw",
	FamSHUFP:      "shufp",
	FamUNPCKH:     "unpckh",
	FamUNPCKL:     "unpckl",
	FamVPERM2X128: "vperm2x128",
	FamPSHUFB:     "pshufb",
	FamBLEND:      "blend",
	FamVPERM:      "vperm",
}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return fmt.Sprintf("Family(%d)", f)
}

// OpInfo describes one shuffle mnemonic.
type OpInfo struct {
	Name     string
	Family   Family
	ElemBits int
	// Bits is the fixed register width, or 0 when the register operand
	// decides (VEX forms accept X and Y registers).
	Bits    int
	Feature Feature
	// Wide is the feature needed for the 256-bit form, when it differs.
	Wide Feature
	// LaneImm marks instructions that reuse their 8-bit immediate for every
	// 128-bit lane even though the generic decoder would read further bits.
	LaneImm bool
}

// HasImm reports whether the shuffle control is an immediate.
func (o OpInfo) HasImm() bool {
	switch o.Family {
	case FamMOVHLPS, FamMOVLHPS, FamUNPCKH, FamUNPCKL, FamPSHUFB:
		return false
	}
	return true
}

// FeatureFor returns the ISA extension needed for the bits-wide form.
func (o OpInfo) FeatureFor(bits int) Feature {
	if bits > 128 && o.Wide != "" {
		return o.Wide
	}
	return o.Feature
}

// VTFor returns the operand shape for the given register width. A zero
// width selects the instruction's fixed width.
func (o OpInfo) VTFor(regBits int) (VT, error) {
	bits := o.Bits
	if bits == 0 {
		bits = regBits
	}
	if o.Bits != 0 && regBits != 0 && regBits != o.Bits {
		return VT{}, preconditionf("%s operates on %d-bit registers, got %d", o.Name, o.Bits, regBits)
	}
	if bits == 0 {
		return VT{}, preconditionf("%s needs a register width", o.Name)
	}
	return VTForBits(bits, o.ElemBits)
}

var ops = map[string]OpInfo{}

func def(fam Family, elemBits, bits int, feat, wide Feature, names ...string) {
	for _, n := range names {
		ops[n] = OpInfo{Name: n, Family: fam, ElemBits: elemBits, Bits: bits, Feature: feat, Wide: wide}
	}
}

func init() {
	// Legacy SSE encodings, 128-bit only. Plan 9 and Intel spellings both
	// resolve.
	def(FamINSERTPS, 32, 128, SSE41, "", "INSERTPS")
	def(FamMOVHLPS, 32, 128, SSE2, "", "MOVHLPS")
	def(FamMOVLHPS, 32, 128, SSE2, "", "MOVLHPS")
	def(FamPALIGNR, 8, 128, SSSE3, "", "PALIGNR")
	def(FamPSHUF, 32, 128, SSE2, "", "PSHUFD", "PSHUFL")
	def(FamPSHUF, 16, 64, SSE2, "", "PSHUFW")
	def(FamPSHUFHW, 16, 128, SSE2, "", "PSHUFHW")
	def(FamPSHUFLW, 16, 128, SSE2, "", "PSHUFLW")
	def(FamSHUFP, 32, 128, SSE2, "", "SHUFPS")
	def(FamSHUFP, 64, 128, SSE2, "", "SHUFPD")
	def(FamUNPCKH, 8, 128, SSE2, "", "PUNPCKHBW")
	def(FamUNPCKH, 16, 128, SSE2, "", "PUNPCKHWD", "PUNPCKHWL")
	def(FamUNPCKH, 32, 128, SSE2, "", "PUNPCKHDQ", "PUNPCKHLQ", "UNPCKHPS")
	def(FamUNPCKH, 64, 128, SSE2, "", "PUNPCKHQDQ", "UNPCKHPD")
	def(FamUNPCKL, 8, 128, SSE2, "", "PUNPCKLBW")
	def(FamUNPCKL, 16, 128, SSE2, "", "PUNPCKLWD", "PUNPCKLWL")
	def(FamUNPCKL, 32, 128, SSE2, "", "PUNPCKLDQ", "PUNPCKLLQ", "UNPCKLPS")
	def(FamUNPCKL, 64, 128, SSE2, "", "PUNPCKLQDQ", "UNPCKLPD")
	def(FamPSHUFB, 8, 128, SSSE3, "", "PSHUFB")
	def(FamBLEND, 16, 128, SSE41, "", "PBLENDW")
	def(FamBLEND, 32, 128, SSE41, "", "BLENDPS")
	def(FamBLEND, 64, 128, SSE41, "", "BLENDPD")

	// VEX encodings: width comes from the register operands.
	def(FamINSERTPS, 32, 128, AVX, "", "VINSERTPS")
	def(FamMOVHLPS, 32, 128, AVX, "", "VMOVHLPS")
	def(FamMOVLHPS, 32, 128, AVX, "", "VMOVLHPS")
	def(FamPALIGNR, 8, 0, AVX, AVX2, "VPALIGNR")
	def(FamPSHUF, 32, 0, AVX, AVX2, "VPSHUFD")
	def(FamPSHUF, 32, 0, AVX, "", "VPERMILPS")
	def(FamPSHUF, 64, 0, AVX, "", "VPERMILPD")
	def(FamPSHUFHW, 16, 0, AVX, AVX2, "VPSHUFHW")
	def(FamPSHUFLW, 16, 0, AVX, AVX2, "VPSHUFLW")
	def(FamSHUFP, 32, 0, AVX, "", "VSHUFPS")
	def(FamSHUFP, 64, 0, AVX, "", "VSHUFPD")
	def(FamUNPCKH, 8, 0, AVX, AVX2, "VPUNPCKHBW")
	def(FamUNPCKH, 16, 0, AVX, AVX2, "VPUNPCKHWD")
	def(FamUNPCKH, 32, 0, AVX, AVX2, "VPUNPCKHDQ")
	def(FamUNPCKH, 32, 0, AVX, "", "VUNPCKHPS")
	def(FamUNPCKH, 64, 0, AVX, AVX2, "VPUNPCKHQDQ")
	def(FamUNPCKH, 64, 0, AVX, "", "VUNPCKHPD")
	def(FamUNPCKL, 8, 0, AVX, AVX2, "VPUNPCKLBW")
	def(FamUNPCKL, 16, 0, AVX, AVX2, "VPUNPCKLWD")
	def(FamUNPCKL, 32, 0, AVX, AVX2, "VPUNPCKLDQ")
	def(FamUNPCKL, 32, 0, AVX, "", "VUNPCKLPS")
	def(FamUNPCKL, 64, 0, AVX, AVX2, "VPUNPCKLQDQ")
	def(FamUNPCKL, 64, 0, AVX, "", "VUNPCKLPD")
	def(FamVPERM2X128, 64, 256, AVX, "", "VPERM2F128")
	def(FamVPERM2X128, 64, 256, AVX2, "", "VPERM2I128")
	def(FamPSHUFB, 8, 0, AVX, AVX2, "VPSHUFB")
	def(FamBLEND, 16, 0, AVX, AVX2, "VPBLENDW")
	def(FamBLEND, 32, 0, AVX2, "", "VPBLENDD")
	def(FamBLEND, 32, 0, AVX, "", "VBLENDPS")
	def(FamBLEND, 64, 0, AVX, "", "VBLENDPD")
	def(FamVPERM, 64, 256, AVX2, "", "VPERMQ", "VPERMPD")

	for _, n := range []string{"PBLENDW", "VPBLENDW"} {
		o := ops[n]
		o.LaneImm = true
		ops[n] = o
	}
}

// Lookup returns the description of a shuffle mnemonic. Case is ignored.
func Lookup(op string) (OpInfo, bool) {
	o, ok := ops[strings.ToUpper(strings.TrimSpace(op))]
	return o, ok
}

// Ops returns every known mnemonic in sorted order.
func Ops() []string {
	names := make([]string, 0, len(ops))
	for n := range ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Result is a decoded shuffle instruction.
type Result struct {
	Op   OpInfo
	VT   VT
	Mask Mask
	// NotShuffle is set when the immediate turns the instruction into
	// something a mask cannot describe (VPERM2X128 with a zeroing bit).
	NotShuffle bool
}

// Decode decodes an instruction whose control is an immediate.
func Decode(op string, vt VT, imm uint8) (Result, error) {
	o, ok := Lookup(op)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	if err := checkVT(vt); err != nil {
		return Result{}, err
	}
	if vt.ElemBits() != o.ElemBits {
		return Result{}, preconditionf("%s operates on %d-bit elements, got %s", o.Name, o.ElemBits, vt)
	}
	if o.Bits != 0 && vt.SizeInBits() != o.Bits {
		return Result{}, preconditionf("%s operates on %d-bit vectors, got %s", o.Name, o.Bits, vt)
	}
	r := Result{Op: o, VT: vt}
	var err error
	switch o.Family {
	case FamINSERTPS:
		r.Mask = DecodeINSERTPS(imm)
	case FamMOVHLPS:
		r.Mask, err = DecodeMOVHLPS(vt.NumElts())
	case FamMOVLHPS:
		r.Mask, err = DecodeMOVLHPS(vt.NumElts())
	case FamPALIGNR:
		r.Mask, err = DecodePALIGNR(vt, imm)
	case FamPSHUF:
		r.Mask, err = DecodePSHUF(vt, imm)
	case FamPSHUFHW:
		r.Mask, err = DecodePSHUFHW(vt, imm)
	case FamPSHUFLW:
		r.Mask, err = DecodePSHUFLW(vt, imm)
	case FamSHUFP:
		r.Mask, err = DecodeSHUFP(vt, imm)
	case FamUNPCKH:
		r.Mask, err = DecodeUNPCKH(vt)
	case FamUNPCKL:
		r.Mask, err = DecodeUNPCKL(vt)
	case FamVPERM2X128:
		var shuffle bool
		r.Mask, shuffle, err = DecodeVPERM2X128(vt, imm)
		r.NotShuffle = err == nil && !shuffle
	case FamBLEND:
		wide := uint32(imm)
		if o.LaneImm {
			for l := 1; l < vt.NumLanes(); l++ {
				wide |= uint32(imm) << (8 * l)
			}
		}
		r.Mask, err = DecodeBLEND(vt, wide)
	case FamVPERM:
		r.Mask = DecodeVPERM(imm)
	case FamPSHUFB:
		return Result{}, preconditionf("%s takes a constant control vector, not an immediate", o.Name)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s %s: %w", o.Name, vt, err)
	}
	return r, nil
}

// DecodeControl decodes PSHUFB/VPSHUFB from its control bytes.
func DecodeControl(op string, ctl []byte) (Result, error) {
	o, ok := Lookup(op)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownOp, op)
	}
	if o.Family != FamPSHUFB {
		return Result{}, preconditionf("%s does not take a control vector", o.Name)
	}
	vt, err := NewVT(len(ctl), 8)
	if err != nil {
		return Result{}, err
	}
	if o.Bits != 0 && vt.SizeInBits() != o.Bits {
		return Result{}, preconditionf("%s operates on %d-bit vectors, got %d control bytes", o.Name, o.Bits, len(ctl))
	}
	elems := make([]uint64, len(ctl))
	for i, c := range ctl {
		elems[i] = uint64(c)
	}
	m, err := DecodePSHUFB(ConstData{Type: vt, Elems: elems})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", o.Name, err)
	}
	return Result{Op: o, VT: vt, Mask: m}, nil
}
