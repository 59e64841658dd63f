package shufmask

// Decoders for x86 shuffle immediates. Each returns a new mask in output lane
// order. Index i < n reads element i of the first source; n <= i < 2n reads
// element i-n of the second source.

func finish(m Mask, n int) (Mask, error) {
	if err := m.Validate(n); err != nil {
		return nil, err
	}
	return m, nil
}

func checkVT(vt VT) error {
	if !vt.IsValid() {
		return preconditionf("invalid vector type %s", vt)
	}
	return nil
}

// checkLanes is checkVT for decoders that walk the vector one 128-bit lane
// at a time: every lane must hold the same whole number of elements.
func checkLanes(name string, vt VT) error {
	if err := checkVT(vt); err != nil {
		return err
	}
	if vt.NumElts()%vt.NumLanes() != 0 {
		return preconditionf("%s: %s does not split into %d equal lanes", name, vt, vt.NumLanes())
	}
	return nil
}

// DecodeINSERTPS decodes the INSERTPS immediate over two <4 x float>
// sources. Bits 7:6 pick the source element, bits 5:4 the destination lane,
// and bits 3:0 zero lanes after the insert.
func DecodeINSERTPS(imm uint8) Mask {
	m := Mask{Src(0), Src(1), Src(2), Src(3)}

	zmask := imm & 15
	countD := (imm >> 4) & 3
	countS := (imm >> 6) & 3

	m[countD] = Src(4 + int(countS))
	for i := 0; i < 4; i++ {
		if zmask&(1<<i) != 0 {
			m[i] = Zero
		}
	}
	return m
}

// DecodeMOVHLPS returns <6,7,2,3> for n == 4: the high half of the second
// source followed by the high half of the first.
func DecodeMOVHLPS(n int) (Mask, error) {
	if n <= 0 || n%2 != 0 {
		return nil, preconditionf("MOVHLPS needs a positive even element count, got %d", n)
	}
	m := make(Mask, 0, n)
	for i := n / 2; i != n; i++ {
		m = append(m, Src(n+i))
	}
	for i := n / 2; i != n; i++ {
		m = append(m, Src(i))
	}
	return finish(m, n)
}

// DecodeMOVLHPS returns <0,1,4,5> for n == 4.
func DecodeMOVLHPS(n int) (Mask, error) {
	if n <= 0 || n%2 != 0 {
		return nil, preconditionf("MOVLHPS needs a positive even element count, got %d", n)
	}
	m := make(Mask, 0, n)
	for i := 0; i != n/2; i++ {
		m = append(m, Src(i))
	}
	for i := 0; i != n/2; i++ {
		m = append(m, Src(n+i))
	}
	return finish(m, n)
}

// DecodePALIGNR decodes PALIGNR/VPALIGNR. Each 128-bit lane reads the lane
// pair [first, second] shifted down by imm elements' worth of bytes.
func DecodePALIGNR(vt VT, imm uint8) (Mask, error) {
	if err := checkLanes("PALIGNR", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	offset := int(imm) * (vt.ElemBits() / 8)
	laneElts := vt.LaneElts()

	m := make(Mask, 0, n)
	for l := 0; l != n; l += laneElts {
		for i := 0; i != laneElts; i++ {
			base := i + offset
			// Past the end of this lane: continue in the other source.
			if base >= laneElts {
				base += n - laneElts
			}
			m = append(m, Src(base+l))
		}
	}
	return finish(m, n)
}

// DecodePSHUF decodes PSHUFD, PSHUFW and VPERMILPS/VPERMILPD. Every output
// element consumes log2(laneElts) bits of the immediate. With 4 elements per
// lane each lane starts over at bit 0; otherwise bits keep being consumed
// across lanes.
func DecodePSHUF(vt VT, imm uint8) (Mask, error) {
	if err := checkLanes("PSHUF", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	laneElts := vt.LaneElts()
	le := uint(laneElts)

	m := make(Mask, 0, n)
	cur := uint(imm)
	for l := 0; l != n; l += laneElts {
		for i := 0; i != laneElts; i++ {
			m = append(m, Src(int(cur%le)+l))
			cur /= le
		}
		if laneElts == 4 {
			cur = uint(imm)
		}
	}
	return finish(m, n)
}

func checkWordLanes(name string, vt VT) error {
	if err := checkVT(vt); err != nil {
		return err
	}
	if vt.ElemBits() != 16 || vt.NumElts()%8 != 0 {
		return preconditionf("%s needs 16-bit elements in 8-element lanes, got %s", name, vt)
	}
	return nil
}

// DecodePSHUFHW keeps words 0-3 of every lane and permutes words 4-7 among
// themselves.
func DecodePSHUFHW(vt VT, imm uint8) (Mask, error) {
	if err := checkWordLanes("PSHUFHW", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	m := make(Mask, 0, n)
	for l := 0; l != n; l += 8 {
		cur := imm
		for i := 0; i != 4; i++ {
			m = append(m, Src(l+i))
		}
		for i := 4; i != 8; i++ {
			m = append(m, Src(l+4+int(cur&3)))
			cur >>= 2
		}
	}
	return finish(m, n)
}

// DecodePSHUFLW permutes words 0-3 of every lane and keeps words 4-7.
func DecodePSHUFLW(vt VT, imm uint8) (Mask, error) {
	if err := checkWordLanes("PSHUFLW", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	m := make(Mask, 0, n)
	for l := 0; l != n; l += 8 {
		cur := imm
		for i := 0; i != 4; i++ {
			m = append(m, Src(l+int(cur&3)))
			cur >>= 2
		}
		for i := 4; i != 8; i++ {
			m = append(m, Src(l+i))
		}
	}
	return finish(m, n)
}

// DecodeSHUFP decodes SHUFPS/SHUFPD. The low half of each lane comes from
// the first source and the high half from the second. Immediate bits reload
// per lane under the same rule as DecodePSHUF.
func DecodeSHUFP(vt VT, imm uint8) (Mask, error) {
	if err := checkLanes("SHUFP", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	laneElts := vt.LaneElts()
	if laneElts < 2 {
		return nil, preconditionf("SHUFP needs at least 2 elements per lane, got %s", vt)
	}
	le := uint(laneElts)

	m := make(Mask, 0, n)
	cur := uint(imm)
	for l := 0; l != n; l += laneElts {
		for s := 0; s != n*2; s += n {
			for i := 0; i != laneElts/2; i++ {
				m = append(m, Src(int(cur%le)+s+l))
				cur /= le
			}
		}
		if laneElts == 4 {
			cur = uint(imm)
		}
	}
	return finish(m, n)
}

func checkUnpack(name string, vt VT) error {
	if err := checkLanes(name, vt); err != nil {
		return err
	}
	if vt.LaneElts()%2 != 0 {
		return preconditionf("%s needs an even element count per lane, got %s", name, vt)
	}
	return nil
}

// DecodeUNPCKH interleaves the high halves of each lane of both sources.
func DecodeUNPCKH(vt VT) (Mask, error) {
	if err := checkUnpack("UNPCKH", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	laneElts := vt.LaneElts()

	m := make(Mask, 0, n)
	for l := 0; l != n; l += laneElts {
		for i, e := l+laneElts/2, l+laneElts; i != e; i++ {
			m = append(m, Src(i), Src(i+n))
		}
	}
	return finish(m, n)
}

// DecodeUNPCKL interleaves the low halves of each lane of both sources.
func DecodeUNPCKL(vt VT) (Mask, error) {
	if err := checkUnpack("UNPCKL", vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	laneElts := vt.LaneElts()

	m := make(Mask, 0, n)
	for l := 0; l != n; l += laneElts {
		for i, e := l, l+laneElts/2; i != e; i++ {
			m = append(m, Src(i), Src(i+n))
		}
	}
	return finish(m, n)
}

// DecodeVPERM2X128 decodes VPERM2F128/VPERM2I128. Each 128-bit half of the
// result picks one of the four source halves with imm[1:0] and imm[5:4].
// When either zeroing bit (imm[3] or imm[7]) is set the instruction is not a
// shuffle and ok is false.
func DecodeVPERM2X128(vt VT, imm uint8) (m Mask, ok bool, err error) {
	if err := checkVT(vt); err != nil {
		return nil, false, err
	}
	n := vt.NumElts()
	if n%2 != 0 {
		return nil, false, preconditionf("VPERM2X128 needs an even element count, got %s", vt)
	}
	if imm&0x88 != 0 {
		return nil, false, nil
	}

	half := n / 2
	m = make(Mask, 0, n)
	for l := 0; l != 2; l++ {
		begin := int((imm>>(l*4))&0x3) * half
		for i, e := begin, begin+half; i != e; i++ {
			m = append(m, Src(i))
		}
	}
	m, err = finish(m, n)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// ConstData is a constant vector operand such as a PSHUFB control loaded
// from memory. Elems holds one value per element of Type.
type ConstData struct {
	Type  VT
	Elems []uint64
}

// DecodePSHUFB decodes a constant PSHUFB/VPSHUFB control vector of i8.
func DecodePSHUFB(c ConstData) (Mask, error) {
	if err := checkVT(c.Type); err != nil {
		return nil, err
	}
	if c.Type.ElemBits() != 8 {
		return nil, preconditionf("PSHUFB expects i8 control elements, got %s", c.Type)
	}
	n := c.Type.NumElts()
	if n != 16 && n != 32 {
		return nil, preconditionf("PSHUFB supports 128-bit and 256-bit controls only, got %s", c.Type)
	}
	if len(c.Elems) != n {
		return nil, preconditionf("PSHUFB control has %d elements, type %s", len(c.Elems), c.Type)
	}
	return decodePSHUFBBytes(c.Elems)
}

// DecodePSHUFBRaw decodes PSHUFB control bytes given as raw values.
func DecodePSHUFBRaw(raw []uint64) (Mask, error) {
	if len(raw) != 16 && len(raw) != 32 {
		return nil, preconditionf("PSHUFB supports 16 or 32 control bytes, got %d", len(raw))
	}
	return decodePSHUFBBytes(raw)
}

func decodePSHUFBBytes(ctl []uint64) (Mask, error) {
	m := make(Mask, 0, len(ctl))
	for i, c := range ctl {
		// Bit 7 zeroes the byte.
		if c&(1<<7) != 0 {
			m = append(m, Zero)
			continue
		}
		// The low nibble selects within the 16-byte half holding byte i.
		base := i &^ 15
		m = append(m, Src(base+int(c&15)))
	}
	return finish(m, len(ctl))
}

// DecodeBLEND decodes BLENDPS/BLENDPD/PBLENDW/VPBLENDD: bit i of imm selects
// element i of the second source, a clear bit keeps the first.
func DecodeBLEND(vt VT, imm uint32) (Mask, error) {
	if err := checkVT(vt); err != nil {
		return nil, err
	}
	n := vt.NumElts()
	m := make(Mask, 0, n)
	for i := 0; i < n; i++ {
		if i < 32 && (imm>>i)&1 != 0 {
			m = append(m, Src(n+i))
		} else {
			m = append(m, Src(i))
		}
	}
	return finish(m, n)
}

// DecodeVPERM decodes VPERMQ/VPERMPD, a single-source permute of four 64-bit
// elements.
func DecodeVPERM(imm uint8) Mask {
	m := make(Mask, 0, 4)
	for i := 0; i != 4; i++ {
		m = append(m, Src(int(imm>>(2*i))&3))
	}
	return m
}
