package shufmask

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const scanSrc = `#include "textflag.h"

#define ROTATE 0x39

DATA flip<>+0(SB)/8, $0x08090a0b0c0d0e0f
DATA flip<>+8(SB)/8, $0x0001020304050607
GLOBL flip<>(SB), RODATA, $16

// func shuffles()
TEXT ·shuffles(SB), NOSPLIT, $0-0
	VPSHUFD $0x1b, Y1, Y2
	PSHUFD $ROTATE, X0, X1
	PSHUFB flip<>(SB), X0
	PSHUFB X1, X0
	VPERM2I128 $0x08, Y1, Y2, Y3
	SHUFPS $UNKNOWN, X1, X2
loop:
	PUNPCKLBW X1, X0
	MOVOU X0, (DI)
	RET
`

func TestScan(t *testing.T) {
	sites, err := Scan(scanSrc)
	require.NoError(t, err)
	require.Len(t, sites, 5)

	require.Equal(t, 11, sites[0].Line)
	require.Equal(t, "VPSHUFD", sites[0].Instr.Op)
	require.Equal(t, V8I32, sites[0].Result.VT)
	require.Equal(t, ints(3, 2, 1, 0, 7, 6, 5, 4), sites[0].Result.Mask)

	require.Equal(t, 12, sites[1].Line)
	require.Equal(t, V4I32, sites[1].Result.VT)
	require.Equal(t, ints(1, 2, 3, 0), sites[1].Result.Mask)

	require.Equal(t, "PSHUFB", sites[2].Instr.Op)
	require.Equal(t, V16I8, sites[2].Result.VT)
	require.Equal(t, ints(15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0), sites[2].Result.Mask)

	require.Equal(t, "VPERM2I128", sites[3].Instr.Op)
	require.True(t, sites[3].Result.NotShuffle)
	require.Nil(t, sites[3].Result.Mask)

	require.Equal(t, 18, sites[4].Line)
	require.Equal(t, ints(0, 16, 1, 17, 2, 18, 3, 19, 4, 20, 5, 21, 6, 22, 7, 23), sites[4].Result.Mask)
}

func TestScanErrors(t *testing.T) {
	_, err := Scan("\tPSHUFD $0x1ff, X0, X1\n")
	require.Error(t, err)

	_, err = Scan("\tVPERM2F128 $0x20, X1, X2, X3\n")
	require.ErrorIs(t, err, ErrPrecondition)

	_, err = Scan("DATA flip<>+0(SB), $1\n")
	require.Error(t, err)

	_, err = Scan("#ifdef X\n")
	require.Error(t, err)
}

func TestDecodeInstr(t *testing.T) {
	ins, err := ParseInstr("SHUFPD $1, X3, X4")
	require.NoError(t, err)
	r, ok, err := DecodeInstr(ins)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, ints(1, 2), r.Mask)

	// Controls from DATA are only known inside Scan.
	ins, err = ParseInstr("PSHUFB mask<>(SB), X0")
	require.NoError(t, err)
	_, ok, err = DecodeInstr(ins)
	require.NoError(t, err)
	require.False(t, ok)

	for _, text := range []string{"MOVQ AX, BX", "PSHUFD $1, X0, (DI)", "RET"} {
		ins, err = ParseInstr(text)
		require.NoError(t, err)
		_, ok, err = DecodeInstr(ins)
		require.NoError(t, err)
		require.False(t, ok, text)
	}
}

func TestScanFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a_amd64.s")
	b := filepath.Join(dir, "b_amd64.s")
	require.NoError(t, os.WriteFile(a, []byte(scanSrc), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("\tPSHUFL $0, X0, X1\n\tRET\n"), 0o644))

	files, err := ScanFiles(context.Background(), []string{b, a, b}, 2)
	require.NoError(t, err)
	require.Len(t, files, 3)
	require.Equal(t, b, files[0].Path)
	require.Equal(t, a, files[1].Path)
	require.Len(t, files[0].Sites, 1)
	require.Equal(t, ints(0, 0, 0, 0), files[0].Sites[0].Result.Mask)
	require.Len(t, files[1].Sites, 5)
	require.Equal(t, files[0], files[2])

	_, err = ScanFiles(context.Background(), []string{a, filepath.Join(dir, "missing.s")}, 0)
	require.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ScanFiles(ctx, []string{a}, 1)
	require.ErrorIs(t, err, context.Canceled)
}

// String DATA, as in runtime/asm_amd64.s, may be wider than an integer and
// must not stop the rest of the file from being scanned.
func TestScanStringData(t *testing.T) {
	src := `DATA debugCallFrameTooLarge<>+0x00(SB)/20, $"call frame too large"
GLOBL debugCallFrameTooLarge<>(SB), RODATA, $20
DATA msg<>+0(SB)/12, $"a, b; // c\x00"
DATA addr<>+0(SB)/8, $runtime·main(SB)
TEXT ·f(SB), NOSPLIT, $0
	PSHUFHW $0, X0, X0
	RET
`
	sites, err := Scan(src)
	require.NoError(t, err)
	require.Len(t, sites, 1)
	require.Equal(t, 6, sites[0].Line)
	require.Equal(t, ints(0, 1, 2, 3, 4, 4, 4, 4), sites[0].Result.Mask)

	// Integer DATA keeps its 1..8 byte width.
	_, err = Scan("DATA wide<>+0(SB)/16, $1\n")
	require.Error(t, err)
}
