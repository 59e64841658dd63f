package shufmask

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPreprocess(t *testing.T) {
	src := `#include "textflag.h"
#define ROT 0x39 // rotate
#define FEATURE_X
#define SWAP(a, b) \
	PSHUFD $0x4e, a, b
/* block
   comment */
#ifdef FEATURE_X
	PSHUFD $ROT, X0, X1 /* inline */ ; PSHUFD $0, X2, X3
#else
	PSHUFD $1, X0, X1
#endif
#ifndef FEATURE_X
	NOTHERE
#endif
	RET // done
`
	lines, defines, err := preprocess(src)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ROT": "0x39", "FEATURE_X": ""}, defines)
	require.Equal(t, []srcLine{
		{no: 9, text: "PSHUFD $ROT, X0, X1"},
		{no: 9, text: "PSHUFD $0, X2, X3"},
		{no: 16, text: "RET"},
	}, lines)
}

func TestPreprocessQuoted(t *testing.T) {
	lines, _, err := preprocess("DATA s<>+0(SB)/8, $\"a;b//c\" // tail; more\n\tRET; RET\n")
	require.NoError(t, err)
	require.Equal(t, []srcLine{
		{no: 1, text: `DATA s<>+0(SB)/8, $"a;b//c"`},
		{no: 2, text: "RET"},
		{no: 2, text: "RET"},
	}, lines)
}

func TestPreprocessErrors(t *testing.T) {
	for _, src := range []string{
		"#endif\n",
		"#else\n",
		"#ifdef A\n",
		"#ifdef A\n#else\n#else\n#endif\n",
		"#ifdef\n",
		"#pragma once\n",
	} {
		_, _, err := preprocess(src)
		require.Error(t, err, src)
	}
}
