package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xgo-dev/shufmask"
)

func TestAsmFiles(t *testing.T) {
	p := goListPackage{
		Dir:        "/src/crypto/aes",
		ImportPath: "crypto/aes",
		SFiles:     []string{"gcm_amd64.s", "/abs/asm_amd64.s"},
	}
	require.Equal(t, []string{"/abs/asm_amd64.s", "/src/crypto/aes/gcm_amd64.s"}, p.asmFiles())

	p.Dir = ""
	require.Equal(t, []string{"/abs/asm_amd64.s"}, p.asmFiles())
}

func TestSiteOps(t *testing.T) {
	sites, err := shufmask.Scan("\tPSHUFD $0, X0, X1\n\tPSHUFB X2, X0\n\tPUNPCKLBW X1, X0\n\tPSHUFD $1, X1, X2\n")
	require.NoError(t, err)
	require.Len(t, sites, 3)
	require.Equal(t, []string{"PSHUFD", "PUNPCKLBW"}, siteOps(sites))
	require.Empty(t, siteOps(nil))
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "sites.json")
	in := []siteInfo{{File: "a.s", Line: 3, Op: "PSHUFD", Type: "<4 x i32>", Mask: []int{3, 2, 1, 0}}}
	require.NoError(t, writeReport(path, in))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []siteInfo
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, in, out)
}

func TestAsmFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "x_amd64.s")
	require.NoError(t, os.WriteFile(f, []byte("RET\n"), 0o644))

	got, err := asmFile(" " + f + " ")
	require.NoError(t, err)
	require.Equal(t, f, got)

	_, err = asmFile(dir)
	require.Error(t, err)
	_, err = asmFile("")
	require.Error(t, err)
}
