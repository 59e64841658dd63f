//go:build !llgo
// +build !llgo

package shufmask

// testTargetTriple returns an LLVM target triple for the test host. Only
// x86 hosts run the generated code; other hosts still verify the IR.
func testTargetTriple(goos, goarch string) string {
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i686"
	case "arm64":
		arch = "aarch64"
	}
	switch goos {
	case "darwin":
		if arch == "aarch64" {
			arch = "arm64"
		}
		return arch + "-apple-macosx"
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "windows":
		return arch + "-pc-windows-msvc"
	}
	return arch + "-unknown-" + goos
}
