package shufmask

import (
	"fmt"
	"os"

	"github.com/xgo-dev/llvm"
)

// ParseModule parses textual IR, such as ModuleIR output, into an
// llvm.Module in the global context.
//
// Caller owns the returned module and should call Dispose when finished.
func ParseModule(ir string) (llvm.Module, error) {
	f, err := os.CreateTemp("", "shufmask-*.ll")
	if err != nil {
		return llvm.Module{}, fmt.Errorf("create temp ir file: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	defer os.Remove(name)

	if err := os.WriteFile(name, []byte(ir), 0644); err != nil {
		return llvm.Module{}, fmt.Errorf("write temp ir file: %w", err)
	}
	buf, err := llvm.NewMemoryBufferFromFile(name)
	if err != nil {
		return llvm.Module{}, fmt.Errorf("open temp ir file: %w", err)
	}
	// ParseIR takes ownership of buf; disposing it here would double free.
	ctx := llvm.GlobalContext()
	mod, err := (&ctx).ParseIR(buf)
	if err != nil {
		return llvm.Module{}, fmt.Errorf("parse shuffle ir: %w", err)
	}
	return mod, nil
}

// FuncModule parses FuncIR(name, vt, m) into a verified module.
func FuncModule(triple, name string, vt VT, m Mask) (llvm.Module, error) {
	fn, err := FuncIR(name, vt, m)
	if err != nil {
		return llvm.Module{}, err
	}
	mod, err := ParseModule(ModuleIR(triple, fn))
	if err != nil {
		return llvm.Module{}, err
	}
	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		mod.Dispose()
		return llvm.Module{}, fmt.Errorf("verify %s: %w", name, err)
	}
	return mod, nil
}
