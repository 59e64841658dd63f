package shufmask

import (
	"fmt"

	"github.com/xgo-dev/llvm"
)

// BuildShuffle emits the shuffle of x and y by m at the builder's insertion
// point. x and y must both be vectors of shape vt. Zero lanes are produced
// by a select against a null vector, as Emitter.Shuffle does in text form.
func BuildShuffle(b llvm.Builder, x, y llvm.Value, vt VT, m Mask) (llvm.Value, error) {
	if err := checkVT(vt); err != nil {
		return llvm.Value{}, err
	}
	if len(m) == 0 {
		return llvm.Value{}, preconditionf("empty shuffle mask")
	}
	if err := m.Validate(vt.NumElts()); err != nil {
		return llvm.Value{}, err
	}
	ctx := x.Type().Context()
	i32 := ctx.Int32Type()
	i1 := ctx.Int1Type()

	idx := make([]llvm.Value, len(m))
	keep := make([]llvm.Value, len(m))
	for i, el := range m {
		if j, ok := el.Index(); ok {
			idx[i] = llvm.ConstInt(i32, uint64(j), false)
			keep[i] = llvm.ConstInt(i1, 1, false)
		} else {
			idx[i] = llvm.Undef(i32)
			keep[i] = llvm.ConstInt(i1, 0, false)
		}
	}
	sh := b.CreateShuffleVector(x, y, llvm.ConstVector(idx, false), "")
	if !m.HasZero() {
		return sh, nil
	}
	return b.CreateSelect(llvm.ConstVector(keep, false), sh, llvm.ConstNull(sh.Type()), ""), nil
}

// ShuffleModule builds, through the LLVM API, the same function FuncIR
// prints and verifies it.
//
// Caller owns the returned module and should call Dispose when finished.
func ShuffleModule(triple, name string, vt VT, m Mask) (llvm.Module, error) {
	if err := checkVT(vt); err != nil {
		return llvm.Module{}, err
	}
	ctx := llvm.GlobalContext()
	mod := ctx.NewModule("shufmask")
	if triple != "" {
		mod.SetTarget(triple)
	}

	elemTy := ctx.IntType(vt.ElemBits())
	inTy := llvm.VectorType(elemTy, vt.NumElts())
	ptrTy := llvm.PointerType(ctx.Int8Type(), 0)
	ft := llvm.FunctionType(ctx.VoidType(), []llvm.Type{ptrTy, ptrTy, ptrTy}, false)
	fv := llvm.AddFunction(mod, name, ft)

	entry := ctx.AddBasicBlock(fv, "entry")
	b := ctx.NewBuilder()
	defer b.Dispose()
	b.SetInsertPointAtEnd(entry)

	args := fv.Params()
	x := b.CreateLoad(inTy, args[1], "")
	x.SetAlignment(1)
	y := b.CreateLoad(inTy, args[2], "")
	y.SetAlignment(1)
	res, err := BuildShuffle(b, x, y, vt, m)
	if err != nil {
		mod.Dispose()
		return llvm.Module{}, fmt.Errorf("%s: %w", name, err)
	}
	st := b.CreateStore(res, args[0])
	st.SetAlignment(1)
	b.CreateRetVoid()

	if err := llvm.VerifyModule(mod, llvm.ReturnStatusAction); err != nil {
		mod.Dispose()
		return llvm.Module{}, fmt.Errorf("verify %s: %w", name, err)
	}
	return mod, nil
}
