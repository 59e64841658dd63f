package shufmask

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition reports a decode call whose operands could not come
	// from a correctly decoded instruction: a malformed shape, a control
	// operand whose length disagrees with the shape, or a computed index
	// outside the concatenated sources.
	ErrPrecondition = errors.New("shuffle decode precondition violated")

	// ErrUnknownOp reports a mnemonic with no shuffle decoder.
	ErrUnknownOp = errors.New("not a shuffle instruction")
)

func preconditionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}
