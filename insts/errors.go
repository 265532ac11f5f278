package insts

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by EncodingError and the text parser.
var (
	ErrUnknownOp       = errors.New("unknown operation")
	ErrUnknownRegister = errors.New("unknown register")
	ErrImmediateRange  = errors.New("immediate out of range")
	ErrSyntax          = errors.New("syntax error")
)

// EncodingError reports an instruction that cannot be encoded.
type EncodingError struct {
	Inst Instruction
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %q: %v", e.Inst.String(), e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }
