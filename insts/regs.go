package insts

import (
	"fmt"
	"strconv"
	"strings"
)

// RegClass identifies one of the PE register files.
type RegClass uint8

// Register files.
const (
	ClassNone    RegClass = iota
	ClassGPR              // x0-x31
	ClassCoef             // c0-c31
	ClassPattern          // v0-v31
	ClassLoop             // L1-L7
)

var regClassNames = [...]string{
	ClassNone:    "none",
	ClassGPR:     "general",
	ClassCoef:    "coefficient",
	ClassPattern: "pattern",
	ClassLoop:    "hardware-loop",
}

func (c RegClass) String() string {
	if int(c) < len(regClassNames) {
		return regClassNames[c]
	}
	return fmt.Sprintf("RegClass(%d)", uint8(c))
}

// Reg is a register operand from any of the register files.
type Reg interface {
	Class() RegClass
	Num() uint8
	String() string
}

// GPR is a general-purpose register x0-x31.
type GPR uint8

// CoefReg is a coefficient register c0-c31.
type CoefReg uint8

// PatternReg is a pattern register v0-v31.
type PatternReg uint8

// LoopReg is a hardware-loop register L1-L7.
type LoopReg uint8

// Class implements Reg.
func (r GPR) Class() RegClass { return ClassGPR }

// Num implements Reg.
func (r GPR) Num() uint8 { return uint8(r) }

func (r GPR) String() string { return "x" + strconv.Itoa(int(r)) }

// Class implements Reg.
func (r CoefReg) Class() RegClass { return ClassCoef }

// Num implements Reg.
func (r CoefReg) Num() uint8 { return uint8(r) }

func (r CoefReg) String() string { return "c" + strconv.Itoa(int(r)) }

// Class implements Reg.
func (r PatternReg) Class() RegClass { return ClassPattern }

// Num implements Reg.
func (r PatternReg) Num() uint8 { return uint8(r) }

func (r PatternReg) String() string { return "v" + strconv.Itoa(int(r)) }

// Class implements Reg.
func (r LoopReg) Class() RegClass { return ClassLoop }

// Num implements Reg.
func (r LoopReg) Num() uint8 { return uint8(r) }

func (r LoopReg) String() string { return "L" + strconv.Itoa(int(r)) }

// Register number limits per file.
const (
	NumGPR     = 32
	NumCoef    = 32
	NumPattern = 32
	MinLoopReg = 1
	MaxLoopReg = 7
)

type regSpec struct {
	prefix   string
	min, max int
}

var regSpecs = [...]regSpec{
	ClassGPR:     {"x", 0, NumGPR - 1},
	ClassCoef:    {"c", 0, NumCoef - 1},
	ClassPattern: {"v", 0, NumPattern - 1},
	ClassLoop:    {"L", MinLoopReg, MaxLoopReg},
}

// ValidReg reports whether r names a register that exists in its file.
func ValidReg(r Reg) bool {
	if r == nil || r.Class() == ClassNone || int(r.Class()) >= len(regSpecs) {
		return false
	}
	spec := regSpecs[r.Class()]
	n := int(r.Num())
	return n >= spec.min && n <= spec.max
}

// ParseReg parses a register name in the given file. Names are matched
// exactly: "x5", "c12", "v3", "L2".
func ParseReg(class RegClass, name string) (Reg, error) {
	if class == ClassNone || int(class) >= len(regSpecs) {
		return nil, fmt.Errorf("%w: no register file for %q", ErrUnknownRegister, name)
	}

	spec := regSpecs[class]
	name = strings.TrimSpace(name)
	digits, ok := strings.CutPrefix(name, spec.prefix)
	if !ok || digits == "" {
		return nil, fmt.Errorf("%w: %q is not a %s register", ErrUnknownRegister, name, class)
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < spec.min || n > spec.max || strconv.Itoa(n) != digits {
		return nil, fmt.Errorf("%w: %q is not a %s register", ErrUnknownRegister, name, class)
	}

	switch class {
	case ClassGPR:
		return GPR(n), nil
	case ClassCoef:
		return CoefReg(n), nil
	case ClassPattern:
		return PatternReg(n), nil
	default:
		return LoopReg(n), nil
	}
}

// ParseGPR parses a general-purpose register name.
func ParseGPR(name string) (GPR, error) {
	r, err := ParseReg(ClassGPR, name)
	if err != nil {
		return 0, err
	}
	return r.(GPR), nil
}
