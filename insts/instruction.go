package insts

import (
	"strconv"
	"strings"
)

// Instruction is one PE machine instruction.
//
// Which register slots are used, and from which register file, is fixed by
// the format of Op. Unused slots are nil.
type Instruction struct {
	Op  Op
	Rd  Reg // destination (also the data register of PSRF loads/stores)
	Rs1 Reg // first source or base register
	Rs2 Reg // second source (R, S and B formats)
	Imm int32

	// Comment is rendered after the instruction in assembly text. It does
	// not affect the encoding.
	Comment string
}

// RType builds a register-register instruction.
func RType(op Op, rd, rs1, rs2 GPR) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Rs2: rs2}
}

// ShiftImm builds slli/srli/srai.
func ShiftImm(op Op, rd, rs1 GPR, shamt int32) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: shamt}
}

// IType builds a register-immediate instruction (including jalr).
func IType(op Op, rd, rs1 GPR, imm int32) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: rs1, Imm: imm}
}

// Load builds "op rd, offset(base)".
func Load(op Op, rd, base GPR, offset int32) Instruction {
	return Instruction{Op: op, Rd: rd, Rs1: base, Imm: offset}
}

// Store builds "op src, offset(base)".
func Store(op Op, src, base GPR, offset int32) Instruction {
	return Instruction{Op: op, Rs1: base, Rs2: src, Imm: offset}
}

// Branch builds a conditional branch comparing rs1 and rs2.
func Branch(op Op, rs1, rs2 GPR, offset int32) Instruction {
	return Instruction{Op: op, Rs1: rs1, Rs2: rs2, Imm: offset}
}

// Upper builds lui/auipc with a raw 20-bit immediate.
func Upper(op Op, rd GPR, imm20 int32) Instruction {
	return Instruction{Op: op, Rd: rd, Imm: imm20}
}

// JAL builds a jump-and-link.
func JAL(rd GPR, offset int32) Instruction {
	return Instruction{Op: OpJAL, Rd: rd, Imm: offset}
}

// PSRF builds a PSRF window load or store "op reg, var(base)".
func PSRF(op Op, reg, base GPR, window int32) Instruction {
	return Instruction{Op: op, Rd: reg, Rs1: base, Imm: window}
}

// PPSRFADDI builds a pattern register load.
func PPSRFADDI(rd, rs1 PatternReg, imm int32) Instruction {
	return Instruction{Op: OpPPSRFADDI, Rd: rd, Rs1: rs1, Imm: imm}
}

// CORFADDI builds a coefficient register load.
func CORFADDI(rd, rs1 CoefReg, imm int32) Instruction {
	return Instruction{Op: OpCORFADDI, Rd: rd, Rs1: rs1, Imm: imm}
}

// CORFLUI builds a coefficient register upper load.
func CORFLUI(rd CoefReg, imm20 int32) Instruction {
	return Instruction{Op: OpCORFLUI, Rd: rd, Imm: imm20}
}

// HWLRFLUI builds the upper half of a loop control word load.
func HWLRFLUI(rd LoopReg, imm20 int32) Instruction {
	return Instruction{Op: OpHWLRFLUI, Rd: rd, Imm: imm20}
}

// HWLRFADDI builds the lower half of a loop control word load.
func HWLRFADDI(rd, rs1 LoopReg, imm int32) Instruction {
	return Instruction{Op: OpHWLRFADDI, Rd: rd, Rs1: rs1, Imm: imm}
}

// NOP returns a nop.
func NOP() Instruction { return Instruction{Op: OpNOP} }

// RET returns the end-of-program marker.
func RET() Instruction { return Instruction{Op: OpRET} }

// WithComment returns a copy of the instruction carrying a trailing comment.
func (i Instruction) WithComment(c string) Instruction {
	i.Comment = c
	return i
}

func regName(r Reg) string {
	if r == nil {
		return "?"
	}
	return r.String()
}

// String renders the instruction in assembly text form, without comment.
func (i Instruction) String() string {
	name := i.Op.String()
	imm := strconv.Itoa(int(i.Imm))

	switch i.Op.Format() {
	case FormatR:
		return name + " " + regName(i.Rd) + ", " + regName(i.Rs1) + ", " + regName(i.Rs2)
	case FormatRShift, FormatI, FormatPPSRF, FormatCORF, FormatHWLRF:
		return name + " " + regName(i.Rd) + ", " + regName(i.Rs1) + ", " + imm
	case FormatLoad:
		return name + " " + regName(i.Rd) + ", " + imm + "(" + regName(i.Rs1) + ")"
	case FormatPSRF:
		return name + " " + regName(i.Rd) + ", " + imm + "(" + regName(i.Rs1) + ")"
	case FormatS:
		return name + " " + regName(i.Rs2) + ", " + imm + "(" + regName(i.Rs1) + ")"
	case FormatB:
		return name + " " + regName(i.Rs1) + ", " + regName(i.Rs2) + ", " + imm
	case FormatU, FormatJ, FormatCORFLUI, FormatHWLRFLUI:
		return name + " " + regName(i.Rd) + ", " + imm
	case FormatNone:
		return name
	default:
		return "unknown"
	}
}

// Text renders the instruction with its trailing comment, if any.
func (i Instruction) Text() string {
	if i.Comment == "" {
		return i.String()
	}
	return i.String() + "  # " + strings.TrimSpace(i.Comment)
}
