package insts

import "fmt"

// Op represents a PE operation.
type Op uint8

// PE operations.
const (
	OpUnknown Op = iota

	// R-type
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpMUL

	// R-type with a 5-bit shift amount in the rs2 slot
	OpSLLI
	OpSRLI
	OpSRAI

	// I-type
	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpJALR

	// Loads (I-type layout)
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU

	// Stores (S-type)
	OpSB
	OpSH
	OpSW

	// Branches (B-type)
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	// U-type / J-type
	OpLUI
	OpAUIPC
	OpJAL

	// PSRF window loads and stores
	OpPSRFLW
	OpPSRFLB
	OpPSRFZDLW
	OpPSRFSW
	OpPSRFSB

	// Register-file initialisation
	OpPPSRFADDI
	OpCORFADDI
	OpCORFLUI
	OpHWLRFLUI
	OpHWLRFADDI

	// Pseudo-instructions
	OpNOP
	OpRET

	numOps
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown   Format = iota
	FormatR                // funct7 | rs2 | rs1 | funct3 | rd | opcode
	FormatRShift           // funct7 | shamt | rs1 | funct3 | rd | opcode
	FormatI                // imm[11:0] | rs1 | funct3 | rd | opcode
	FormatLoad             // I layout, "rd, off(rs1)" text
	FormatS                // imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode
	FormatB                // imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | opcode
	FormatU                // imm[31:12] | rd | opcode
	FormatJ                // imm[20|10:1|11|19:12] | rd | opcode
	FormatPSRF             // I layout, "reg, var(base)" text
	FormatPPSRF            // I layout over pattern registers
	FormatCORF             // I layout over coefficient registers, 12-bit either-signed imm
	FormatCORFLUI          // U layout over coefficient registers
	FormatHWLRFLUI         // U layout over loop registers
	FormatHWLRF            // I layout over loop registers
	FormatNone             // no operands (nop, ret)
)

var formatNames = [...]string{
	FormatUnknown:  "unknown",
	FormatR:        "R",
	FormatRShift:   "R-shift",
	FormatI:        "I",
	FormatLoad:     "load",
	FormatS:        "S",
	FormatB:        "B",
	FormatU:        "U",
	FormatJ:        "J",
	FormatPSRF:     "PSRF",
	FormatPPSRF:    "PPSRF",
	FormatCORF:     "CORF",
	FormatCORFLUI:  "CORF-U",
	FormatHWLRFLUI: "HWLRF-U",
	FormatHWLRF:    "HWLRF",
	FormatNone:     "none",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// Major opcodes.
const (
	opcodeLoad     uint32 = 0b0000011
	opcodePSRFLoad uint32 = 0b0000100
	opcodeOpImm    uint32 = 0b0010011
	opcodeCustom   uint32 = 0b0010100 // ppsrf.addi, corf.addi, hwlrf.addi
	opcodeAUIPC    uint32 = 0b0010111
	opcodeStore    uint32 = 0b0100011
	opcodePSRFSt   uint32 = 0b0100100
	opcodeOp       uint32 = 0b0110011
	opcodeLUI      uint32 = 0b0110111
	opcodeCORFLUI  uint32 = 0b0111011
	opcodeHWLRFLUI uint32 = 0b0111100
	opcodeBranch   uint32 = 0b1100011
	opcodeJALR     uint32 = 0b1100111
	opcodeJAL      uint32 = 0b1101111
)

// OpInfo is the static encoding entry for an operation.
type OpInfo struct {
	Name   string
	Format Format
	Opcode uint32
	Funct3 uint32
	Funct7 uint32
}

var opTable = [numOps]OpInfo{
	OpADD:  {"add", FormatR, opcodeOp, 0b000, 0b0000000},
	OpSUB:  {"sub", FormatR, opcodeOp, 0b000, 0b0100000},
	OpSLL:  {"sll", FormatR, opcodeOp, 0b001, 0b0000000},
	OpSLT:  {"slt", FormatR, opcodeOp, 0b010, 0b0000000},
	OpSLTU: {"sltu", FormatR, opcodeOp, 0b011, 0b0000000},
	OpXOR:  {"xor", FormatR, opcodeOp, 0b100, 0b0000000},
	OpSRL:  {"srl", FormatR, opcodeOp, 0b101, 0b0000000},
	OpSRA:  {"sra", FormatR, opcodeOp, 0b101, 0b0100000},
	OpOR:   {"or", FormatR, opcodeOp, 0b110, 0b0000000},
	OpAND:  {"and", FormatR, opcodeOp, 0b111, 0b0000000},
	OpMUL:  {"mul", FormatR, opcodeOp, 0b000, 0b0000001},

	OpSLLI: {"slli", FormatRShift, opcodeOpImm, 0b001, 0b0000000},
	OpSRLI: {"srli", FormatRShift, opcodeOpImm, 0b101, 0b0000000},
	OpSRAI: {"srai", FormatRShift, opcodeOpImm, 0b101, 0b0100000},

	OpADDI:  {"addi", FormatI, opcodeOpImm, 0b000, 0},
	OpSLTI:  {"slti", FormatI, opcodeOpImm, 0b010, 0},
	OpSLTIU: {"sltiu", FormatI, opcodeOpImm, 0b011, 0},
	OpXORI:  {"xori", FormatI, opcodeOpImm, 0b100, 0},
	OpORI:   {"ori", FormatI, opcodeOpImm, 0b110, 0},
	OpANDI:  {"andi", FormatI, opcodeOpImm, 0b111, 0},
	OpJALR:  {"jalr", FormatI, opcodeJALR, 0b000, 0},

	OpLB:  {"lb", FormatLoad, opcodeLoad, 0b000, 0},
	OpLH:  {"lh", FormatLoad, opcodeLoad, 0b001, 0},
	OpLW:  {"lw", FormatLoad, opcodeLoad, 0b010, 0},
	OpLBU: {"lbu", FormatLoad, opcodeLoad, 0b100, 0},
	OpLHU: {"lhu", FormatLoad, opcodeLoad, 0b101, 0},

	OpSB: {"sb", FormatS, opcodeStore, 0b000, 0},
	OpSH: {"sh", FormatS, opcodeStore, 0b001, 0},
	OpSW: {"sw", FormatS, opcodeStore, 0b010, 0},

	OpBEQ:  {"beq", FormatB, opcodeBranch, 0b000, 0},
	OpBNE:  {"bne", FormatB, opcodeBranch, 0b001, 0},
	OpBLT:  {"blt", FormatB, opcodeBranch, 0b100, 0},
	OpBGE:  {"bge", FormatB, opcodeBranch, 0b101, 0},
	OpBLTU: {"bltu", FormatB, opcodeBranch, 0b110, 0},
	OpBGEU: {"bgeu", FormatB, opcodeBranch, 0b111, 0},

	OpLUI:   {"lui", FormatU, opcodeLUI, 0, 0},
	OpAUIPC: {"auipc", FormatU, opcodeAUIPC, 0, 0},
	OpJAL:   {"jal", FormatJ, opcodeJAL, 0, 0},

	OpPSRFLW:   {"psrf.lw", FormatPSRF, opcodePSRFLoad, 0b111, 0},
	OpPSRFLB:   {"psrf.lb", FormatPSRF, opcodePSRFLoad, 0b000, 0},
	OpPSRFZDLW: {"psrf.zd.lw", FormatPSRF, opcodePSRFLoad, 0b110, 0},
	OpPSRFSW:   {"psrf.sw", FormatPSRF, opcodePSRFSt, 0b100, 0},
	OpPSRFSB:   {"psrf.sb", FormatPSRF, opcodePSRFSt, 0b000, 0},

	OpPPSRFADDI: {"ppsrf.addi", FormatPPSRF, opcodeCustom, 0b001, 0},
	OpCORFADDI:  {"corf.addi", FormatCORF, opcodeCustom, 0b000, 0},
	OpCORFLUI:   {"corf.lui", FormatCORFLUI, opcodeCORFLUI, 0, 0},
	OpHWLRFLUI:  {"hwlrf.lui", FormatHWLRFLUI, opcodeHWLRFLUI, 0, 0},
	OpHWLRFADDI: {"hwlrf.addi", FormatHWLRF, opcodeCustom, 0b010, 0},

	// nop and ret both assemble to addi x0, x0, 0.
	OpNOP: {"nop", FormatNone, opcodeOpImm, 0b000, 0},
	OpRET: {"ret", FormatNone, opcodeOpImm, 0b000, 0},
}

var opsByName = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := OpUnknown + 1; op < numOps; op++ {
		m[opTable[op].Name] = op
	}
	return m
}()

// Info returns the encoding entry for op. Unknown ops return a zero entry
// with FormatUnknown.
func (op Op) Info() OpInfo {
	if op == OpUnknown || op >= numOps {
		return OpInfo{Name: "unknown", Format: FormatUnknown}
	}
	return opTable[op]
}

// Format returns the encoding format of op.
func (op Op) Format() Format { return op.Info().Format }

func (op Op) String() string { return op.Info().Name }

// Ops returns every known operation in declaration order.
func Ops() []Op {
	ops := make([]Op, 0, numOps-1)
	for op := OpUnknown + 1; op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

// LookupOp maps a lowercase mnemonic to its Op.
func LookupOp(name string) (Op, bool) {
	op, ok := opsByName[name]
	return op, ok
}

// IsLoad reports whether op reads data memory.
func (op Op) IsLoad() bool {
	switch op {
	case OpLB, OpLH, OpLW, OpLBU, OpLHU, OpPSRFLW, OpPSRFLB, OpPSRFZDLW:
		return true
	}
	return false
}

// IsStore reports whether op writes data memory.
func (op Op) IsStore() bool {
	switch op {
	case OpSB, OpSH, OpSW, OpPSRFSW, OpPSRFSB:
		return true
	}
	return false
}

// IsPSRF reports whether op is a PSRF window access.
func (op Op) IsPSRF() bool { return op.Format() == FormatPSRF }

// IsBranch reports whether op is a conditional branch.
func (op Op) IsBranch() bool { return op.Format() == FormatB }

// operandClasses returns the register file of the rd, rs1 and rs2 slots.
// ClassNone marks an unused slot.
func (f Format) operandClasses() (rd, rs1, rs2 RegClass) {
	switch f {
	case FormatR:
		return ClassGPR, ClassGPR, ClassGPR
	case FormatRShift, FormatI, FormatLoad, FormatPSRF:
		return ClassGPR, ClassGPR, ClassNone
	case FormatS, FormatB:
		return ClassNone, ClassGPR, ClassGPR
	case FormatU, FormatJ:
		return ClassGPR, ClassNone, ClassNone
	case FormatPPSRF:
		return ClassPattern, ClassPattern, ClassNone
	case FormatCORF:
		return ClassCoef, ClassCoef, ClassNone
	case FormatCORFLUI:
		return ClassCoef, ClassNone, ClassNone
	case FormatHWLRFLUI:
		return ClassLoop, ClassNone, ClassNone
	case FormatHWLRF:
		return ClassLoop, ClassLoop, ClassNone
	default:
		return ClassNone, ClassNone, ClassNone
	}
}

// immRange returns the accepted immediate range of a format.
func (f Format) immRange() (min, max int32, hasImm bool) {
	switch f {
	case FormatI, FormatLoad, FormatS, FormatPSRF, FormatPPSRF, FormatHWLRF:
		return -2048, 2047, true
	case FormatCORF:
		return -2048, 4095, true
	case FormatRShift:
		return 0, 31, true
	case FormatB:
		return -4096, 4094, true
	case FormatJ:
		return -(1 << 20), 1<<20 - 2, true
	case FormatU, FormatCORFLUI, FormatHWLRFLUI:
		return -(1 << 19), 1<<20 - 1, true
	default:
		return 0, 0, false
	}
}
