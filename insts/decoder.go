package insts

// Decoder decodes PE machine words into instructions.
type Decoder struct{}

// NewDecoder creates a new PE instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

type opKey struct {
	opcode, funct3, funct7 uint32
}

// decodeTable indexes every non-pseudo operation by the fields that select
// it. Funct fields that belong to the immediate are keyed as zero.
var decodeTable = func() map[opKey]Op {
	m := make(map[opKey]Op, numOps)
	for _, op := range Ops() {
		info := op.Info()
		switch info.Format {
		case FormatNone:
			continue
		case FormatR, FormatRShift:
			m[opKey{info.Opcode, info.Funct3, info.Funct7}] = op
		case FormatU, FormatJ, FormatCORFLUI, FormatHWLRFLUI:
			m[opKey{info.Opcode, 0, 0}] = op
		default:
			m[opKey{info.Opcode, info.Funct3, 0}] = op
		}
	}
	return m
}()

// Decode decodes a 32-bit PE instruction word. Words that match no
// operation decode to OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpUnknown}

	opcode := word & 0x7F           // bits [6:0]
	rd := (word >> 7) & 0x1F        // bits [11:7]
	funct3 := (word >> 12) & 0x7    // bits [14:12]
	rs1 := (word >> 15) & 0x1F      // bits [19:15]
	rs2 := (word >> 20) & 0x1F      // bits [24:20]
	funct7 := (word >> 25) & 0x7F   // bits [31:25]

	op := d.lookup(opcode, funct3, funct7)

	switch op.Format() {
	case FormatR:
		inst.Rd, inst.Rs1, inst.Rs2 = GPR(rd), GPR(rs1), GPR(rs2)
	case FormatRShift:
		inst.Rd, inst.Rs1 = GPR(rd), GPR(rs1)
		inst.Imm = int32(rs2)
	case FormatI, FormatLoad, FormatPSRF:
		inst.Rd, inst.Rs1 = GPR(rd), GPR(rs1)
		inst.Imm = d.immI(word)
	case FormatPPSRF:
		inst.Rd, inst.Rs1 = PatternReg(rd), PatternReg(rs1)
		inst.Imm = d.immI(word)
	case FormatCORF:
		// Coefficients read back unsigned; corf.addi accepts both readings.
		inst.Rd, inst.Rs1 = CoefReg(rd), CoefReg(rs1)
		inst.Imm = int32(word >> 20)
	case FormatHWLRF:
		inst.Rd, inst.Rs1 = LoopReg(rd), LoopReg(rs1)
		inst.Imm = d.immI(word)
	case FormatS:
		inst.Rs1, inst.Rs2 = GPR(rs1), GPR(rs2)
		inst.Imm = d.immS(word)
	case FormatB:
		inst.Rs1, inst.Rs2 = GPR(rs1), GPR(rs2)
		inst.Imm = d.immB(word)
	case FormatU:
		inst.Rd = GPR(rd)
		inst.Imm = int32(word >> 12)
	case FormatCORFLUI:
		inst.Rd = CoefReg(rd)
		inst.Imm = int32(word >> 12)
	case FormatHWLRFLUI:
		inst.Rd = LoopReg(rd)
		inst.Imm = int32(word >> 12)
	case FormatJ:
		inst.Rd = GPR(rd)
		inst.Imm = d.immJ(word)
	default:
		return inst
	}

	inst.Op = op
	if !d.registersValid(inst) {
		return &Instruction{Op: OpUnknown}
	}

	return inst
}

// lookup selects the operation for the given opcode and funct fields.
func (d *Decoder) lookup(opcode, funct3, funct7 uint32) Op {
	if op, ok := decodeTable[opKey{opcode, 0, 0}]; ok && d.isUpper(op) {
		return op
	}
	if op, ok := decodeTable[opKey{opcode, funct3, funct7}]; ok {
		return op
	}

	op, ok := decodeTable[opKey{opcode, funct3, 0}]
	if !ok {
		return OpUnknown
	}
	if f := op.Format(); (f == FormatR || f == FormatRShift) && funct7 != 0 {
		// Funct7 is part of the operation for R formats, not an immediate.
		return OpUnknown
	}
	return op
}

// isUpper checks for formats whose funct bits are all immediate.
func (d *Decoder) isUpper(op Op) bool {
	switch op.Format() {
	case FormatU, FormatJ, FormatCORFLUI, FormatHWLRFLUI:
		return true
	}
	return false
}

// registersValid rejects loop registers outside L1-L7.
func (d *Decoder) registersValid(inst *Instruction) bool {
	for _, r := range []Reg{inst.Rd, inst.Rs1, inst.Rs2} {
		if r != nil && !ValidReg(r) {
			return false
		}
	}
	return true
}

func signExtend(v uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(v<<shift) >> shift
}

// immI extracts imm[11:0] from bits [31:20].
func (d *Decoder) immI(word uint32) int32 {
	return signExtend(word>>20, 12)
}

// immS reassembles imm[11:5] (bits [31:25]) and imm[4:0] (bits [11:7]).
func (d *Decoder) immS(word uint32) int32 {
	raw := ((word >> 25) & 0x7F << 5) | ((word >> 7) & 0x1F)
	return signExtend(raw, 12)
}

// immB reassembles imm[12|10:5|4:1|11].
func (d *Decoder) immB(word uint32) int32 {
	raw := ((word >> 31) & 0x1 << 12) | // bit 12
		((word >> 7) & 0x1 << 11) | // bit 11
		((word >> 25) & 0x3F << 5) | // bits 10:5
		((word >> 8) & 0xF << 1) // bits 4:1
	return signExtend(raw, 13)
}

// immJ reassembles imm[20|10:1|11|19:12].
func (d *Decoder) immJ(word uint32) int32 {
	raw := ((word >> 31) & 0x1 << 20) | // bit 20
		((word >> 12) & 0xFF << 12) | // bits 19:12
		((word >> 20) & 0x1 << 11) | // bit 11
		((word >> 21) & 0x3FF << 1) // bits 10:1
	return signExtend(raw, 21)
}
