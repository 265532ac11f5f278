package insts

import "fmt"

// Encoder encodes PE instructions into 32-bit words.
//
// The encoder never truncates: a register from the wrong file or an
// immediate that does not fit its field is an *EncodingError. Callers split
// oversized constants (see package codec) before encoding.
type Encoder struct{}

// NewEncoder creates a new PE instruction encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode encodes a single instruction.
func (e *Encoder) Encode(inst Instruction) (uint32, error) {
	info := inst.Op.Info()
	if info.Format == FormatUnknown {
		return 0, &EncodingError{Inst: inst, Err: ErrUnknownOp}
	}

	rd, rs1, rs2, err := e.operands(inst, info.Format)
	if err != nil {
		return 0, &EncodingError{Inst: inst, Err: err}
	}

	if err := e.checkImm(inst, info.Format); err != nil {
		return 0, &EncodingError{Inst: inst, Err: err}
	}

	imm := uint32(inst.Imm)

	switch info.Format {
	case FormatR:
		return e.encodeR(info, rd, rs1, rs2), nil
	case FormatRShift:
		return e.encodeR(info, rd, rs1, imm&0x1F), nil
	case FormatI, FormatLoad, FormatPSRF, FormatPPSRF, FormatCORF, FormatHWLRF:
		return e.encodeI(info, rd, rs1, imm), nil
	case FormatS:
		return e.encodeS(info, rs1, rs2, imm), nil
	case FormatB:
		return e.encodeB(info, rs1, rs2, imm), nil
	case FormatU, FormatCORFLUI, FormatHWLRFLUI:
		return e.encodeU(info, rd, imm), nil
	case FormatJ:
		return e.encodeJ(info, rd, imm), nil
	case FormatNone:
		// addi x0, x0, 0
		return e.encodeI(info, 0, 0, 0), nil
	}

	return 0, &EncodingError{Inst: inst, Err: ErrUnknownOp}
}

// EncodeAll encodes a stream, collecting every failure instead of stopping
// at the first one. Words for failed instructions are left zero.
func (e *Encoder) EncodeAll(stream []Instruction) ([]uint32, []error) {
	words := make([]uint32, len(stream))
	var errs []error

	for i, inst := range stream {
		w, err := e.Encode(inst)
		if err != nil {
			errs = append(errs, fmt.Errorf("instruction %d: %w", i, err))
			continue
		}
		words[i] = w
	}

	return words, errs
}

// operands validates the register slots against the format's register
// files and returns their numbers.
func (e *Encoder) operands(inst Instruction, f Format) (rd, rs1, rs2 uint32, err error) {
	wantRd, wantRs1, wantRs2 := f.operandClasses()

	if rd, err = e.operand("rd", inst.Rd, wantRd); err != nil {
		return 0, 0, 0, err
	}
	if rs1, err = e.operand("rs1", inst.Rs1, wantRs1); err != nil {
		return 0, 0, 0, err
	}
	if rs2, err = e.operand("rs2", inst.Rs2, wantRs2); err != nil {
		return 0, 0, 0, err
	}

	return rd, rs1, rs2, nil
}

func (e *Encoder) operand(slot string, r Reg, want RegClass) (uint32, error) {
	if want == ClassNone {
		return 0, nil
	}
	if r == nil {
		return 0, fmt.Errorf("%w: %s is missing, want %s register", ErrUnknownRegister, slot, want)
	}
	if r.Class() != want {
		return 0, fmt.Errorf("%w: %s is %s register %s, want %s register",
			ErrUnknownRegister, slot, r.Class(), r, want)
	}
	if !ValidReg(r) {
		return 0, fmt.Errorf("%w: %s register %s does not exist", ErrUnknownRegister, slot, r)
	}
	return uint32(r.Num()), nil
}

func (e *Encoder) checkImm(inst Instruction, f Format) error {
	min, max, hasImm := f.immRange()
	if !hasImm {
		return nil
	}
	if inst.Imm < min || inst.Imm > max {
		return fmt.Errorf("%w: %d not in [%d, %d] for %s format",
			ErrImmediateRange, inst.Imm, min, max, f)
	}
	if (f == FormatB || f == FormatJ) && inst.Imm&1 != 0 {
		return fmt.Errorf("%w: %s offset %d is odd", ErrImmediateRange, f, inst.Imm)
	}
	return nil
}

// encodeR: funct7 | rs2 | rs1 | funct3 | rd | opcode
func (e *Encoder) encodeR(info OpInfo, rd, rs1, rs2 uint32) uint32 {
	return info.Funct7<<25 | rs2<<20 | rs1<<15 | info.Funct3<<12 | rd<<7 | info.Opcode
}

// encodeI: imm[11:0] | rs1 | funct3 | rd | opcode
func (e *Encoder) encodeI(info OpInfo, rd, rs1, imm uint32) uint32 {
	return (imm&0xFFF)<<20 | rs1<<15 | info.Funct3<<12 | rd<<7 | info.Opcode
}

// encodeS: imm[11:5] | rs2 | rs1 | funct3 | imm[4:0] | opcode
func (e *Encoder) encodeS(info OpInfo, rs1, rs2, imm uint32) uint32 {
	return ((imm>>5)&0x7F)<<25 | rs2<<20 | rs1<<15 | info.Funct3<<12 |
		(imm&0x1F)<<7 | info.Opcode
}

// encodeB: imm[12] | imm[10:5] | rs2 | rs1 | funct3 | imm[4:1] | imm[11] | opcode
func (e *Encoder) encodeB(info OpInfo, rs1, rs2, imm uint32) uint32 {
	return ((imm>>12)&0x1)<<31 | ((imm>>5)&0x3F)<<25 | rs2<<20 | rs1<<15 |
		info.Funct3<<12 | ((imm>>1)&0xF)<<8 | ((imm>>11)&0x1)<<7 | info.Opcode
}

// encodeU: imm[19:0] | rd | opcode
func (e *Encoder) encodeU(info OpInfo, rd, imm uint32) uint32 {
	return (imm&0xFFFFF)<<12 | rd<<7 | info.Opcode
}

// encodeJ: imm[20] | imm[10:1] | imm[11] | imm[19:12] | rd | opcode
func (e *Encoder) encodeJ(info OpInfo, rd, imm uint32) uint32 {
	return ((imm>>20)&0x1)<<31 | ((imm>>1)&0x3FF)<<21 | ((imm>>11)&0x1)<<20 |
		((imm>>12)&0xFF)<<12 | rd<<7 | info.Opcode
}
