package insts

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseLine parses one assembly instruction such as "addi x1, x0, 5" or
// "psrf.lw x5, 1(x18)". A trailing "# ..." comment is kept in Comment.
// Mnemonics are case-insensitive; register names are not.
func ParseLine(line string) (Instruction, error) {
	text, comment, _ := strings.Cut(line, "#")
	text = strings.TrimSpace(text)
	if text == "" {
		return Instruction{}, fmt.Errorf("%w: empty instruction", ErrSyntax)
	}

	mnemonic, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		mnemonic, rest = text[:i], text[i+1:]
	}
	op, ok := LookupOp(strings.ToLower(mnemonic))
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnknownOp, mnemonic)
	}

	args := splitArgs(rest)
	inst, err := parseOperands(op, args)
	if err != nil {
		return Instruction{}, fmt.Errorf("%s: %w", text, err)
	}
	inst.Comment = strings.TrimSpace(comment)

	return inst, nil
}

// splitArgs splits on commas outside parentheses.
func splitArgs(s string) []string {
	var (
		args  []string
		depth int
		start int
	)

	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				args = appendArg(args, s[start:i])
				start = i + 1
			}
		}
	}

	return appendArg(args, s[start:])
}

func appendArg(args []string, a string) []string {
	a = strings.TrimSpace(a)
	if a == "" {
		return args
	}
	return append(args, a)
}

func parseOperands(op Op, args []string) (Instruction, error) {
	f := op.Format()
	rdClass, rs1Class, rs2Class := f.operandClasses()
	inst := Instruction{Op: op}

	var err error

	switch f {
	case FormatR:
		if err = wantArgs(args, 3); err != nil {
			return inst, err
		}
		inst.Rd, inst.Rs1, inst.Rs2, err = parse3Regs(args, rdClass, rs1Class, rs2Class)

	case FormatRShift, FormatI, FormatPPSRF, FormatCORF, FormatHWLRF:
		if err = wantArgs(args, 3); err != nil {
			return inst, err
		}
		if inst.Rd, err = ParseReg(rdClass, args[0]); err != nil {
			return inst, err
		}
		if inst.Rs1, err = ParseReg(rs1Class, args[1]); err != nil {
			return inst, err
		}
		inst.Imm, err = parseImm(args[2])

	case FormatLoad, FormatPSRF:
		if len(args) == 1 && strings.Contains(args[0], "(") {
			// "psrf.lw x5(x18)": register glued to an empty offset.
			i := strings.Index(args[0], "(")
			args = []string{args[0][:i], args[0][i:]}
		}
		if err = wantArgs(args, 2); err != nil {
			return inst, err
		}
		if inst.Rd, err = ParseReg(rdClass, args[0]); err != nil {
			return inst, err
		}
		inst.Imm, inst.Rs1, err = parseOffsetBase(args[1], rs1Class)

	case FormatS:
		if err = wantArgs(args, 2); err != nil {
			return inst, err
		}
		if inst.Rs2, err = ParseReg(rs2Class, args[0]); err != nil {
			return inst, err
		}
		inst.Imm, inst.Rs1, err = parseOffsetBase(args[1], rs1Class)

	case FormatB:
		if err = wantArgs(args, 3); err != nil {
			return inst, err
		}
		if inst.Rs1, err = ParseReg(rs1Class, args[0]); err != nil {
			return inst, err
		}
		if inst.Rs2, err = ParseReg(rs2Class, args[1]); err != nil {
			return inst, err
		}
		inst.Imm, err = parseImm(args[2])

	case FormatU, FormatJ, FormatCORFLUI, FormatHWLRFLUI:
		if err = wantArgs(args, 2); err != nil {
			return inst, err
		}
		if inst.Rd, err = ParseReg(rdClass, args[0]); err != nil {
			return inst, err
		}
		inst.Imm, err = parseImm(args[1])

	case FormatNone:
		err = wantArgs(args, 0)

	default:
		err = ErrUnknownOp
	}

	return inst, err
}

func wantArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: want %d operands, got %d", ErrSyntax, n, len(args))
	}
	return nil
}

func parse3Regs(args []string, a, b, c RegClass) (Reg, Reg, Reg, error) {
	r0, err := ParseReg(a, args[0])
	if err != nil {
		return nil, nil, nil, err
	}
	r1, err := ParseReg(b, args[1])
	if err != nil {
		return nil, nil, nil, err
	}
	r2, err := ParseReg(c, args[2])
	if err != nil {
		return nil, nil, nil, err
	}
	return r0, r1, r2, nil
}

func parseImm(s string) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad immediate %q", ErrSyntax, s)
	}
	if v < -(1<<31) || v > 1<<32-1 {
		return 0, fmt.Errorf("%w: %d does not fit 32 bits", ErrImmediateRange, v)
	}
	return int32(v), nil
}

// parseOffsetBase parses "off(base)"; an empty offset is zero.
func parseOffsetBase(s string, class RegClass) (int32, Reg, error) {
	open := strings.Index(s, "(")
	closing := strings.LastIndex(s, ")")
	if open < 0 || closing < open {
		return 0, nil, fmt.Errorf("%w: want offset(base), got %q", ErrSyntax, s)
	}

	var off int32
	if o := strings.TrimSpace(s[:open]); o != "" {
		var err error
		if off, err = parseImm(o); err != nil {
			return 0, nil, err
		}
	}

	base, err := ParseReg(class, s[open+1:closing])
	if err != nil {
		return 0, nil, err
	}

	return off, base, nil
}
