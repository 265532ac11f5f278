package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sarchlab/dfgasm/insts"
)

// Format tags used by schedule entries.
const (
	FormatRType   = "r-type"
	FormatIType   = "i-type"
	FormatMem     = "mem-type"
	FormatPSRFMem = "psrf-mem-type"
	FormatHWL     = "hwl-type"
)

// Instruction is one schedule entry. Exactly one Body variant is set,
// chosen from the operation and format tag.
type Instruction struct {
	Name   string   // operation name, lowercased
	Op     insts.Op // OpUnknown if Name is not a PE operation
	Format string   // format tag as written
	Body   Body
}

// Body is the operand payload of an Instruction. Register operands stay as
// written; code generation resolves them.
type Body interface {
	isBody()
}

// RType is a register-register operation.
type RType struct {
	Rd, Rs1, Rs2 string
}

// IType is a register-immediate operation, shifts and jalr included.
type IType struct {
	Rd, Rs1 string
	Imm     int32
}

// MemOp is a plain load or store. Reg is the loaded or stored register.
type MemOp struct {
	Reg, Base string
	Offset    int32
}

// PSRFMem is a PSRF window load or store with its preload values.
type PSRFMem struct {
	Reg, Base    string
	Var          *int
	Coefficients []Field // c0..c5, ascending
	Patterns     []Field // v0..v5, ascending
}

// Window is the var index, 0 when unset.
func (p PSRFMem) Window() int {
	if p.Var == nil {
		return 0
	}
	return *p.Var
}

// Field is one window-relative preload value.
type Field struct {
	Index int
	Value int32
}

// HWLoop describes a hardware loop.
type HWLoop struct {
	LoopID     int
	PCStart    int
	PCStop     int
	Index      int
	Iterations int
}

// Branch is a conditional branch. The schedule names its first compared
// register rd and the second ra1.
type Branch struct {
	Rs1, Rs2 string
	Imm      int32
}

// UType is lui or auipc with a raw 20-bit immediate.
type UType struct {
	Rd  string
	Imm int32
}

// Jump is a jal, either to a named function at an absolute address or by a
// raw immediate.
type Jump struct {
	Rd      string
	Target  string
	Address int32
	Imm     int32
}

// Special is nop or ret.
type Special struct{}

// Unknown is an operation/format combination with no encoding.
type Unknown struct{}

func (RType) isBody()   {}
func (IType) isBody()   {}
func (MemOp) isBody()   {}
func (PSRFMem) isBody() {}
func (HWLoop) isBody()  {}
func (Branch) isBody()  {}
func (UType) isBody()   {}
func (Jump) isBody()    {}
func (Special) isBody() {}
func (Unknown) isBody() {}

// NormalizeOp lowercases an operation name.
func NormalizeOp(name string) string {
	// A Caser keeps state and cannot be shared between goroutines.
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

// classify picks the Body variant for an operation and format tag.
func classify(op insts.Op, format string) Body {
	f := op.Format()

	switch {
	case format == FormatHWL:
		return HWLoop{}
	case op.IsLoad() || op.IsStore():
		if op.IsPSRF() != (format == FormatPSRFMem) {
			return Unknown{}
		}
		if op.IsPSRF() {
			return PSRFMem{}
		}
		return MemOp{}
	case format == FormatIType:
		return lo.Ternary[Body](isIType(f), IType{}, Unknown{})
	case format == FormatRType:
		return lo.Ternary[Body](f == insts.FormatR, RType{}, Unknown{})
	case isIType(f):
		return IType{}
	case f == insts.FormatR:
		return RType{}
	case f == insts.FormatB:
		return Branch{}
	case f == insts.FormatU:
		return UType{}
	case op == insts.OpJAL:
		return Jump{}
	case op == insts.OpNOP || op == insts.OpRET:
		return Special{}
	}

	return Unknown{}
}

func isIType(f insts.Format) bool {
	return f == insts.FormatI || f == insts.FormatRShift
}

func parseInstruction(t tree) (Instruction, error) {
	name, err := t.requireStr("operation")
	if err != nil {
		return Instruction{}, err
	}
	format, err := t.requireStr("format")
	if err != nil {
		return Instruction{}, err
	}

	inst := Instruction{Name: NormalizeOp(name), Format: strings.TrimSpace(format)}
	inst.Op, _ = insts.LookupOp(inst.Name)

	regs := map[string]string{}
	for _, key := range []string{"rd", "ra1", "ra2", "base_address", "target"} {
		if regs[key], err = t.optStr(key); err != nil {
			return Instruction{}, err
		}
	}
	imm, _, err := t.optInt32("imm")
	if err != nil {
		return Instruction{}, err
	}

	switch body := classify(inst.Op, inst.Format).(type) {
	case HWLoop:
		inst.Body, err = parseHWLoop(t)
	case PSRFMem:
		inst.Body, err = parsePSRFMem(t, regs["ra1"], regs["base_address"])
	case MemOp:
		body.Reg, body.Base = regs["ra1"], regs["base_address"]
		body.Offset, _, err = t.optInt32("offset")
		inst.Body = body
	case IType:
		inst.Body = IType{Rd: regs["rd"], Rs1: regs["ra1"], Imm: imm}
	case RType:
		inst.Body = RType{Rd: regs["rd"], Rs1: regs["ra1"], Rs2: regs["ra2"]}
	case Branch:
		inst.Body = Branch{Rs1: regs["rd"], Rs2: regs["ra1"], Imm: imm}
	case UType:
		// Older schedules put the destination of lui/auipc in ra1.
		rd := lo.Ternary(regs["rd"] != "", regs["rd"], regs["ra1"])
		inst.Body = UType{Rd: rd, Imm: imm}
	case Jump:
		body.Rd, body.Target, body.Imm = regs["rd"], regs["target"], imm
		body.Address, _, err = t.optInt32("address")
		inst.Body = body
	default:
		inst.Body = body
	}
	if err != nil {
		return Instruction{}, err
	}

	return inst, nil
}

func parseHWLoop(t tree) (HWLoop, error) {
	var (
		h   HWLoop
		err error
	)
	fields := []struct {
		key string
		dst *int
	}{
		{"loop_id", &h.LoopID},
		{"pc_start", &h.PCStart},
		{"pc_stop", &h.PCStop},
		{"hwl_index", &h.Index},
		{"iterations", &h.Iterations},
	}
	for _, f := range fields {
		if *f.dst, err = t.requireInt(f.key); err != nil {
			return HWLoop{}, err
		}
	}
	return h, nil
}

func parsePSRFMem(t tree, reg, base string) (PSRFMem, error) {
	p := PSRFMem{Reg: reg, Base: base}

	if v, ok := t.child("var"); ok {
		n, err := v.asInt()
		if err != nil {
			return PSRFMem{}, err
		}
		if n < 0 {
			return PSRFMem{}, v.fault(fmt.Errorf("%w: var must be >= 0", ErrInvalid))
		}
		p.Var = &n
	}

	var err error
	if p.Patterns, err = parseFields(t, "psrf_var", "v"); err != nil {
		return PSRFMem{}, err
	}
	if p.Coefficients, err = parseFields(t, "coefficients", "c"); err != nil {
		return PSRFMem{}, err
	}

	return p, nil
}

// parseFields reads a {<prefix><n>: value} mapping ordered by n.
func parseFields(t tree, key, prefix string) ([]Field, error) {
	m, ok := t.child(key)
	if !ok {
		return nil, nil
	}
	entries, err := m.entries()
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(entries))
	for _, e := range entries {
		digits, ok := strings.CutPrefix(e.key, prefix)
		n, convErr := strconv.Atoi(digits)
		if !ok || convErr != nil || n < 0 {
			return nil, e.value.fault(fmt.Errorf("%w: want %s<n>", ErrInvalid, prefix))
		}
		if e.value.isNull() {
			continue
		}
		v, err := e.value.asInt32()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Index: n, Value: v})
	}

	slices.SortStableFunc(fields, func(a, b Field) int { return a.Index - b.Index })
	return fields, nil
}
