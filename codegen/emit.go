package codegen

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/sarchlab/dfgasm/codec"
	"github.com/sarchlab/dfgasm/config"
	"github.com/sarchlab/dfgasm/insts"
)

// returnAddrReg holds the return address of function calls.
const returnAddrReg insts.GPR = 26

// windowSize is the number of PSRF registers selected by one var index.
const windowSize = 6

// emitter generates the lines of one PE.
type emitter struct {
	b     *builder
	g     *Generator
	pe    int
	delay int

	hwlCount int
}

// operands resolves register names, keeping the first failure.
type operands struct {
	err error
}

func (o *operands) gpr(name string) insts.GPR {
	r, err := insts.ParseGPR(name)
	if err != nil && o.err == nil {
		o.err = err
	}
	return r
}

func orNull(name string) string {
	return lo.Ternary(name == "", "null", name)
}

func (e *emitter) emitBaseLoads(a *config.PEAssignment) {
	b := e.b
	clusterNum := e.g.cfg.Hardware.Cluster(e.pe)
	regs := lo.Filter(e.g.cfg.Memory.Registers(), func(reg string, _ int) bool {
		return a.References(reg)
	})

	b.comment("Base address loading section for cluster %d", clusterNum)
	for _, l := range e.g.resolver.Loads(regs, clusterNum, e.pe) {
		b.comment("Loading %s with address 0x%X (%d)", l.Reg, uint32(l.Address), l.Address)
		if l.Upper != 0 {
			b.comment("Using lui %d and addi %d to create %d", l.Upper, l.Lower, codec.Join(l.Upper, l.Lower))
		}

		reg, err := insts.ParseGPR(l.Reg)
		switch {
		case err != nil:
			b.invalid(fmt.Sprintf("lui %s, %d", l.Reg, l.Upper), err)
		case l.Upper != 0:
			b.inst(insts.Upper(insts.OpLUI, reg, l.Upper))
			b.inst(insts.IType(insts.OpADDI, reg, reg, l.Lower))
		case l.Lower != 0:
			b.inst(insts.IType(insts.OpADDI, reg, 0, l.Lower))
		}
		b.blank()
	}
}

func (e *emitter) emitPreload(a *config.PEAssignment) {
	b := e.b
	b.comment("Preload section for PSRF variables and coefficients")

	for _, inst := range a.Instructions {
		p, ok := inst.Body.(config.PSRFMem)
		if !ok {
			continue
		}

		base := p.Window() * windowSize
		b.comment("Using var=%d (registers %d-%d)", p.Window(), base, base+windowSize-1)

		for _, f := range p.Patterns {
			if f.Value == 0 {
				continue
			}
			n := base + f.Index
			if n >= insts.NumPattern {
				b.invalid(fmt.Sprintf("ppsrf.addi v%d, v%d, %d", n, base, f.Value), windowError("v", n))
				continue
			}
			b.inst(insts.PPSRFADDI(insts.PatternReg(n), insts.PatternReg(base), f.Value))
		}

		for _, f := range p.Coefficients {
			if f.Value == 0 {
				continue
			}
			n := base + f.Index
			if n >= insts.NumCoef {
				b.invalid(fmt.Sprintf("corf.addi c%d, c%d, %d", n, base, f.Value), windowError("c", n))
				continue
			}

			rd := insts.CoefReg(n)
			upper, lower, needLUI := codec.SplitCoefficient(f.Value)
			if needLUI {
				b.inst(insts.CORFLUI(rd, upper))
				b.inst(insts.CORFADDI(rd, rd, lower))
				continue
			}
			b.inst(insts.CORFADDI(rd, insts.CoefReg(base), lower))
		}
	}

	b.blank()
}

func windowError(prefix string, n int) error {
	return fmt.Errorf("%w: %s%d is outside the register window", insts.ErrUnknownRegister, prefix, n)
}

func (e *emitter) emitDelay() {
	if e.delay <= 0 {
		return
	}

	e.b.comment("Adding %d NOPs for delay", e.delay)
	for i := 0; i < e.delay; i++ {
		e.b.inst(insts.NOP())
	}
	e.b.blank()
}

func (e *emitter) emitFunctions() {
	fns := e.g.cfg.Functions
	if len(fns) == 0 {
		return
	}

	b := e.b
	b.blank()
	b.comment(FunctionMarker)

	for _, f := range fns {
		body, ok := f.Body(e.pe)
		if !ok {
			continue
		}

		b.blank()
		b.label(f.Name)
		b.comment("Function %s (address: 0x%x)", f.Name, f.Address)
		for i, inst := range body {
			e.emit(i, inst)
		}

		if len(body) == 0 || body[len(body)-1].Op != insts.OpJALR {
			b.inst(insts.IType(insts.OpJALR, 0, returnAddrReg, 0).WithComment("Return from function"))
		}
	}
}

// emit generates the lines of one schedule entry.
func (e *emitter) emit(index int, inst config.Instruction) {
	b := e.b
	o := &operands{}

	switch body := inst.Body.(type) {
	case config.HWLoop:
		e.emitHWLoop(body)

	case config.PSRFMem:
		reg, base := o.gpr(body.Reg), o.gpr(body.Base)
		if o.err != nil {
			b.invalid(fmt.Sprintf("%s %s, %d(%s)", inst.Name, orNull(body.Reg), body.Window(), orNull(body.Base)), o.err)
			return
		}
		b.inst(insts.PSRF(inst.Op, reg, base, int32(body.Window())))

	case config.MemOp:
		reg, base := o.gpr(body.Reg), o.gpr(body.Base)
		if o.err != nil {
			b.invalid(fmt.Sprintf("%s %s, %d(%s)", inst.Name, orNull(body.Reg), body.Offset, orNull(body.Base)), o.err)
			return
		}
		if inst.Op.IsStore() {
			b.inst(insts.Store(inst.Op, reg, base, body.Offset))
		} else {
			b.inst(insts.Load(inst.Op, reg, base, body.Offset))
		}

	case config.IType:
		rd, rs1 := o.gpr(body.Rd), o.gpr(body.Rs1)
		if o.err != nil {
			b.invalid(fmt.Sprintf("%s %s, %s, %d", inst.Name, orNull(body.Rd), orNull(body.Rs1), body.Imm), o.err)
			return
		}
		if inst.Op == insts.OpADDI && !codec.FitsImm12(body.Imm) {
			e.emitLargeADDI(index, inst, rd, rs1, body.Imm)
			return
		}
		b.inst(insts.IType(inst.Op, rd, rs1, body.Imm))

	case config.RType:
		rd, rs1, rs2 := o.gpr(body.Rd), o.gpr(body.Rs1), o.gpr(body.Rs2)
		if o.err != nil {
			b.invalid(fmt.Sprintf("%s %s, %s, %s", inst.Name, orNull(body.Rd), orNull(body.Rs1), orNull(body.Rs2)), o.err)
			return
		}
		b.inst(insts.RType(inst.Op, rd, rs1, rs2))

	case config.Branch:
		rs1, rs2 := o.gpr(body.Rs1), o.gpr(body.Rs2)
		if o.err != nil {
			b.invalid(fmt.Sprintf("%s %s, %s, %d", inst.Name, orNull(body.Rs1), orNull(body.Rs2), body.Imm), o.err)
			return
		}
		b.inst(insts.Branch(inst.Op, rs1, rs2, body.Imm))

	case config.UType:
		rd := o.gpr(body.Rd)
		if o.err != nil {
			b.invalid(fmt.Sprintf("%s %s, %d", inst.Name, orNull(body.Rd), body.Imm), o.err)
			return
		}
		b.inst(insts.Upper(inst.Op, rd, body.Imm))

	case config.Jump:
		e.emitJump(inst, body, o)

	case config.Special:
		b.inst(lo.Ternary(inst.Op == insts.OpRET, insts.RET(), insts.NOP()))

	default:
		e.unknown(index, inst, "")
	}
}

func (e *emitter) emitHWLoop(h config.HWLoop) {
	b := e.b
	e.hwlCount++

	start := h.PCStart + e.delay
	word := codec.PackHWL(h.PCStart, h.PCStop, h.Index, h.Iterations, e.delay)
	upper, lower := codec.SplitHWLImmediate(word)

	b.comment("hwl_imm_%d = ((%d << 23) + (%d << 17) + (%d << 12) + %d",
		e.hwlCount, start, h.PCStop-start, h.Index, h.Iterations)
	b.comment("Original pc_start=%d, pc_stop=%d, delay=%d", h.PCStart, h.PCStop, e.delay)

	if h.LoopID < insts.MinLoopReg || h.LoopID > insts.MaxLoopReg {
		err := fmt.Errorf("%w: L%d", insts.ErrUnknownRegister, h.LoopID)
		b.invalid(fmt.Sprintf("hwlrf.lui L%d, %d", h.LoopID, upper), err)
		b.invalid(fmt.Sprintf("hwlrf.addi L%d, L%d, %d", h.LoopID, h.LoopID, lower), err)
		return
	}

	l := insts.LoopReg(h.LoopID)
	b.inst(insts.HWLRFLUI(l, upper))
	b.inst(insts.HWLRFADDI(l, l, lower))
}

// emitLargeADDI loads an immediate outside the 12-bit range with lui and
// addi, adding the source register afterwards when it is not x0.
func (e *emitter) emitLargeADDI(index int, inst config.Instruction, rd, rs1 insts.GPR, imm int32) {
	b := e.b
	upper, lower := codec.SplitLUIADDI(imm)

	if rs1 != 0 && rs1 == rd {
		e.unknown(index, inst, fmt.Sprintf("immediate %d needs a scratch register", imm))
		return
	}

	b.comment("Loading immediate %d using LUI+ADDI: %d << 12 + %d = %d",
		imm, upper, lower, codec.Join(upper, lower))
	b.inst(insts.Upper(insts.OpLUI, rd, upper))
	b.inst(insts.IType(insts.OpADDI, rd, rd, lower))
	if rs1 != 0 {
		b.inst(insts.RType(insts.OpADD, rd, rd, rs1))
	}
}

func (e *emitter) emitJump(inst config.Instruction, j config.Jump, o *operands) {
	b := e.b
	rd := o.gpr(j.Rd)

	if j.Target == "" {
		if o.err != nil {
			b.invalid(fmt.Sprintf("jal %s, %d", orNull(j.Rd), j.Imm), o.err)
			return
		}
		b.inst(insts.JAL(rd, j.Imm))
		return
	}

	addr := j.Address
	if f, ok := e.g.cfg.Functions.Lookup(j.Target); ok && addr == 0 {
		addr = f.Address
	}
	if o.err != nil {
		b.invalid(fmt.Sprintf("jal %s, %d  # Call %s", orNull(j.Rd), addr, j.Target), o.err)
		return
	}
	b.inst(insts.JAL(rd, addr).WithComment("Call " + j.Target))
}

// unknown emits the placeholder for an entry without an encoding.
func (e *emitter) unknown(index int, inst config.Instruction, reason string) {
	text := fmt.Sprintf("Unknown instruction: %s (format: %s)", inst.Name, inst.Format)
	if reason != "" {
		text += "; " + reason
	}

	e.b.comment("%s", text)
	e.b.p.Unknown = append(e.b.p.Unknown, UnknownInstruction{
		PE:     e.pe,
		Index:  index,
		Name:   inst.Name,
		Format: inst.Format,
	})
}
