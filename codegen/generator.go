// Package codegen turns a workload configuration into per-PE programs.
//
// A program is a typed list of lines: every instruction line carries an
// insts.Instruction, so the same program can be rendered as assembly text
// or encoded directly with identical results.
package codegen

import (
	"context"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/dfgasm/cluster"
	"github.com/sarchlab/dfgasm/config"
	"github.com/sarchlab/dfgasm/insts"
)

// MaxScheduleLength bounds the template size; longer schedules are
// skipped as implausible.
const MaxScheduleLength = 10000

// Generator generates PE programs from a configuration.
type Generator struct {
	cfg      *config.Config
	resolver *cluster.Resolver
	log      logrus.FieldLogger
	workers  int
}

// GeneratorOption is a functional option for configuring the Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger for generation diagnostics.
func WithLogger(log logrus.FieldLogger) GeneratorOption {
	return func(g *Generator) {
		g.log = log
	}
}

// WithWorkers sets how many PEs GenerateAll generates at once.
func WithWorkers(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// NewGenerator creates a generator for cfg. The configuration must not be
// modified afterwards. A configuration that fails Validate generates no
// PEs.
func NewGenerator(cfg *config.Config, opts ...GeneratorOption) *Generator {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	g := &Generator{
		cfg:      cfg,
		resolver: cluster.NewResolver(cfg.Memory, cfg.Hardware.DataDup),
		log:      discard,
		workers:  runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Template returns the schedule used by pe, or false when pe is skipped:
// its template index is above minimum_pes_required, no schedule has that
// pe_id, or the schedule is empty or implausibly long. Every PE is skipped
// when pes_per_cluster is not positive.
func (g *Generator) Template(pe int) (*config.PEAssignment, bool) {
	if g.cfg.Hardware.PEsPerCluster <= 0 {
		g.log.WithField("pe", pe).Error("pes_per_cluster must be positive, skipping")
		return nil, false
	}

	basePE := pe % g.cfg.Hardware.PEsPerCluster
	log := g.log.WithFields(logrus.Fields{"pe": pe, "base_pe": basePE})

	if basePE > g.cfg.Scheduling.MinimumPEsRequired {
		log.Debug("skipping PE above minimum_pes_required")
		return nil, false
	}

	a, ok := g.cfg.Scheduling.Template(basePE)
	if !ok {
		log.Warn("no schedule for PE template, skipping")
		return nil, false
	}

	if n := len(a.Instructions); n == 0 || n >= MaxScheduleLength {
		log.WithField("instructions", n).Debug("skipping PE with empty or oversized schedule")
		return nil, false
	}

	return a, true
}

// Generate builds the program of pe. It returns false when the PE is
// skipped.
func (g *Generator) Generate(pe int) (*Program, bool) {
	a, ok := g.Template(pe)
	if !ok {
		return nil, false
	}

	p := &Program{PE: pe, Cluster: g.cfg.Hardware.Cluster(pe)}
	b := &builder{p: p, preload: true}
	e := &emitter{b: b, g: g, pe: pe, delay: g.cfg.Delays.Delay(pe)}

	g.emitHeader(b, p)
	if len(a.BaseRegisters) > 0 {
		e.emitBaseLoads(a)
	}
	if a.HasPSRFMem {
		e.emitPreload(a)
	}

	b.beginExecution()
	e.emitDelay()
	for i, inst := range a.Instructions {
		e.emit(i, inst)
	}
	e.emitFunctions()

	b.comment("End of program")
	b.inst(insts.RET())

	for _, u := range p.Unknown {
		g.log.WithFields(logrus.Fields{"pe": pe, "op": u.Name, "format": u.Format}).
			Warn("unknown instruction")
	}
	if err := p.Faults(); err != nil {
		g.log.WithField("pe", pe).WithError(err).Warn("unresolved operands")
	}

	return p, true
}

// GenerateAll generates every PE in [0, total_pes), skipping PEs without a
// program. Results are in ascending PE order. The configuration must pass
// Validate.
func (g *Generator) GenerateAll(ctx context.Context) ([]*Program, error) {
	if err := g.cfg.Validate(); err != nil {
		return nil, err
	}

	total := g.cfg.Hardware.TotalPEs
	results := make([]*Program, total)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)

	for pe := 0; pe < total; pe++ {
		pe := pe
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if p, ok := g.Generate(pe); ok {
				results[pe] = p
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	programs := make([]*Program, 0, total)
	for _, p := range results {
		if p != nil {
			programs = append(programs, p)
		}
	}
	return programs, nil
}

func (g *Generator) emitHeader(b *builder, p *Program) {
	b.header("Assembly for PE%d (Cluster %d)", p.PE, p.Cluster)
	b.header("Generated with PSRF, HWL and function support")
	b.directive(".text")
	b.directive(".global _start")
	b.blank()
	b.label("_start")
}
