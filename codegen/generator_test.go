package codegen_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/dfgasm/codec"
	"github.com/sarchlab/dfgasm/codegen"
	"github.com/sarchlab/dfgasm/config"
	"github.com/sarchlab/dfgasm/image"
	"github.com/sarchlab/dfgasm/insts"
	"github.com/sarchlab/dfgasm/loader"
)

const workload = `
mem_config:
  x18: 5200
delay_start: [0, 0, 0, 2]
hardware_config:
  total_pes: 4
  data_dup: 1
  clusters: {count: 2, pes_per_cluster: 2}
  psrf_mem_offset: {x18_offset: 1000}
scheduling:
  minimum_pes_required: 1
  pe_assignments:
    - pe_id: 0
      instructions:
        - {operation: ADDI, format: i-type, rd: x1, ra1: x0, imm: 5}
    - pe_id: 1
      instructions:
        - {operation: psrf.lw, format: psrf-mem-type, ra1: x5, base_address: x18, var: 1,
           coefficients: {c0: 7, c1: 5000}, psrf_var: {v2: 3}}
        - {operation: hwl, format: hwl-type, loop_id: 1, pc_start: 2, pc_stop: 6, hwl_index: 0, iterations: 10}
        - {operation: addi, format: i-type, rd: x2, ra1: x0, imm: 5000}
        - {operation: addi, format: i-type, rd: x3, ra1: x4, imm: 5000}
        - {operation: addi, format: i-type, rd: x3, ra1: x3, imm: 5000}
        - {operation: frob, format: x-type}
        - {operation: jal, format: j-type, rd: x1, target: kernel}
functions:
  kernel:
    address: 0x100
    pe_assignments:
      - pe_id: 1
        instructions:
          - {operation: add, format: r-type, rd: x1, ra1: x1, ra2: x1}
`

func mustParse(src string) *config.Config {
	c, err := config.Parse([]byte(src))
	Expect(err).NotTo(HaveOccurred())
	return c
}

func hasLine(p *codegen.Program, text string) bool {
	for _, l := range p.Lines {
		if strings.TrimSpace(l.String()) == text {
			return true
		}
	}
	return false
}

func indexOf(p *codegen.Program, text string) int {
	for i, l := range p.Lines {
		if strings.TrimSpace(l.String()) == text {
			return i
		}
	}
	return -1
}

var _ = Describe("Generator", func() {
	var (
		cfg  *config.Config
		gen  *codegen.Generator
		hook *test.Hook
	)

	BeforeEach(func() {
		var logger *logrus.Logger
		logger, hook = test.NewNullLogger()
		cfg = mustParse(workload)
		gen = codegen.NewGenerator(cfg, codegen.WithLogger(logger), codegen.WithWorkers(2))
	})

	Context("with a single small immediate", func() {
		It("should emit one addi and the final ret", func() {
			p, ok := gen.Generate(0)
			Expect(ok).To(BeTrue())

			Expect(p.Instructions()).To(Equal([]insts.Instruction{
				insts.IType(insts.OpADDI, 1, 0, 5),
				insts.RET(),
			}))

			words, err := p.Encode(insts.NewEncoder())
			Expect(err).NotTo(HaveOccurred())
			Expect(words[0]).To(Equal(image.EncodedWord{Word: 0x00500093, PE: 0}))
		})

		It("should not load base registers the PE does not use", func() {
			p, _ := gen.Generate(0)
			Expect(p.Text()).NotTo(ContainSubstring("Base address loading"))
		})

		It("should start with the header", func() {
			p, _ := gen.Generate(2)
			Expect(p.Cluster).To(Equal(1))
			Expect(strings.SplitN(p.Text(), "\n", 7)[:6]).To(Equal([]string{
				"# Assembly for PE2 (Cluster 1)",
				"# Generated with PSRF, HWL and function support",
				".text",
				".global _start",
				"",
				"_start:",
			}))
			Expect(p.FileName()).To(Equal("pe2_assembly.s"))
		})
	})

	Context("with a full schedule", func() {
		var p *codegen.Program

		BeforeEach(func() {
			var ok bool
			p, ok = gen.Generate(1)
			Expect(ok).To(BeTrue())
		})

		It("should emit instructions in order", func() {
			upper, lower := codec.SplitHWLImmediate(codec.PackHWL(2, 6, 0, 10, 0))

			want := []insts.Instruction{
				insts.Upper(insts.OpLUI, 18, 1),
				insts.IType(insts.OpADDI, 18, 18, 1104),
				insts.PPSRFADDI(8, 6, 3),
				insts.CORFADDI(6, 6, 7),
				insts.CORFLUI(7, 1),
				insts.CORFADDI(7, 7, 904),
				insts.PSRF(insts.OpPSRFLW, 5, 18, 1),
				insts.HWLRFLUI(1, upper),
				insts.HWLRFADDI(1, 1, lower),
				insts.Upper(insts.OpLUI, 2, 1),
				insts.IType(insts.OpADDI, 2, 2, 904),
				insts.Upper(insts.OpLUI, 3, 1),
				insts.IType(insts.OpADDI, 3, 3, 904),
				insts.RType(insts.OpADD, 3, 3, 4),
				insts.JAL(1, 256).WithComment("Call kernel"),
				insts.RType(insts.OpADD, 1, 1, 1),
				insts.IType(insts.OpJALR, 0, 26, 0).WithComment("Return from function"),
				insts.RET(),
			}

			Expect(cmp.Diff(want, p.Instructions())).To(BeEmpty())
		})

		It("should place the preload before the execution marker", func() {
			words, err := p.Encode(insts.NewEncoder())
			Expect(err).NotTo(HaveOccurred())

			Expect(lo.CountBy(words, func(w image.EncodedWord) bool { return w.Preload })).To(Equal(6))
			Expect(indexOf(p, "# "+codegen.ExecutionMarker)).
				To(BeNumerically(">", indexOf(p, "corf.addi c7, c7, 904")))
		})

		It("should describe loads with comments", func() {
			Expect(hasLine(p, "# Base address loading section for cluster 0")).To(BeTrue())
			Expect(hasLine(p, "# Loading x18 with address 0x1450 (5200)")).To(BeTrue())
			Expect(hasLine(p, "# Using lui 1 and addi 1104 to create 5200")).To(BeTrue())
			Expect(hasLine(p, "# Using var=1 (registers 6-11)")).To(BeTrue())
			Expect(hasLine(p, "# hwl_imm_1 = ((2 << 23) + (4 << 17) + (0 << 12) + 10")).To(BeTrue())
			Expect(hasLine(p, "# Original pc_start=2, pc_stop=6, delay=0")).To(BeTrue())
			Expect(hasLine(p, "# Loading immediate 5000 using LUI+ADDI: 1 << 12 + 904 = 5000")).To(BeTrue())
		})

		It("should emit the function section", func() {
			marker := indexOf(p, "# "+codegen.FunctionMarker)
			label := indexOf(p, "kernel:")
			Expect(marker).To(BeNumerically(">", 0))
			Expect(label).To(BeNumerically(">", marker))
			Expect(p.Lines[label+1].String()).To(Equal("    # Function kernel (address: 0x100)"))
		})

		It("should record unknown instructions", func() {
			Expect(p.Unknown).To(Equal([]codegen.UnknownInstruction{
				{PE: 1, Index: 4, Name: "addi", Format: "i-type"},
				{PE: 1, Index: 5, Name: "frob", Format: "x-type"},
			}))
			Expect(hasLine(p, "# Unknown instruction: frob (format: x-type)")).To(BeTrue())
			Expect(hasLine(p,
				"# Unknown instruction: addi (format: i-type); immediate 5000 needs a scratch register")).
				To(BeTrue())

			warnings := 0
			for _, e := range hook.AllEntries() {
				if e.Level == logrus.WarnLevel && e.Message == "unknown instruction" {
					warnings++
				}
			}
			Expect(warnings).To(Equal(2))
		})

		It("should encode the rendered text to the same words", func() {
			direct, err := p.Encode(insts.NewEncoder())
			Expect(err).NotTo(HaveOccurred())

			src, err := loader.Parse(strings.NewReader(p.Text()), p.FileName())
			Expect(err).NotTo(HaveOccurred())

			enc := insts.NewEncoder()
			var viaText []image.EncodedWord
			for _, l := range src.Lines {
				inst, err := insts.ParseLine(l.Text)
				Expect(err).NotTo(HaveOccurred(), l.Text)
				w, err := enc.Encode(inst)
				Expect(err).NotTo(HaveOccurred(), l.Text)
				viaText = append(viaText, image.EncodedWord{Word: w, PE: 1, Preload: l.Preload})
			}

			Expect(cmp.Diff(direct, viaText)).To(BeEmpty())
		})
	})

	It("should generate a single PE with one small immediate", func() {
		c := mustParse(`
mem_config: {x18: 200}
hardware_config:
  total_pes: 1
  data_dup: 1
  clusters: {count: 1, pes_per_cluster: 1}
scheduling:
  minimum_pes_required: 1
  pe_assignments:
    - pe_id: 0
      instructions:
        - {operation: ADDI, format: i-type, ra1: x0, rd: x1, imm: 5}
`)
		programs, err := codegen.NewGenerator(c).GenerateAll(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(programs).To(HaveLen(1))

		addis := lo.Filter(programs[0].Instructions(), func(i insts.Instruction, _ int) bool {
			return i.Op == insts.OpADDI
		})
		Expect(addis).To(Equal([]insts.Instruction{insts.IType(insts.OpADDI, 1, 0, 5)}))

		w, err := insts.NewEncoder().Encode(addis[0])
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(uint32(0b000000000101_00000_000_00001_0010011)))
	})

	It("should pad the execution section with delay NOPs", func() {
		p, ok := gen.Generate(3)
		Expect(ok).To(BeTrue())

		marker := indexOf(p, "# "+codegen.ExecutionMarker)
		Expect(p.Lines[marker+1].String()).To(Equal("    # Adding 2 NOPs for delay"))
		Expect(p.Lines[marker+2].Inst).To(Equal(insts.NOP()))
		Expect(p.Lines[marker+3].Inst).To(Equal(insts.NOP()))
		Expect(hasLine(p, "# hwl_imm_1 = ((4 << 23) + (2 << 17) + (0 << 12) + 10")).To(BeTrue())
		Expect(hasLine(p, "# Loading x18 with address 0x1838 (6200)")).To(BeTrue())
		Expect(hasLine(p, "kernel:")).To(BeFalse())
	})

	It("should report unresolved operands as faults", func() {
		c := mustParse(`
hardware_config:
  total_pes: 1
  data_dup: 1
  clusters: {count: 1, pes_per_cluster: 1}
scheduling:
  minimum_pes_required: 0
  pe_assignments:
    - pe_id: 0
      instructions:
        - {operation: add, format: r-type, rd: x1, ra1: x99, ra2: x2}
        - {operation: sub, format: r-type, rd: x1, ra2: x2}
`)
		p, ok := codegen.NewGenerator(c).Generate(0)
		Expect(ok).To(BeTrue())
		Expect(hasLine(p, "add x1, x99, x2")).To(BeTrue())
		Expect(hasLine(p, "sub x1, null, x2")).To(BeTrue())

		_, err := p.Encode(insts.NewEncoder())
		Expect(err).To(MatchError(insts.ErrUnknownRegister))
		Expect(p.Faults()).To(HaveOccurred())
	})

	It("should reject a configuration without PEs per cluster", func() {
		c := mustParse(`
hardware_config:
  total_pes: 2
  data_dup: 1
  clusters: {count: 1, pes_per_cluster: 0}
scheduling:
  minimum_pes_required: 0
  pe_assignments:
    - pe_id: 0
      instructions:
        - {operation: nop, format: special}
`)
		logger, hook := test.NewNullLogger()
		g := codegen.NewGenerator(c, codegen.WithLogger(logger))

		_, ok := g.Generate(0)
		Expect(ok).To(BeFalse())
		Expect(hook.LastEntry().Level).To(Equal(logrus.ErrorLevel))

		_, err := g.GenerateAll(context.Background())
		Expect(err).To(MatchError(config.ErrInvalid))
	})

	Describe("skip rules", func() {
		const skips = `
hardware_config:
  total_pes: 6
  data_dup: 1
  clusters: {count: 2, pes_per_cluster: 3}
scheduling:
  minimum_pes_required: 1
  pe_assignments:
    - pe_id: 0
      instructions:
        - {operation: nop, format: special}
    - pe_id: 2
      instructions:
        - {operation: nop, format: special}
`

		It("should skip PEs without a usable template", func() {
			logger, hook := test.NewNullLogger()
			g := codegen.NewGenerator(mustParse(skips), codegen.WithLogger(logger))

			_, ok := g.Generate(1)
			Expect(ok).To(BeFalse())
			Expect(hook.LastEntry().Level).To(Equal(logrus.WarnLevel))
			Expect(hook.LastEntry().Data).To(HaveKeyWithValue("pe", 1))

			_, ok = g.Generate(2)
			Expect(ok).To(BeFalse())
		})

		It("should generate the remaining PEs in order", func() {
			programs, err := codegen.NewGenerator(mustParse(skips), codegen.WithWorkers(3)).
				GenerateAll(context.Background())
			Expect(err).NotTo(HaveOccurred())

			pes := make([]int, len(programs))
			for i, p := range programs {
				pes[i] = p.PE
			}
			Expect(pes).To(Equal([]int{0, 3}))
		})

		It("should stop on a cancelled context", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := codegen.NewGenerator(mustParse(skips)).GenerateAll(ctx)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("WriteFile", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "codegen-test-*")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			_ = os.RemoveAll(tempDir)
		})

		It("should write the rendered program", func() {
			p, _ := gen.Generate(1)

			path, err := p.WriteFile(tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal(filepath.Join(tempDir, "pe1_assembly.s")))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(p.Text()))
			Expect(string(data)).To(HaveSuffix("    # End of program\n    ret\n"))
		})
	})
})
