package asm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/dfgasm/asm"
	"github.com/sarchlab/dfgasm/image"
	"github.com/sarchlab/dfgasm/insts"
	"github.com/sarchlab/dfgasm/loader"
)

const pe0Source = `# Assembly for PE0 (Cluster 0)
.text
.global _start

_start:
    lui x18, 1
    addi x18, x18, 1104

    # ========== Execution Section Begin ==========
    addi x1, x0, 5
    ret
`

const pe1Source = `_start:
    # ========== Execution Section Begin ==========
    jal x1, 256  # Call kernel: the loop body
kernel:
    jalr x0, x26, 0  # Return from function
`

var _ = Describe("Assembler", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "asm-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	writeSource := func(name, text string) string {
		path := filepath.Join(tempDir, name)
		Expect(os.WriteFile(path, []byte(text), 0644)).To(Succeed())
		return path
	}

	readOut := func(dir, name string) string {
		data, err := os.ReadFile(filepath.Join(dir, name))
		Expect(err).NotTo(HaveOccurred())
		return string(data)
	}

	Describe("Encode", func() {
		It("should tag words with their region", func() {
			src, err := loader.Parse(strings.NewReader(pe0Source), "pe0_assembly.s")
			Expect(err).NotTo(HaveOccurred())

			u, err := asm.NewAssembler().Encode(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(u.PE).To(Equal(0))
			Expect(u.BaseName).To(Equal("pe0_binary"))
			Expect(u.Words).To(Equal([]image.EncodedWord{
				{Word: 0x00001937, PE: 0, Preload: true},
				{Word: 0x45090913, PE: 0, Preload: true},
				{Word: 0x00500093, PE: 0},
				{Word: 0x00000013, PE: 0},
			}))
		})

		It("should report every failing line", func() {
			src, err := loader.Parse(strings.NewReader("addi x1, x0, 5\nfrob x1\naddi x99, x0, 1\n"), "pe3_assembly.s")
			Expect(err).NotTo(HaveOccurred())

			_, err = asm.NewAssembler().Encode(src)

			var fault *asm.PEFault
			Expect(errors.As(err, &fault)).To(BeTrue())
			Expect(fault.PE).To(Equal(3))
			Expect(err).To(MatchError(insts.ErrUnknownOp))
			Expect(err).To(MatchError(insts.ErrUnknownRegister))
			Expect(err.Error()).To(ContainSubstring("line 2"))
			Expect(err.Error()).To(ContainSubstring("line 3"))
		})
	})

	Describe("AssembleAll", func() {
		It("should write per-PE and combined images", func() {
			pe1 := writeSource("pe1_assembly.s", pe1Source)
			pe0 := writeSource("pe0_assembly.s", pe0Source)
			out := filepath.Join(tempDir, "out")
			Expect(os.MkdirAll(out, 0755)).To(Succeed())

			img, err := asm.NewAssembler(asm.WithVerify(true)).
				AssembleAll(context.Background(), []string{pe1, pe0}, out)
			Expect(err).NotTo(HaveOccurred())
			Expect(img.PEs()).To(Equal([]int{0, 1}))

			Expect(readOut(out, "pe0_binary.bin")).To(Equal("00001937\n45090913\n00500093\n00000013\n"))
			Expect(readOut(out, "pe0_binary.mem")).To(Equal(
				"@00000200 00001937\n@00000201 45090913\n@00000000 00500093\n@00000001 00000013\n"))
			Expect(readOut(out, image.CombinedFile)).To(Equal(`// Combined memory initialization file for all PEs
// Format: @ADDRESS HEX_INSTRUCTION
// Total PEs: 2

// PE0 memory entries
@00000200 00001937
@00000201 45090913
@00000000 00500093
@00000001 00000013

// PE1 memory entries
@00000400 100000ef
@00000401 000d0067
`))
		})

		It("should not depend on the file list order", func() {
			pe0 := writeSource("pe0_assembly.s", pe0Source)
			pe1 := writeSource("pe1_assembly.s", pe1Source)

			combined := func(name string, paths []string) string {
				out := filepath.Join(tempDir, name)
				Expect(os.MkdirAll(out, 0755)).To(Succeed())
				_, err := asm.NewAssembler(asm.WithWorkers(1)).AssembleAll(context.Background(), paths, out)
				Expect(err).NotTo(HaveOccurred())
				return readOut(out, image.CombinedFile)
			}

			Expect(combined("a", []string{pe0, pe1})).To(Equal(combined("b", []string{pe1, pe0})))
		})

		It("should accumulate sources without a PE id", func() {
			a := writeSource("alpha.s", "addi x1, x0, 1\n")
			b := writeSource("beta.s", "addi x1, x0, 2\n")

			img, err := asm.NewAssembler().AssembleAll(context.Background(), []string{a, b}, tempDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(img.PEs()).To(BeEmpty())
			Expect(img.Entries(image.UnknownPE)).To(HaveLen(2))

			Expect(readOut(tempDir, "alpha_binary.bin")).To(Equal("00100093\n"))
			Expect(readOut(tempDir, "beta_binary.bin")).To(Equal("00200093\n"))
			Expect(readOut(tempDir, image.CombinedFile)).To(HaveSuffix(
				"// Total PEs: 0\n\n// Unknown PE memory entries\n@0003fe00 00100093\n@0003fe00 00200093\n"))
		})

		It("should place unknown-PE execution words below the preload bit", func() {
			a := writeSource("alpha.s", "addi x1, x0, 1\n# Execution Section Begin\naddi x1, x0, 2\n")
			b := writeSource("beta.s", "# Execution Section Begin\naddi x1, x0, 3\n")

			_, err := asm.NewAssembler().AssembleAll(context.Background(), []string{a, b}, tempDir)
			Expect(err).NotTo(HaveOccurred())

			Expect(readOut(tempDir, "alpha_binary.mem")).To(Equal("@0003fe00 00100093\n@0003fc00 00200093\n"))
			Expect(readOut(tempDir, image.CombinedFile)).To(HaveSuffix(
				"// Unknown PE memory entries\n@0003fe00 00100093\n@0003fc00 00200093\n@0003fc00 00300093\n"))
		})

		It("should keep going past failing files", func() {
			pe0 := writeSource("pe0_assembly.s", pe0Source)
			bad := writeSource("pe2_assembly.s", "frob x1\n")
			missing := filepath.Join(tempDir, "pe5_assembly.s")

			logger, hook := test.NewNullLogger()
			img, err := asm.NewAssembler(asm.WithLogger(logger)).
				AssembleAll(context.Background(), []string{bad, missing, pe0}, tempDir)

			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("pe 2"))
			Expect(err.Error()).To(ContainSubstring("pe 5"))
			Expect(img.PEs()).To(Equal([]int{0}))

			Expect(readOut(tempDir, image.CombinedFile)).To(ContainSubstring("// PE0 memory entries"))
			_, statErr := os.Stat(filepath.Join(tempDir, "pe2_binary.bin"))
			Expect(os.IsNotExist(statErr)).To(BeTrue())

			Expect(hook.LastEntry().Message).To(Equal("assembled"))
			Expect(hook.LastEntry().Level).To(Equal(logrus.InfoLevel))
			Expect(hook.LastEntry().Data).To(HaveKeyWithValue("preload", 2))
			Expect(hook.LastEntry().Data).To(HaveKeyWithValue("execution", 2))
		})
	})

	Describe("Link", func() {
		unit := func(pe int, words ...uint32) asm.Unit {
			u := asm.Unit{Path: image.BaseName(pe) + ".s", PE: pe, BaseName: image.BaseName(pe)}
			for _, w := range words {
				u.Words = append(u.Words, image.EncodedWord{Word: w, PE: pe})
			}
			return u
		}

		It("should reject PEs sharing addresses", func() {
			img, err := asm.NewAssembler().Link([]asm.Unit{unit(1, 0x13), unit(257, 0x13)}, "")
			Expect(err).To(MatchError(image.ErrAddressConflict))
			Expect(img.PEs()).To(Equal([]int{1}))
		})

		It("should reject a PE assembled twice", func() {
			_, err := asm.NewAssembler().Link([]asm.Unit{unit(4, 0x13), unit(4, 0x13)}, "")
			Expect(err).To(MatchError(ContainSubstring("already assembled")))
		})

		It("should reject oversized regions", func() {
			words := make([]uint32, image.RegionSize+1)
			for i := range words {
				words[i] = 0x13
			}
			_, err := asm.NewAssembler().Link([]asm.Unit{unit(0, words...)}, "")
			Expect(err).To(MatchError(image.ErrRegionOverflow))
		})
	})

	Describe("Verify", func() {
		It("should flag words that do not decode", func() {
			a := asm.NewAssembler()
			err := a.Verify(image.New(), []image.Entry{{Addr: 0, Word: 0xFFFFFFFF, PE: image.UnknownPE}})
			Expect(err).To(MatchError(asm.ErrVerify))
		})

		It("should read known-PE words back from the image", func() {
			img := image.New()
			entries := []image.Entry{{Addr: 0x400, Word: 0x00500093, PE: 1}}
			Expect(img.Add(1, entries)).To(Succeed())

			Expect(asm.NewAssembler().Verify(img, entries)).To(Succeed())
		})
	})
})
