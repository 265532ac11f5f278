package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dfgasm/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i).To(BeZero())
	})

	It("should have Encoder and Decoder types", func() {
		Expect(insts.NewEncoder()).ToNot(BeNil())
		Expect(insts.NewDecoder()).ToNot(BeNil())
	})

	It("should give every operation a name and a format", func() {
		seen := map[string]bool{}
		for _, op := range insts.Ops() {
			Expect(op.Format()).NotTo(Equal(insts.FormatUnknown), "op %d", op)
			Expect(seen[op.String()]).To(BeFalse(), "duplicate %s", op)
			seen[op.String()] = true

			found, ok := insts.LookupOp(op.String())
			Expect(ok).To(BeTrue())
			Expect(found).To(Equal(op))
		}
	})

	It("should report unknown ops", func() {
		_, ok := insts.LookupOp("fmadd.s")
		Expect(ok).To(BeFalse())
		Expect(insts.OpUnknown.Format()).To(Equal(insts.FormatUnknown))
	})
})

var _ = Describe("Registers", func() {
	It("should parse each register file", func() {
		r, err := insts.ParseReg(insts.ClassGPR, "x31")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(insts.GPR(31)))

		r, err = insts.ParseReg(insts.ClassCoef, "c12")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(insts.CoefReg(12)))

		r, err = insts.ParseReg(insts.ClassPattern, "v3")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(insts.PatternReg(3)))

		r, err = insts.ParseReg(insts.ClassLoop, "L7")
		Expect(err).NotTo(HaveOccurred())
		Expect(r).To(Equal(insts.LoopReg(7)))
	})

	It("should not accept a register from another file", func() {
		_, err := insts.ParseReg(insts.ClassGPR, "c1")
		Expect(err).To(MatchError(insts.ErrUnknownRegister))

		_, err = insts.ParseReg(insts.ClassCoef, "x1")
		Expect(err).To(MatchError(insts.ErrUnknownRegister))
	})

	DescribeTable("should reject malformed names",
		func(class insts.RegClass, name string) {
			_, err := insts.ParseReg(class, name)
			Expect(err).To(MatchError(insts.ErrUnknownRegister))
		},
		Entry("x32", insts.ClassGPR, "x32"),
		Entry("leading zero", insts.ClassGPR, "x05"),
		Entry("null", insts.ClassGPR, "null"),
		Entry("L0", insts.ClassLoop, "L0"),
		Entry("L8", insts.ClassLoop, "L8"),
		Entry("v", insts.ClassPattern, "v"),
	)
})
