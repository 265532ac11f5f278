package cluster_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dfgasm/cluster"
	"github.com/sarchlab/dfgasm/codec"
	"github.com/sarchlab/dfgasm/config"
)

var _ = Describe("Resolver", func() {
	mem := config.MemoryConfig{
		Bases:   map[string]int32{"x18": 200, "x19": 0x20000, "x20": 0},
		Offsets: map[string]int32{"x18_offset": 1000, "x20_offset": 5},
	}

	It("should keep registers without a stride in place", func() {
		r := cluster.NewResolver(mem, 2)
		Expect(r.BaseAddress("x19", 3, 20)).To(Equal(int32(0x20000)))
	})

	It("should stride by cluster", func() {
		r := cluster.NewResolver(mem, 1)
		Expect(r.BaseAddress("x18", 0, 0)).To(Equal(int32(200)))
		Expect(r.BaseAddress("x18", 3, 12)).To(Equal(int32(3200)))
	})

	It("should add one bank for PE 16 with two copies", func() {
		r := cluster.NewResolver(mem, 2)
		Expect(r.BaseAddress("x18", 1, 16) - r.BaseAddress("x18", 1, 15)).To(Equal(int32(100000)))
	})

	It("should ignore the bank for other duplication factors", func() {
		r := cluster.NewResolver(mem, 3)
		Expect(r.BaseAddress("x18", 1, 40)).To(Equal(int32(1200)))
	})

	It("should resolve unknown registers to 0", func() {
		r := cluster.NewResolver(mem, 1)
		Expect(r.BaseAddress("x7", 1, 0)).To(Equal(int32(0)))
	})

	DescribeTable("four-copy banks",
		func(pe int, want int32) {
			Expect(cluster.BankOffset(4, pe)).To(Equal(want))
		},
		Entry("15", 15, int32(0)),
		Entry("16", 16, int32(100000)),
		Entry("30", 30, int32(100000)),
		Entry("31 stays in bank 0", 31, int32(0)),
		Entry("32", 32, int32(200000)),
		Entry("46", 46, int32(200000)),
		Entry("47 stays in bank 0", 47, int32(0)),
		Entry("48", 48, int32(300000)),
		Entry("62", 62, int32(300000)),
		Entry("63", 63, int32(0)),
	)

	Describe("Loads", func() {
		It("should split each address into lui and addi", func() {
			r := cluster.NewResolver(mem, 1)
			loads := r.Loads([]string{"x18", "x19", "x20"}, 5, 0)

			Expect(loads).To(HaveLen(2))
			Expect(loads[0]).To(Equal(cluster.BaseLoad{Reg: "x18", Address: 5200, Upper: 1, Lower: 1104}))
			Expect(loads[1].Reg).To(Equal("x19"))
			Expect(loads[1].Upper).To(Equal(int32(0x20)))
			Expect(loads[1].Lower).To(Equal(int32(0)))

			for _, l := range loads {
				Expect(codec.Join(l.Upper, l.Lower)).To(Equal(l.Address))
			}
		})

		It("should skip the lui for small addresses", func() {
			r := cluster.NewResolver(mem, 1)
			loads := r.Loads([]string{"x18"}, 0, 0)
			Expect(loads).To(Equal([]cluster.BaseLoad{{Reg: "x18", Address: 200, Upper: 0, Lower: 200}}))
		})
	})
})
