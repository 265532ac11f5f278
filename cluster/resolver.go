// Package cluster relocates base addresses for the cluster and data bank
// a PE belongs to.
package cluster

import (
	"github.com/sarchlab/dfgasm/codec"
	"github.com/sarchlab/dfgasm/config"
)

// BankStride is the address distance between replicated data banks.
const BankStride = 100000

// Resolver computes per-PE base addresses from a memory map.
type Resolver struct {
	mem     config.MemoryConfig
	dataDup int
}

// NewResolver creates a resolver for the given memory map and data
// duplication factor.
func NewResolver(mem config.MemoryConfig, dataDup int) *Resolver {
	return &Resolver{mem: mem, dataDup: dataDup}
}

// BaseAddress returns the address reg holds on peID in cluster clusterNum.
//
// Registers without a nonzero "<reg>_offset" stride keep their configured
// base. Otherwise the base moves by stride*clusterNum plus the bank offset
// of peID. Unknown registers resolve to 0.
func (r *Resolver) BaseAddress(reg string, clusterNum, peID int) int32 {
	base, _ := r.mem.Base(reg)

	stride := r.mem.Stride(reg)
	if stride == 0 {
		return base
	}

	return base + stride*int32(clusterNum) + BankOffset(r.dataDup, peID)
}

// BankOffset returns the extra displacement of the data bank holding peID.
//
// With two copies PEs above 15 use the second bank. With four copies the
// banks are 16-30, 32-46 and 48-62; PEs 31, 47 and 63 stay in bank 0.
func BankOffset(dataDup, peID int) int32 {
	switch dataDup {
	case 2:
		if peID > 15 {
			return BankStride
		}
	case 4:
		switch {
		case peID > 15 && peID < 31:
			return BankStride
		case peID > 31 && peID < 47:
			return 2 * BankStride
		case peID > 47 && peID < 63:
			return 3 * BankStride
		}
	}
	return 0
}

// BaseLoad is the lui/addi pair that materializes a base address.
type BaseLoad struct {
	Reg     string
	Address int32
	Upper   int32 // 0 when no lui is needed
	Lower   int32 // sign-extended
}

// Loads plans the base register loads of peID for regs, in the given
// order. Registers with a zero base are left out.
func (r *Resolver) Loads(regs []string, clusterNum, peID int) []BaseLoad {
	var loads []BaseLoad
	for _, reg := range regs {
		if base, _ := r.mem.Base(reg); base == 0 {
			continue
		}

		addr := r.BaseAddress(reg, clusterNum, peID)
		upper, lower := codec.SplitLUIADDI(addr)
		loads = append(loads, BaseLoad{Reg: reg, Address: addr, Upper: upper, Lower: lower})
	}
	return loads
}
