// Package insts provides the PE instruction set: operations, register
// files, encoding, decoding and the assembly text form.
//
// The PE core executes RV32I-style instructions plus custom extensions:
//   - PSRF loads/stores into a register window selected by a var index
//   - CORF coefficient register loads (corf.addi, corf.lui)
//   - PPSRF pattern register loads (ppsrf.addi)
//   - HWLRF hardware-loop control word loads (hwlrf.lui, hwlrf.addi)
//
// Usage:
//
//	enc := insts.NewEncoder()
//	word, err := enc.Encode(insts.IType(insts.OpADDI, 1, 0, 5)) // addi x1, x0, 5
//	inst := insts.NewDecoder().Decode(word)
//	fmt.Println(inst) // addi x1, x0, 5
package insts
