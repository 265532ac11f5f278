// Package codec splits constants into load-immediate pairs and packs the
// hardware-loop control word.
//
// Both the code generator and the encoder call into this package, so a
// constant is split exactly once and the generated text always agrees with
// the encoded word.
package codec

// ADDI immediate range (12-bit signed).
const (
	MinImm12 = -2048
	MaxImm12 = 2047
)

// SignExtend12 sign-extends the low 12 bits of v.
func SignExtend12(v int32) int32 {
	return (v << 20) >> 20
}

// FitsImm12 reports whether v fits a signed 12-bit immediate.
func FitsImm12(v int32) bool {
	return v >= MinImm12 && v <= MaxImm12
}

// SplitLUIADDI splits value into a 20-bit LUI immediate and a signed 12-bit
// ADDI immediate such that (upper20 << 12) + lower12 == value in 32-bit
// arithmetic. Values that fit ADDI alone return (0, value).
//
// upper20 is the raw 20-bit field (0..0xFFFFF); lower12 is already
// sign-extended.
func SplitLUIADDI(value int32) (upper20, lower12 int32) {
	if FitsImm12(value) {
		return 0, value
	}

	low := value & 0xFFF
	upper20 = (value >> 12) & 0xFFFFF
	if low&0x800 != 0 {
		// ADDI sign-extends, borrow one from the upper part.
		upper20 = (upper20 + 1) & 0xFFFFF
	}

	return upper20, SignExtend12(low)
}

// Join recombines a split pair the way LUI followed by ADDI does.
func Join(upper20, lower12 int32) int32 {
	return upper20<<12 + lower12
}
