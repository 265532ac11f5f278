package codec

// CORF addi accepts a 12-bit immediate in either signed or unsigned reading.
const (
	MinCoefImm = -2048
	MaxCoefImm = 4095
)

// SplitCoefficient decides how a coefficient is loaded into a CORF register.
// Values inside the corf.addi range need no LUI (needLUI false, lower is the
// value). Anything else becomes corf.lui (value >> 12) followed by corf.addi
// (value & 0xFFF).
func SplitCoefficient(value int32) (upper20, lower12 int32, needLUI bool) {
	if value >= MinCoefImm && value <= MaxCoefImm {
		return 0, value, false
	}

	return (value >> 12) & 0xFFFFF, value & 0xFFF, true
}
