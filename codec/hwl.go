package codec

// Hardware-loop control word layout.
//
//	31      23 22   17 16   12 11        0
//	| start  | len   | index | iterations |
const (
	hwlStartShift = 23
	hwlLenShift   = 17
	hwlIndexShift = 12

	hwlStartMask = 0x1FF
	hwlLenMask   = 0x3F
	hwlIndexMask = 0x1F
	hwlIterMask  = 0xFFF
)

// HWLFields are the decoded fields of a hardware-loop control word.
type HWLFields struct {
	PCStart    uint32 // delay-adjusted loop start
	Length     uint32 // pc_stop minus the adjusted start
	Index      uint32
	Iterations uint32
}

// PackHWL builds the hardware-loop control word. The delay shifts pc_start;
// the window length is measured from the shifted start, so it shrinks by
// the same delay.
func PackHWL(pcStart, pcStop, hwlIndex, iterations, delay int) uint32 {
	adjusted := pcStart + delay

	var word uint32
	word |= uint32(adjusted&hwlStartMask) << hwlStartShift
	word |= uint32((pcStop-adjusted)&hwlLenMask) << hwlLenShift
	word |= uint32(hwlIndex&hwlIndexMask) << hwlIndexShift
	word |= uint32(iterations & hwlIterMask)

	return word
}

// UnpackHWL is the inverse of PackHWL on the bit level.
func UnpackHWL(word uint32) HWLFields {
	return HWLFields{
		PCStart:    (word >> hwlStartShift) & hwlStartMask,
		Length:     (word >> hwlLenShift) & hwlLenMask,
		Index:      (word >> hwlIndexShift) & hwlIndexMask,
		Iterations: word & hwlIterMask,
	}
}

// SplitHWLImmediate splits a packed control word into hwlrf.lui and
// hwlrf.addi immediates using the same carry rule as SplitLUIADDI. Unlike
// SplitLUIADDI, small words still produce a LUI because the control word is
// always loaded as a pair.
func SplitHWLImmediate(word uint32) (upper20, lower12 int32) {
	low := int32(word & 0xFFF)
	upper20 = int32((word >> 12) & 0xFFFFF)
	if low&0x800 != 0 {
		upper20 = (upper20 + 1) & 0xFFFFF
	}

	return upper20, SignExtend12(low)
}
