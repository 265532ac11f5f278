// Package image places encoded words into the PE instruction address space
// and writes the memory image files.
//
// An address packs the owning PE and the region of the word:
//
//	bits [17:10]  PE id (low 8 bits)
//	bit  9        1 for the preload region, 0 for execution
//	bits [8:0]    index within the region
package image

import (
	"errors"
	"fmt"
)

// Address layout.
const (
	PEShift    = 10
	PEMask     = 0xFF
	PreloadBit = 1 << 9
	RegionSize = 512

	// UnknownPE owns words from sources whose PE id is not known.
	UnknownPE = 0xFFFF
)

// ErrRegionOverflow is returned when a region holds more than RegionSize
// words.
var ErrRegionOverflow = errors.New("region overflow")

// ErrAddressConflict is returned when two PEs map to the same address.
var ErrAddressConflict = errors.New("address conflict")

// EncodedWord is an instruction word tagged with its owner and region.
type EncodedWord struct {
	Word    uint32
	PE      int
	Preload bool
}

// Entry is an EncodedWord placed at an address.
type Entry struct {
	Addr    uint32
	Word    uint32
	PE      int
	Preload bool
}

// Address returns the address of the index-th word of a PE region.
func Address(pe int, preload bool, index int) uint32 {
	addr := uint32(pe&PEMask)<<PEShift | uint32(index)
	if preload {
		addr |= PreloadBit
	}
	return addr
}

type regionKey struct {
	pe      int
	preload bool
}

// Allocate assigns addresses in input order. Each PE region counts from 0
// on its own.
func Allocate(words []EncodedWord) ([]Entry, error) {
	next := map[regionKey]int{}
	entries := make([]Entry, 0, len(words))

	for _, w := range words {
		k := regionKey{w.PE, w.Preload}
		idx := next[k]
		if idx >= RegionSize {
			return nil, fmt.Errorf("%w: pe %d %s region exceeds %d words",
				ErrRegionOverflow, w.PE, regionName(w.Preload), RegionSize)
		}
		next[k] = idx + 1

		entries = append(entries, Entry{
			Addr:    Address(w.PE, w.Preload, idx),
			Word:    w.Word,
			PE:      w.PE,
			Preload: w.Preload,
		})
	}

	return entries, nil
}

func regionName(preload bool) string {
	if preload {
		return "preload"
	}
	return "execution"
}

// Count returns the number of preload and execution entries.
func Count(entries []Entry) (preload, execution int) {
	for _, e := range entries {
		if e.Preload {
			preload++
		} else {
			execution++
		}
	}
	return preload, execution
}
