package image

import (
	"encoding/binary"
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/sarchlab/akita/v4/mem/mem"
)

// storageBytes covers every address of the 18-bit word address space.
const storageBytes = 4 << (PEShift + 8)

// Image collects the placed words of all PEs. Words of known PEs are
// stored in an akita memory at byte address Addr*4, so a later PE that
// aliases the same addresses is caught. Unknown-PE words are only kept as
// entries since several unknown sources share PE id UnknownPE.
//
// Image is safe for concurrent use.
type Image struct {
	mu      sync.Mutex
	storage *mem.Storage
	owner   map[uint32]int
	entries map[int][]Entry
}

// New creates an empty image.
func New() *Image {
	return &Image{
		storage: mem.NewStorage(storageBytes),
		owner:   map[uint32]int{},
		entries: map[int][]Entry{},
	}
}

// Add places the entries of one PE. Entries of UnknownPE accumulate;
// entries of a known PE must not overlap addresses owned by another PE.
func (img *Image) Add(pe int, entries []Entry) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if pe != UnknownPE {
		for _, e := range entries {
			if other, ok := img.owner[e.Addr]; ok && other != pe {
				return fmt.Errorf("%w: pe %d and pe %d both use @%08x",
					ErrAddressConflict, other, pe, e.Addr)
			}
		}

		buf := make([]byte, 4)
		for _, e := range entries {
			binary.LittleEndian.PutUint32(buf, e.Word)
			if err := img.storage.Write(uint64(e.Addr)*4, buf); err != nil {
				return fmt.Errorf("failed to store word at @%08x: %w", e.Addr, err)
			}
			img.owner[e.Addr] = pe
		}
	}

	img.entries[pe] = append(img.entries[pe], entries...)
	return nil
}

// Word reads back the word stored at a known-PE address.
func (img *Image) Word(addr uint32) (uint32, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	data, err := img.storage.Read(uint64(addr)*4, 4)
	if err != nil {
		return 0, fmt.Errorf("failed to read word at @%08x: %w", addr, err)
	}
	return binary.LittleEndian.Uint32(data), nil
}

// PEs lists the known PE ids present, ascending.
func (img *Image) PEs() []int {
	img.mu.Lock()
	defer img.mu.Unlock()

	pes := lo.Without(lo.Keys(img.entries), UnknownPE)
	slices.Sort(pes)
	return pes
}

// HasUnknown reports whether any unknown-PE entries were added.
func (img *Image) HasUnknown() bool {
	img.mu.Lock()
	defer img.mu.Unlock()

	_, ok := img.entries[UnknownPE]
	return ok
}

// Entries returns a copy of the entries of pe in placement order.
func (img *Image) Entries(pe int) []Entry {
	img.mu.Lock()
	defer img.mu.Unlock()

	return slices.Clone(img.entries[pe])
}

// TotalPEs is one more than the highest known PE id, 0 when there is none.
func (img *Image) TotalPEs() int {
	pes := img.PEs()
	if len(pes) == 0 {
		return 0
	}
	return pes[len(pes)-1] + 1
}
