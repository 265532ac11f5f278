package image

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// File names.
const (
	CombinedFile = "combined_memory.mem"
	hexSuffix    = ".bin"
	memSuffix    = ".mem"
)

// WriteHex writes one 8-digit hex word per line.
func WriteHex(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fmt.Fprintf(bw, "%08x\n", e.Word)
	}
	return bw.Flush()
}

// WriteMem writes "@ADDRESS WORD" lines.
func WriteMem(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fmt.Fprintln(bw, memLine(e.Addr, e.Word))
	}
	return bw.Flush()
}

func memLine(addr, word uint32) string {
	return fmt.Sprintf("@%08x %08x", addr, word)
}

// WriteCombined writes the memory image of every PE into one file: known
// PEs in ascending id order, then unknown-PE entries.
func (img *Image) WriteCombined(w io.Writer) error {
	bw := bufio.NewWriter(w)

	total := img.TotalPEs()
	fmt.Fprintln(bw, "// Combined memory initialization file for all PEs")
	fmt.Fprintln(bw, "// Format: @ADDRESS HEX_INSTRUCTION")
	fmt.Fprintf(bw, "// Total PEs: %d\n", total)

	for _, pe := range img.PEs() {
		fmt.Fprintf(bw, "\n// PE%d memory entries\n", pe)
		for _, e := range img.Entries(pe) {
			word, err := img.Word(e.Addr)
			if err != nil {
				return err
			}
			fmt.Fprintln(bw, memLine(e.Addr, word))
		}
	}

	if img.HasUnknown() {
		fmt.Fprintln(bw, "\n// Unknown PE memory entries")
		for _, e := range img.Entries(UnknownPE) {
			fmt.Fprintln(bw, memLine(e.Addr, e.Word))
		}
	}

	return bw.Flush()
}

// BaseName returns the output file stem of a PE, "pe<N>_binary".
func BaseName(pe int) string {
	return fmt.Sprintf("pe%d_binary", pe)
}

// WriteFiles writes <dir>/<base>.bin and <dir>/<base>.mem.
func WriteFiles(dir, base string, entries []Entry) error {
	if err := writeFile(filepath.Join(dir, base+hexSuffix), entries, WriteHex); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, base+memSuffix), entries, WriteMem)
}

// WriteCombinedFile writes the combined image to <dir>/combined_memory.mem.
func (img *Image) WriteCombinedFile(dir string) error {
	path := filepath.Join(dir, CombinedFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := img.WriteCombined(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

func writeFile(path string, entries []Entry, write func(io.Writer, []Entry) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f, entries); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
