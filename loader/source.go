// Package loader reads assembly sources and the file lists naming them.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sarchlab/dfgasm/image"
)

// ExecutionMarker is the comment text that starts the execution region.
const ExecutionMarker = "Execution Section Begin"

var pePattern = regexp.MustCompile(`pe(\d+)_`)

// Line is an instruction line of a source file.
type Line struct {
	// Num is the 1-based line number in the file.
	Num int
	// Text is the trimmed instruction text, trailing comment included.
	Text string
	// Preload is true for lines before the execution marker.
	Preload bool
}

// Source is a loaded assembly file.
type Source struct {
	// Path is the file path as given.
	Path string
	// PE is the id parsed from a "pe<N>_" file name, or image.UnknownPE.
	PE int
	// BaseName is the output file stem, "pe<N>_binary" or
	// "<name>_binary".
	BaseName string
	// Lines are the instruction lines in file order.
	Lines []Line
}

// KnownPE reports whether the PE id came from the file name.
func (s *Source) KnownPE() bool {
	return s.PE != image.UnknownPE
}

// PEFromPath extracts N from the first "pe<N>_" in the file name.
func PEFromPath(path string) (int, bool) {
	m := pePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	pe, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return pe, true
}

// OutputBase returns the output file stem for a source path.
func OutputBase(path string) string {
	if pe, ok := PEFromPath(path); ok {
		return image.BaseName(pe)
	}
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name)) + "_binary"
}

// IsInstruction reports whether a trimmed line holds an instruction.
// Blank lines, comments, directives, labels and lines starting with '_'
// do not.
func IsInstruction(trimmed string) bool {
	if trimmed == "" {
		return false
	}
	switch trimmed[0] {
	case '#', '.', '_':
		return false
	}
	code, _, _ := strings.Cut(trimmed, "#")
	return !strings.Contains(code, ":")
}

// Load reads an assembly source file.
func Load(path string) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open assembly file: %w", err)
	}
	defer func() { _ = f.Close() }()

	src, err := Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assembly file %s: %w", path, err)
	}
	return src, nil
}

// Parse reads assembly text. Lines before the execution marker belong to
// the preload region.
func Parse(r io.Reader, path string) (*Source, error) {
	src := &Source{Path: path, PE: image.UnknownPE, BaseName: OutputBase(path)}
	if pe, ok := PEFromPath(path); ok {
		src.PE = pe
	}

	preload := true
	sc := bufio.NewScanner(r)
	for num := 1; sc.Scan(); num++ {
		trimmed := strings.TrimSpace(sc.Text())
		if !IsInstruction(trimmed) {
			if strings.Contains(trimmed, ExecutionMarker) {
				preload = false
			}
			continue
		}
		src.Lines = append(src.Lines, Line{Num: num, Text: trimmed, Preload: preload})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return src, nil
}

// ReadFileList reads a newline-separated list of source paths.
func ReadFileList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file list: %w", err)
	}
	defer func() { _ = f.Close() }()

	paths, err := ParseFileList(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file list %s: %w", path, err)
	}
	return paths, nil
}

// ParseFileList parses a file list, skipping blank lines and lines
// starting with '#'.
func ParseFileList(r io.Reader) ([]string, error) {
	var paths []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		p := strings.TrimSpace(sc.Text())
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		paths = append(paths, p)
	}
	return paths, sc.Err()
}
