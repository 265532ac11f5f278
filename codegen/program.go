package codegen

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sarchlab/dfgasm/image"
	"github.com/sarchlab/dfgasm/insts"
	"github.com/sarchlab/dfgasm/loader"
)

// Section markers. The assembler switches to the execution region at
// ExecutionMarker.
const (
	ExecutionMarker = "========== " + loader.ExecutionMarker + " =========="
	FunctionMarker  = "========== Function Sections =========="
)

const indent = "    "

// LineKind classifies a line of a generated program.
type LineKind int

// Line kinds.
const (
	LineBlank     LineKind = iota
	LineHeader             // file header comment
	LineComment            // indented comment
	LineDirective          // .text, .global
	LineLabel              // _start, function names
	LineMarker             // execution section begin
	LineInst               // encodable instruction
	LineInvalid            // instruction whose operands do not resolve
)

// Line is one line of a generated program.
type Line struct {
	Kind    LineKind
	Text    string            // comment, label or directive text; raw text of LineInvalid
	Inst    insts.Instruction // LineInst only
	Preload bool              // region of LineInst and LineInvalid
	Err     error             // LineInvalid only
}

// String renders the line as assembly text.
func (l Line) String() string {
	switch l.Kind {
	case LineHeader:
		return "# " + l.Text
	case LineComment:
		return indent + "# " + l.Text
	case LineDirective:
		return l.Text
	case LineLabel:
		return l.Text + ":"
	case LineMarker:
		return indent + "# " + ExecutionMarker
	case LineInst:
		return indent + l.Inst.Text()
	case LineInvalid:
		return indent + l.Text
	default:
		return ""
	}
}

// UnknownInstruction is a schedule entry whose operation and format have
// no encoding. Generation emits a placeholder comment in its place.
type UnknownInstruction struct {
	PE     int
	Index  int // position in the schedule or function body
	Name   string
	Format string
}

func (u UnknownInstruction) Error() string {
	return fmt.Sprintf("pe %d: unknown instruction %d: %s (format: %s)", u.PE, u.Index, u.Name, u.Format)
}

// Program is the generated code of one PE.
type Program struct {
	PE      int
	Cluster int
	Lines   []Line
	Unknown []UnknownInstruction
}

// FileName is the assembly file name of the program.
func (p *Program) FileName() string {
	return fmt.Sprintf("pe%d_assembly.s", p.PE)
}

// Instructions lists the encodable instructions in order.
func (p *Program) Instructions() []insts.Instruction {
	var out []insts.Instruction
	for _, l := range p.Lines {
		if l.Kind == LineInst {
			out = append(out, l.Inst)
		}
	}
	return out
}

// Faults joins the operand errors of all invalid lines, nil if there are
// none.
func (p *Program) Faults() error {
	var errs []error
	for i, l := range p.Lines {
		if l.Kind == LineInvalid {
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, l.Err))
		}
	}
	return errors.Join(errs...)
}

// Render writes the program as assembly text, one Line per text line.
func (p *Program) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, l := range p.Lines {
		bw.WriteString(l.String())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Text returns the rendered program.
func (p *Program) Text() string {
	var sb strings.Builder
	_ = p.Render(&sb)
	return sb.String()
}

// WriteFile renders the program into dir and returns the written path.
func (p *Program) WriteFile(dir string) (string, error) {
	path := filepath.Join(dir, p.FileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create assembly file: %w", err)
	}

	if err := p.Render(f); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write assembly file %s: %w", path, err)
	}
	return path, f.Close()
}

// Encode encodes the program without going through text. Every failing
// line is reported; words are only returned when all lines encode.
func (p *Program) Encode(enc *insts.Encoder) ([]image.EncodedWord, error) {
	var (
		words []image.EncodedWord
		errs  []error
	)

	for i, l := range p.Lines {
		switch l.Kind {
		case LineInst:
			w, err := enc.Encode(l.Inst)
			if err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w", i+1, err))
				continue
			}
			words = append(words, image.EncodedWord{Word: w, PE: p.PE, Preload: l.Preload})
		case LineInvalid:
			errs = append(errs, fmt.Errorf("line %d: %w", i+1, l.Err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return words, nil
}

// builder appends lines, tracking the current region.
type builder struct {
	p       *Program
	preload bool
}

func (b *builder) add(l Line) {
	b.p.Lines = append(b.p.Lines, l)
}

func (b *builder) blank() { b.add(Line{Kind: LineBlank}) }

func (b *builder) header(format string, args ...any) {
	b.add(Line{Kind: LineHeader, Text: fmt.Sprintf(format, args...)})
}

func (b *builder) comment(format string, args ...any) {
	b.add(Line{Kind: LineComment, Text: fmt.Sprintf(format, args...)})
}

func (b *builder) directive(text string) { b.add(Line{Kind: LineDirective, Text: text}) }

func (b *builder) label(name string) { b.add(Line{Kind: LineLabel, Text: name}) }

// beginExecution emits the marker; later instructions are execution words.
func (b *builder) beginExecution() {
	b.add(Line{Kind: LineMarker})
	b.preload = false
}

func (b *builder) inst(i insts.Instruction) {
	b.add(Line{Kind: LineInst, Inst: i, Preload: b.preload})
}

func (b *builder) invalid(text string, err error) {
	b.add(Line{Kind: LineInvalid, Text: text, Preload: b.preload, Err: fmt.Errorf("%s: %w", text, err)})
}
