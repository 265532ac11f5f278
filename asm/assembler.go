// Package asm assembles generated PE programs into memory images.
package asm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/dfgasm/image"
	"github.com/sarchlab/dfgasm/insts"
	"github.com/sarchlab/dfgasm/loader"
)

// PEFault collects every failure of one source file.
type PEFault struct {
	PE   int
	Path string
	Err  error
}

func (f *PEFault) Error() string {
	if f.PE == image.UnknownPE {
		return fmt.Sprintf("%s: %v", f.Path, f.Err)
	}
	return fmt.Sprintf("pe %d (%s): %v", f.PE, f.Path, f.Err)
}

func (f *PEFault) Unwrap() error { return f.Err }

// Unit is the encoded program of one source, ready to be placed.
type Unit struct {
	Path     string
	PE       int
	BaseName string
	Words    []image.EncodedWord
}

// Assembler turns assembly sources into memory images.
type Assembler struct {
	enc     *insts.Encoder
	dec     *insts.Decoder
	log     logrus.FieldLogger
	workers int
	verify  bool
}

// AssemblerOption is a functional option for configuring the Assembler.
type AssemblerOption func(*Assembler)

// WithLogger sets the logger for assembly diagnostics.
func WithLogger(log logrus.FieldLogger) AssemblerOption {
	return func(a *Assembler) {
		a.log = log
	}
}

// WithWorkers sets how many files are assembled at once.
func WithWorkers(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithVerify decodes every placed word again and checks that it encodes
// back to itself.
func WithVerify(verify bool) AssemblerOption {
	return func(a *Assembler) {
		a.verify = verify
	}
}

// NewAssembler creates a new assembler.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	a := &Assembler{
		enc:     insts.NewEncoder(),
		dec:     insts.NewDecoder(),
		log:     discard,
		workers: runtime.NumCPU(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Encode parses and encodes every instruction line of src. All failing
// lines are reported together as a *PEFault.
func (a *Assembler) Encode(src *loader.Source) (Unit, error) {
	u := Unit{Path: src.Path, PE: src.PE, BaseName: src.BaseName}

	var errs []error
	for _, l := range src.Lines {
		inst, err := insts.ParseLine(l.Text)
		if err == nil {
			var w uint32
			if w, err = a.enc.Encode(inst); err == nil {
				u.Words = append(u.Words, image.EncodedWord{Word: w, PE: src.PE, Preload: l.Preload})
				continue
			}
		}
		errs = append(errs, fmt.Errorf("line %d: %w", l.Num, err))
	}

	if err := errors.Join(errs...); err != nil {
		return Unit{}, &PEFault{PE: src.PE, Path: src.Path, Err: err}
	}
	return u, nil
}

// AssembleAll assembles the listed files and writes their images into
// outDir, finishing with the combined image. A failing file does not stop
// the others; the combined image holds every file that succeeded and the
// returned error joins all failures.
func (a *Assembler) AssembleAll(ctx context.Context, paths []string, outDir string) (*image.Image, error) {
	units := make([]*Unit, len(paths))
	faults := make([]error, len(paths))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.workers)

	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			src, err := loader.Load(path)
			if err != nil {
				pe, _ := loader.PEFromPath(path)
				faults[i] = &PEFault{PE: pe, Path: path, Err: err}
				return nil
			}

			u, err := a.Encode(src)
			if err != nil {
				faults[i] = err
				return nil
			}
			units[i] = &u
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var ready []Unit
	for i := range paths {
		if units[i] != nil {
			ready = append(ready, *units[i])
		}
	}

	img, err := a.Link(ready, outDir)
	return img, errors.Join(append(faults, err)...)
}

// Link places units into one image in the given order and writes the
// per-unit and combined image files into outDir. An empty outDir skips
// writing.
func (a *Assembler) Link(units []Unit, outDir string) (*image.Image, error) {
	img := image.New()
	seen := map[int]string{}

	var errs []error
	for _, u := range units {
		if err := a.place(img, seen, u, outDir); err != nil {
			errs = append(errs, &PEFault{PE: u.PE, Path: u.Path, Err: err})
		}
	}

	if outDir != "" {
		if err := img.WriteCombinedFile(outDir); err != nil {
			errs = append(errs, err)
		}
	}

	return img, errors.Join(errs...)
}

func (a *Assembler) place(img *image.Image, seen map[int]string, u Unit, outDir string) error {
	if u.PE != image.UnknownPE {
		if prev, dup := seen[u.PE]; dup {
			return fmt.Errorf("pe %d is already assembled from %s", u.PE, prev)
		}
	}

	entries, err := image.Allocate(u.Words)
	if err != nil {
		return err
	}
	if err := img.Add(u.PE, entries); err != nil {
		return err
	}
	seen[u.PE] = u.Path

	if a.verify {
		if err := a.Verify(img, entries); err != nil {
			return err
		}
	}

	if outDir != "" {
		if err := image.WriteFiles(outDir, u.BaseName, entries); err != nil {
			return err
		}
	}

	preload, execution := image.Count(entries)
	a.log.WithFields(logrus.Fields{
		"file":      u.Path,
		"pe":        u.PE,
		"preload":   preload,
		"execution": execution,
	}).Info("assembled")

	return nil
}
