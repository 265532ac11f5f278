package asm

import (
	"errors"
	"fmt"

	"github.com/sarchlab/dfgasm/image"
	"github.com/sarchlab/dfgasm/insts"
)

// ErrVerify is wrapped by words that do not survive a decode and re-encode.
var ErrVerify = errors.New("verification failed")

// Verify decodes each placed word and checks that it encodes back to the
// same word. Words of known PEs are read back from the image; unknown-PE
// words are checked as placed.
func (a *Assembler) Verify(img *image.Image, entries []image.Entry) error {
	var errs []error

	for _, e := range entries {
		word := e.Word
		if e.PE != image.UnknownPE {
			w, err := img.Word(e.Addr)
			if err != nil {
				return err
			}
			word = w
		}

		if err := a.roundTrip(word); err != nil {
			errs = append(errs, fmt.Errorf("@%08x %08x: %w", e.Addr, word, err))
		}
	}

	return errors.Join(errs...)
}

func (a *Assembler) roundTrip(word uint32) error {
	inst := a.dec.Decode(word)
	if inst.Op == insts.OpUnknown {
		return fmt.Errorf("%w: word does not decode", ErrVerify)
	}

	again, err := a.enc.Encode(*inst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	if again != word {
		return fmt.Errorf("%w: %s re-encodes to %08x", ErrVerify, inst, again)
	}
	return nil
}
