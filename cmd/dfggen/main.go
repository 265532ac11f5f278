// Package main provides dfggen, which generates per-PE assembly programs
// from a workload configuration.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"github.com/xyproto/env/v2"

	"github.com/sarchlab/dfgasm/asm"
	"github.com/sarchlab/dfgasm/codegen"
	"github.com/sarchlab/dfgasm/config"
	"github.com/sarchlab/dfgasm/image"
	"github.com/sarchlab/dfgasm/insts"
)

var (
	binary  = flag.Bool("bin", false, "Also encode the programs and write memory images")
	verbose = flag.Bool("v", env.Bool("DFGASM_VERBOSE"), "Verbose output")
	workers = flag.Int("workers", env.Int("DFGASM_WORKERS", runtime.NumCPU()), "Number of PEs generated at once")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: dfggen [options] <config_file> [output_dir]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	outDir := env.Str("DFGASM_OUTPUT_DIR", "build")
	if flag.NArg() > 1 {
		outDir = flag.Arg(1)
	}

	log := newLogger()
	os.Exit(run(log, flag.Arg(0), outDir))
}

func newLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger.WithField("run", xid.New().String())
}

func run(log *logrus.Entry, configPath, outDir string) int {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return 1
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.WithError(err).Error("failed to create output directory")
		return 1
	}

	gen := codegen.NewGenerator(cfg, codegen.WithLogger(log), codegen.WithWorkers(*workers))
	programs, err := gen.GenerateAll(context.Background())
	if err != nil {
		log.WithError(err).Error("generation failed")
		return 1
	}

	status, unknown := 0, 0
	for _, p := range programs {
		path, err := p.WriteFile(outDir)
		if err != nil {
			log.WithError(err).Error("failed to write program")
			status = 1
			continue
		}
		unknown += len(p.Unknown)
		log.WithFields(logrus.Fields{"pe": p.PE, "file": path}).Debug("generated")
	}

	log.WithFields(logrus.Fields{
		"programs": len(programs),
		"unknown":  unknown,
		"dir":      outDir,
	}).Info("generation complete")

	if *binary && !writeImages(log, programs, outDir) {
		status = 1
	}

	return status
}

// writeImages encodes the programs directly and writes the images the
// assembler would produce from the generated text.
func writeImages(log *logrus.Entry, programs []*codegen.Program, outDir string) bool {
	enc := insts.NewEncoder()
	ok := true

	var units []asm.Unit
	for _, p := range programs {
		words, err := p.Encode(enc)
		if err != nil {
			log.WithField("pe", p.PE).WithError(err).Error("failed to encode program")
			ok = false
			continue
		}
		units = append(units, asm.Unit{
			Path:     p.FileName(),
			PE:       p.PE,
			BaseName: image.BaseName(p.PE),
			Words:    words,
		})
	}

	a := asm.NewAssembler(asm.WithLogger(log), asm.WithVerify(true))
	if _, err := a.Link(units, outDir); err != nil {
		log.WithError(err).Error("failed to write memory images")
		ok = false
	}

	return ok
}
