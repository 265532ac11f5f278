// Package main provides dfgasm, which assembles PE programs into memory
// initialization files.
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
	"github.com/sarchlab/dfgasm/loader"
)

var (
	verify  = flag.Bool("verify", false, "Decode every placed word and check it encodes back")
	verbose = flag.Bool("v", env.Bool("DFGASM_VERBOSE"), "Verbose output")
	workers = flag.Int("workers", env.Int("DFGASM_WORKERS", runtime.NumCPU()), "Number of files assembled at once")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: dfgasm [options] <file_list> [output_dir]\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	outDir := env.Str("DFGASM_OUTPUT_DIR", "./")
	if flag.NArg() > 1 {
		outDir = flag.Arg(1)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logger.WithField("run", xid.New().String())

	os.Exit(run(log, flag.Arg(0), outDir))
}

func run(log *logrus.Entry, listPath, outDir string) int {
	paths, err := loader.ReadFileList(listPath)
	if err != nil {
		log.WithError(err).Error("failed to read file list")
		return 1
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.WithError(err).Error("failed to create output directory")
		return 1
	}

	a := asm.NewAssembler(
		asm.WithLogger(log),
		asm.WithWorkers(*workers),
		asm.WithVerify(*verify),
	)

	img, err := a.AssembleAll(context.Background(), paths, outDir)
	if img == nil {
		log.WithError(err).Error("assembly failed")
		return 1
	}

	status := 0
	if err != nil {
		status = 1
		for _, f := range faults(err) {
			log.WithError(f).Error("assembly fault")
		}
	}

	log.WithFields(logrus.Fields{
		"files":     len(paths),
		"total_pes": img.TotalPEs(),
		"dir":       outDir,
	}).Info("assembly complete")

	return status
}

// faults splits a joined error into its parts.
func faults(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
