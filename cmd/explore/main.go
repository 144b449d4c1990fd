// Command explore profiles a CSV dataset and writes a plain-text report:
// dataset shape, per-column summary, numeric statistics, top categorical
// values and a sample of the first rows.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/logging"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/profile"
)

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func runMain(_ context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("explore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	data := fs.String("data", profile.DefaultDataPath, "CSV dataset to profile")
	out := fs.String("out", profile.DefaultReportPath, "report output path")
	verbose := fs.Bool("v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "usage: explore [-data file.csv] [-out report.txt]: %v\n", err)
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "usage: explore [-data file.csv] [-out report.txt]: unexpected arguments %v\n", fs.Args())
		return 2
	}

	logger := logging.New(stderr, *verbose)
	defer func() { _ = logger.Sync() }()

	r, err := profile.New(*data, profile.WithLogger(logger))
	if err != nil {
		logger.Error("load dataset failed", zap.String("path", *data), zap.Error(err))
		return 1
	}
	if err := r.GenerateReport(*out); err != nil {
		logger.Error("write report failed", zap.String("path", *out), zap.Error(err))
		return 1
	}

	md := r.DatasetMetadata()
	fmt.Fprintf(stdout, "profiled %d rows x %d columns -> %s\n", md.Rows, md.Columns, *out)
	return 0
}
