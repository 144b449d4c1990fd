// Command probe drafts a cleaning rules document by sampling a CSV dataset.
//
// It reads a bounded prefix of the input (default 20KB), measures each
// column's missing values and uniqueness, and emits rules that cmd/clean can
// run:
//
//   - Default mode: prints the rules (YAML, or JSON with -format json) to
//     stdout, or to -out when set.
//   - Report mode (-report): prints a per-column uniqueness table with the
//     suggestion made for each column and suppresses the rules output.
//
// The suggestions are heuristics. Review them before committing the file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/logging"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/probe"
)

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func runMain(_ context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		data      = fs.String("data", "data/raw/titanic.csv", "CSV dataset to sample")
		maxBytes  = fs.Int("bytes", probe.DefaultMaxBytes, "number of bytes to sample from the start of the file")
		report    = fs.Bool("report", false, "print the uniqueness report instead of rules")
		format    = fs.String("format", "yaml", "rules output format: yaml|json")
		out       = fs.String("out", "", "write rules to this file instead of stdout")
		scaling   = fs.String("scaling", "standard", "scaler to suggest for numeric columns: standard|minmax")
		maxOneHot = fs.Int("max-onehot", 10, "largest text cardinality to one-hot encode")
		verbose   = fs.Bool("v", false, "enable verbose logs")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return usage(stderr, err)
	}
	if fs.NArg() > 0 {
		return usage(stderr, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " ")))
	}
	if strings.TrimSpace(*data) == "" {
		return usage(stderr, errors.New("missing -data"))
	}

	var outFormat config.Format
	switch strings.ToLower(*format) {
	case "yaml", "yml":
		outFormat = config.FormatYAML
	case "json":
		outFormat = config.FormatJSON
	default:
		return usage(stderr, fmt.Errorf("unknown -format %q", *format))
	}

	scaler := config.ParseMethod(strings.ToLower(*scaling))
	if scaler.Stage() != config.StageScaling {
		return usage(stderr, fmt.Errorf("unknown -scaling %q", *scaling))
	}

	logger := logging.New(stderr, *verbose)
	defer func() { _ = logger.Sync() }()

	res, err := probe.ProbeFile(*data, probe.Options{
		MaxBytes:  *maxBytes,
		MaxOneHot: *maxOneHot,
		Scaling:   scaler,
	})
	if err != nil {
		logger.Error("probe failed", zap.String("path", *data), zap.Error(err))
		return 1
	}
	logger.Debug("sample probed",
		zap.String("path", *data),
		zap.Int("rows", res.Stats.SampledRows),
		zap.Bool("truncated", res.Truncated),
	)

	if *report {
		if err := res.Stats.WriteReport(stdout); err != nil {
			logger.Error("write report failed", zap.Error(err))
			return 1
		}
		return 0
	}

	b, err := config.Marshal(res.Rules, outFormat)
	if err != nil {
		logger.Error("encode rules failed", zap.Error(err))
		return 1
	}

	if *out == "" {
		if _, err := stdout.Write(b); err != nil {
			return 1
		}
		return 0
	}

	if dir := filepath.Dir(*out); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create output dir failed", zap.Error(err))
			return 1
		}
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("write rules failed", zap.String("path", *out), zap.Error(err))
		return 1
	}
	logger.Info("rules written", zap.String("path", *out))
	return 0
}

func usage(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "usage: probe -data file.csv [-bytes N] [-report] [-format yaml|json] [-out rules.yaml]: %v\n", err)
	return 2
}
