// Command clean runs the configured cleaning pipeline over a CSV file and
// writes the cleaned table to disk, optionally loading it into a database.
//
// Stages run in a fixed order: drop_columns, missing_values, encoding,
// scaling. The rules document (YAML or JSON) selects per-column methods for
// each stage; see internal/config.
//
// Exit codes:
//
//	0  success (or -validate with a valid config)
//	1  runtime failure (unreadable input, failed stage, write or sink error)
//	2  usage error or invalid config
//
// # Sinks
//
// With -sink set, the cleaned table is also written to a database table
// (-table, default "cleaned"). The DSN comes from -dsn, falling back to the
// DSN environment variable. The destination table is replaced on every run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/cleaning"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/logging"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/metrics"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/metrics/datadog"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"

	// register every storage backend; -sink picks one at runtime.
	_ "github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage/all"
)

const (
	defaultInput  = "data/raw/titanic.csv"
	defaultOutput = "data/processed/cleaned_titanic.csv"
	defaultTable  = "cleaned"
)

// appDeps are the side-effecting seams runMain depends on. Tests replace them
// to observe call order without touching disk, databases or Datadog.
type appDeps struct {
	loadRules   func(path string) (config.Rules, error)
	openSink    func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	initMetrics func(ctx context.Context, backend string, logger *zap.Logger) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadRules:   config.Load,
		openSink:    storage.New,
		initMetrics: initMetrics,
	}
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Stdout, os.Stderr, defaultDeps()))
}

type options struct {
	input, cfgPath, output string
	strict, validate       bool
	trimSpace              bool
	sink, dsn, tableName   string
	metricsBackend         string
	verbose                bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options

	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", defaultInput, "CSV file to clean")
	fs.StringVar(&o.cfgPath, "config", config.DefaultPath, "cleaning rules (YAML or JSON)")
	fs.StringVar(&o.output, "output", defaultOutput, "where to write the cleaned CSV")
	fs.BoolVar(&o.strict, "strict", false, "fail on unsupported methods instead of skipping them")
	fs.BoolVar(&o.validate, "validate", false, "validate the config and exit")
	fs.BoolVar(&o.trimSpace, "trim-space", false, "strip surrounding whitespace from input cells")
	fs.StringVar(&o.sink, "sink", "", "optional database sink: sqlite|postgres|mssql")
	fs.StringVar(&o.dsn, "dsn", "", "sink DSN (overrides env DSN)")
	fs.StringVar(&o.tableName, "table", defaultTable, "sink table name")
	fs.StringVar(&o.metricsBackend, "metrics-backend", "none", "metrics backend: none|datadog")
	fs.BoolVar(&o.verbose, "v", false, "enable verbose logs")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if strings.TrimSpace(o.cfgPath) == "" {
		return o, errors.New("-config must not be empty")
	}

	switch strings.ToLower(strings.TrimSpace(o.metricsBackend)) {
	case "", "none", "datadog":
	default:
		return o, fmt.Errorf("unknown -metrics-backend %q (want none|datadog)", o.metricsBackend)
	}

	if o.sink != "" {
		kind := storage.NormalizeKind(o.sink)
		if !registered(kind) {
			return o, fmt.Errorf("unknown -sink %q (registered: %s)", o.sink, strings.Join(storage.Kinds(), ", "))
		}
		o.sink = kind
		if o.dsn == "" {
			o.dsn = os.Getenv("DSN")
		}
		if o.dsn == "" {
			return o, fmt.Errorf("-sink %s needs -dsn or env DSN", kind)
		}
		if strings.TrimSpace(o.tableName) == "" {
			return o, errors.New("-table must not be empty when -sink is set")
		}
	}
	return o, nil
}

func registered(kind string) bool {
	for _, k := range storage.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// runMain is main without the os.Exit so it can be driven from tests. It
// returns the process exit code.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "usage: clean [-input file.csv] [-config rules.yaml] [-output out.csv]: %v\n", err)
		return 2
	}

	logger := logging.New(stderr, o.verbose)
	defer func() { _ = logger.Sync() }()

	// A bad input path is rejected before the config is read.
	if !o.validate {
		if err := cleaning.ValidatePath(o.input); err != nil {
			fmt.Fprintf(stderr, "load input: %v\n", err)
			return 1
		}
	}

	rules, err := deps.loadRules(o.cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 2
	}

	issues := config.Validate(rules)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintf(stderr, "configuration is invalid: %s\n", o.cfgPath)
		return 2
	}
	if o.validate {
		fmt.Fprintf(stdout, "configuration is valid: %s\n", o.cfgPath)
		return 0
	}

	cleanup, err := deps.initMetrics(ctx, o.metricsBackend, logger)
	if err != nil {
		logger.Warn("metrics init failed; metrics disabled", zap.Error(err))
		cleanup = func() {}
	}
	defer cleanup()

	start := time.Now()

	p, err := cleaning.New(o.input, rules,
		cleaning.WithLogger(logger),
		cleaning.WithStrictMethods(o.strict),
		cleaning.WithReadOptions(table.ReadOptions{TrimSpace: o.trimSpace}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "load input: %v\n", err)
		return 1
	}

	out, err := p.Run()
	if err != nil {
		var se *cleaning.StageError
		if errors.As(err, &se) {
			logger.Error("pipeline failed",
				zap.String("stage", se.Stage),
				zap.Strings("completed", se.Completed),
				zap.Error(se.Err),
			)
		}
		fmt.Fprintf(stderr, "clean: %v\n", err)
		return 1
	}

	if err := table.SaveCSV(o.output, out); err != nil {
		fmt.Fprintf(stderr, "save output: %v\n", err)
		return 1
	}

	rows, cols := out.Shape()
	logger.Info("output written",
		zap.String("path", o.output),
		zap.Int("rows", rows),
		zap.Int("columns", cols),
	)

	if o.sink != "" {
		n, err := writeSink(ctx, deps, o, out)
		if err != nil {
			fmt.Fprintf(stderr, "sink %s: %v\n", o.sink, err)
			return 1
		}
		logger.Info("sink written",
			zap.String("sink", o.sink),
			zap.String("table", o.tableName),
			zap.Int64("rows", n),
		)
	}

	fmt.Fprintf(stdout, "cleaned %d rows x %d columns -> %s (%s)\n",
		rows, cols, o.output, time.Since(start).Truncate(time.Millisecond))
	return 0
}

func writeSink(ctx context.Context, deps appDeps, o options, t *table.Table) (int64, error) {
	repo, err := deps.openSink(ctx, storage.Config{Kind: o.sink, DSN: o.dsn})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	return repo.WriteTable(ctx, o.tableName, t)
}

// initMetrics installs the selected metrics backend and returns the cleanup
// that flushes and uninstalls it.
func initMetrics(ctx context.Context, backend string, logger *zap.Logger) (func(), error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "datadog":
		tags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    "clean",
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("metrics enabled", zap.String("backend", "datadog"), zap.Strings("tags", tags))
		metrics.SetBackend(b)
		return func() {
			// Close stops the flush loop and performs the final submit.
			if err := b.Close(); err != nil {
				logger.Warn("metrics: datadog close/flush error", zap.Error(err))
			}
			metrics.SetBackend(nil)
		}, nil

	default:
		logger.Debug("metrics disabled", zap.String("backend", backend))
		return func() {}, nil
	}
}
