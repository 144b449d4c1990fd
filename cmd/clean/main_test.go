package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/config"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/storage"
	"github.com/abdulrahmanphy64/yaml-driven-data-pipeline/internal/table"
)

const sampleCSV = `name,age,sex,fare
a,22,male,7.25
b,,female,71.28
c,30,male,8.05
`

const sampleRules = `
missing_values:
  strategy:
    age: median
encoding:
  strategy:
    sex: label
scaling:
  strategy:
    fare: minmax
`

// fakeRepo records what the CLI hands to the sink.
type fakeRepo struct {
	mu       sync.Mutex
	writeErr error
	name     string
	rows     int
	closed   int
}

func (r *fakeRepo) WriteTable(_ context.Context, name string, t *table.Table) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.rows = t.Rows()
	if r.writeErr != nil {
		return 0, r.writeErr
	}
	return int64(t.Rows()), nil
}

func (r *fakeRepo) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func writeInput(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(p, []byte(sampleCSV), 0o644))
	return p
}

func rulesFrom(t *testing.T, doc string) func(string) (config.Rules, error) {
	t.Helper()
	r, err := config.Parse([]byte(doc), config.FormatYAML)
	require.NoError(t, err)
	return func(string) (config.Rules, error) { return r, nil }
}

func noMetrics(context.Context, string, *zap.Logger) (func(), error) {
	return func() {}, nil
}

// failingDeps fails the test if any side-effecting seam is reached.
func failingDeps(t *testing.T) appDeps {
	return appDeps{
		loadRules: func(string) (config.Rules, error) {
			t.Fatalf("loadRules must not be called on usage errors")
			return config.Rules{}, nil
		},
		openSink: func(context.Context, storage.Config) (storage.Repository, error) {
			t.Fatalf("openSink must not be called on usage errors")
			return nil, nil
		},
		initMetrics: func(context.Context, string, *zap.Logger) (func(), error) {
			t.Fatalf("initMetrics must not be called on usage errors")
			return func() {}, nil
		},
	}
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Setenv("DSN", "")

	tests := []struct {
		name      string
		args      []string
		wantInErr string
	}{
		{name: "unknown_flag", args: []string{"-nope"}, wantInErr: "flag provided but not defined"},
		{name: "positional_args", args: []string{"extra"}, wantInErr: "unexpected arguments"},
		{name: "empty_config", args: []string{"-config", "  "}, wantInErr: "-config must not be empty"},
		{name: "unknown_sink", args: []string{"-sink", "oracle", "-dsn", "x"}, wantInErr: `unknown -sink "oracle"`},
		{name: "sink_without_dsn", args: []string{"-sink", "sqlite"}, wantInErr: "needs -dsn or env DSN"},
		{name: "unknown_metrics_backend", args: []string{"-metrics-backend", "statsd"}, wantInErr: "unknown -metrics-backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, failingDeps(t))

			assert.Equal(t, 2, code, "stderr=%q", stderr.String())
			assert.Contains(t, stderr.String(), tc.wantInErr)
			assert.Empty(t, stdout.String())
		})
	}
}

func TestRunMain_InvalidConfigExits2(t *testing.T) {
	t.Parallel()

	deps := failingDeps(t)
	deps.loadRules = rulesFrom(t, "drop_columns: [\"\"]\n")

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), nil, &stdout, &stderr, deps)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "error: drop_columns[0]: empty column name")
	assert.Contains(t, stderr.String(), "configuration is invalid")
}

func TestRunMain_ConfigLoadErrorExits2(t *testing.T) {
	t.Parallel()

	deps := failingDeps(t)
	deps.loadRules = func(string) (config.Rules, error) {
		return config.Rules{}, errors.New("read config: no such file")
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), nil, &stdout, &stderr, deps)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "load config")
}

func TestRunMain_BadInputPathBeforeConfig(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"data.txt", " "} {
		var stdout, stderr bytes.Buffer
		code := runMain(context.Background(),
			[]string{"-input", input, "-config", "absent.yaml"},
			&stdout, &stderr, failingDeps(t))

		assert.Equal(t, 1, code, "input %q", input)
		assert.Contains(t, stderr.String(), "load input")
		assert.NotContains(t, stderr.String(), "load config")
	}
}

func TestRunMain_ValidateOnly(t *testing.T) {
	t.Parallel()

	deps := failingDeps(t)
	deps.loadRules = rulesFrom(t, sampleRules)

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-validate", "-config", "rules.yaml"}, &stdout, &stderr, deps)

	assert.Equal(t, 0, code, "stderr=%q", stderr.String())
	assert.Contains(t, stdout.String(), "configuration is valid: rules.yaml")
}

func TestRunMain_CleansAndWritesCSV(t *testing.T) {
	t.Parallel()

	in := writeInput(t)
	out := filepath.Join(t.TempDir(), "nested", "cleaned.csv")

	deps := failingDeps(t)
	deps.loadRules = rulesFrom(t, sampleRules)
	deps.initMetrics = noMetrics

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-input", in, "-output", out}, &stdout, &stderr, deps)
	require.Equal(t, 0, code, "stderr=%q", stderr.String())

	assert.Contains(t, stdout.String(), "cleaned 3 rows x 4 columns -> "+out)

	got, err := table.LoadCSV(out, table.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "sex", "fare"}, got.Names())

	age, _ := got.Column("age")
	assert.Equal(t, []any{22.0, 26.0, 30.0}, age.V)

	sex, _ := got.Column("sex")
	assert.Equal(t, []any{int64(1), int64(0), int64(1)}, sex.V)
}

func TestRunMain_TrimSpace(t *testing.T) {
	t.Parallel()

	in := filepath.Join(t.TempDir(), "padded.csv")
	require.NoError(t, os.WriteFile(in, []byte("name,sex\na,male \nb,female\nc,male\n"), 0o644))

	tests := []struct {
		name string
		args []string
		want []any
	}{
		{"kept_by_default", nil, []any{int64(2), int64(0), int64(1)}},
		{"trimmed", []string{"-trim-space"}, []any{int64(1), int64(0), int64(1)}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := filepath.Join(t.TempDir(), "cleaned.csv")
			deps := failingDeps(t)
			deps.loadRules = rulesFrom(t, "encoding: {strategy: {sex: label}}")
			deps.initMetrics = noMetrics

			args := append([]string{"-input", in, "-output", out}, tc.args...)
			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), args, &stdout, &stderr, deps)
			require.Equal(t, 0, code, "stderr=%q", stderr.String())

			got, err := table.LoadCSV(out, table.ReadOptions{})
			require.NoError(t, err)
			sex, _ := got.Column("sex")
			assert.Equal(t, tc.want, sex.V)
		})
	}
}

func TestRunMain_WritesSink(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	var gotCfg storage.Config

	deps := failingDeps(t)
	deps.loadRules = rulesFrom(t, sampleRules)
	deps.initMetrics = noMetrics
	deps.openSink = func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		gotCfg = cfg
		return repo, nil
	}

	args := []string{
		"-input", writeInput(t),
		"-output", filepath.Join(t.TempDir(), "out.csv"),
		"-sink", "SQLite3",
		"-dsn", "file:clean.db",
		"-table", "titanic_clean",
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), args, &stdout, &stderr, deps)
	require.Equal(t, 0, code, "stderr=%q", stderr.String())

	assert.Equal(t, storage.Config{Kind: "sqlite", DSN: "file:clean.db"}, gotCfg)
	assert.Equal(t, "titanic_clean", repo.name)
	assert.Equal(t, 3, repo.rows)
	assert.Equal(t, 1, repo.closed)
}

func TestRunMain_SinkDSNFromEnv(t *testing.T) {
	t.Setenv("DSN", "postgres://localhost/clean")

	var gotCfg storage.Config
	deps := failingDeps(t)
	deps.loadRules = rulesFrom(t, sampleRules)
	deps.initMetrics = noMetrics
	deps.openSink = func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		gotCfg = cfg
		return &fakeRepo{}, nil
	}

	args := []string{"-input", writeInput(t), "-output", filepath.Join(t.TempDir(), "out.csv"), "-sink", "pg"}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), args, &stdout, &stderr, deps)
	require.Equal(t, 0, code, "stderr=%q", stderr.String())
	assert.Equal(t, storage.Config{Kind: "postgres", DSN: "postgres://localhost/clean"}, gotCfg)
}

func TestRunMain_RuntimeFailuresExit1(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		rules     string
		input     func(t *testing.T) string
		sinkErr   error
		writeErr  error
		wantInErr string
	}{
		{
			name:      "missing_input",
			rules:     sampleRules,
			input:     func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.csv") },
			wantInErr: "load input",
		},
		{
			name:      "not_csv",
			rules:     sampleRules,
			input:     func(*testing.T) string { return "data.txt" },
			wantInErr: "file must be csv",
		},
		{
			name:      "stage_fails_on_missing_column",
			rules:     "scaling:\n  strategy:\n    cabin: standard\n",
			input:     writeInput,
			wantInErr: "stage scaling",
		},
		{
			name:      "sink_open_fails",
			rules:     sampleRules,
			input:     writeInput,
			sinkErr:   errors.New("connection refused"),
			wantInErr: "sink sqlite: connection refused",
		},
		{
			name:      "sink_write_fails",
			rules:     sampleRules,
			input:     writeInput,
			writeErr:  errors.New("disk full"),
			wantInErr: "sink sqlite: disk full",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps := appDeps{
				loadRules:   rulesFrom(t, tc.rules),
				initMetrics: noMetrics,
				openSink: func(context.Context, storage.Config) (storage.Repository, error) {
					if tc.sinkErr != nil {
						return nil, tc.sinkErr
					}
					return &fakeRepo{writeErr: tc.writeErr}, nil
				},
			}
			args := []string{
				"-input", tc.input(t),
				"-output", filepath.Join(t.TempDir(), "out.csv"),
				"-sink", "sqlite",
				"-dsn", ":memory:",
			}

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), args, &stdout, &stderr, deps)

			assert.Equal(t, 1, code, "stderr=%q", stderr.String())
			assert.Contains(t, stderr.String(), tc.wantInErr)
		})
	}
}

func TestRunMain_MetricsInitFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	deps := failingDeps(t)
	deps.loadRules = rulesFrom(t, sampleRules)
	deps.initMetrics = func(context.Context, string, *zap.Logger) (func(), error) {
		return nil, errors.New("no api key")
	}

	args := []string{"-input", writeInput(t), "-output", filepath.Join(t.TempDir(), "out.csv"), "-metrics-backend", "datadog"}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), args, &stdout, &stderr, deps)

	assert.Equal(t, 0, code, "stderr=%q", stderr.String())
	assert.True(t, strings.Contains(stderr.String(), "metrics init failed"), stderr.String())
}

func TestRunMain_StrictFailsOnUnknownMethod(t *testing.T) {
	t.Parallel()

	rules := "encoding:\n  strategy:\n    sex: ordinal\n"
	for _, strict := range []bool{false, true} {
		deps := failingDeps(t)
		deps.loadRules = rulesFrom(t, rules)
		deps.initMetrics = noMetrics

		args := []string{"-input", writeInput(t), "-output", filepath.Join(t.TempDir(), "out.csv")}
		if strict {
			args = append(args, "-strict")
		}

		var stdout, stderr bytes.Buffer
		code := runMain(context.Background(), args, &stdout, &stderr, deps)

		want := 0
		if strict {
			want = 1
		}
		assert.Equal(t, want, code, "strict=%v stderr=%q", strict, stderr.String())
	}
}

func TestInitMetrics_NoneIsNop(t *testing.T) {
	t.Parallel()

	cleanup, err := initMetrics(context.Background(), "none", zap.NewNop())
	require.NoError(t, err)
	cleanup()
}
