// Package logging builds the zap loggers used by the command-line drivers.
// Output is logfmt so it stays readable on a terminal and greppable in CI.
package logging

import (
	"io"
	"os"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logfmt logger writing to w (os.Stderr when nil). Debug
// entries are only emitted when verbose is set.
func New(w io.Writer, verbose bool) *zap.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	config := zap.NewDevelopmentEncoderConfig()
	return zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(config),
		zapcore.AddSync(w),
		level,
	))
}
