package config

import (
	"fmt"
	"strings"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// Issue is one finding from Validate. Path is a dotted document path such as
// "encoding.strategy.Sex".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a rules document without touching any data.
//
// Errors are problems that will make a pipeline run fail (empty column
// names, referencing a column an earlier stage removes). Warnings flag
// entries a run will skip: unknown methods, methods that belong to another
// stage, and sections with an empty strategy.
func Validate(r Rules) []Issue {
	var out []Issue

	add := func(sev Severity, path, format string, a ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	dropped := map[string]bool{}
	for i, c := range r.DropColumns {
		if strings.TrimSpace(c) == "" {
			add(SeverityError, fmt.Sprintf("%s[%d]", StageDrop, i), "empty column name")
			continue
		}
		dropped[c] = true
	}

	// Columns removed by one-hot encoding cannot be scaled afterwards.
	onehot := map[string]bool{}

	for _, stage := range []string{StageMissingValues, StageEncoding, StageScaling} {
		sec := r.Section(stage)
		if sec == nil {
			continue
		}
		if len(sec.Strategy) == 0 {
			add(SeverityWarn, stage+".strategy", "no strategy entries; stage is skipped")
			continue
		}

		for _, a := range sec.Strategy {
			path := stage + ".strategy." + a.Column
			if strings.TrimSpace(a.Column) == "" {
				add(SeverityError, stage+".strategy", "empty column name")
				continue
			}

			// A run skips these entries before looking the column up, so
			// nothing else about them can fail.
			switch {
			case a.Method == MethodUnknown:
				add(SeverityWarn, path, "unsupported method %q; column is left untouched", a.Raw)
				continue
			case a.Method.Stage() != stage:
				add(SeverityWarn, path, "method %q belongs to %s; column is left untouched", a.Raw, a.Method.Stage())
				continue
			}

			if dropped[a.Column] {
				add(SeverityError, path, "column %q is removed by %s", a.Column, StageDrop)
			}
			if stage == StageScaling && onehot[a.Column] {
				add(SeverityError, path, "column %q is replaced by one-hot encoding", a.Column)
			}
			if stage == StageEncoding && a.Method == MethodOneHot {
				onehot[a.Column] = true
			}
		}
	}

	return out
}
