// SPDX-License-Identifier: MIT

// Package validation provides the configuration validation primitives:
// issues, aggregated results, report formatting, and system capability
// detection.
package validation

import "fmt"

// Severity classifies a validation issue.
type Severity int

const (
	// SeverityError blocks configuration loading.
	SeverityError Severity = iota
	// SeverityWarning is logged but allows loading.
	SeverityWarning
)

// Issue is a single validation finding.
type Issue struct {
	Severity   Severity
	Path       string // config field path, e.g. "profiles[0].audio.rules[2].codec"
	Message    string
	Suggestion string
}

// Errorf creates an error-level issue.
func Errorf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Warnf creates a warning-level issue.
func Warnf(path, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Path: path, Message: fmt.Sprintf(format, args...)}
}

// WithSuggestion returns a copy of the issue carrying a fix suggestion.
func (i Issue) WithSuggestion(s string) Issue {
	i.Suggestion = s
	return i
}

// Result aggregates issues from all validation layers.
type Result struct {
	issues []Issue
}

// Add appends an issue.
func (r *Result) Add(issue Issue) {
	r.issues = append(r.issues, issue)
}

// Extend merges another result into this one.
func (r *Result) Extend(other *Result) {
	r.issues = append(r.issues, other.issues...)
}

// IsValid reports whether the result contains no errors.
func (r *Result) IsValid() bool {
	return r.ErrorCount() == 0
}

// Errors returns the error-level issues.
func (r *Result) Errors() []Issue {
	var out []Issue
	for _, i := range r.issues {
		if i.Severity == SeverityError {
			out = append(out, i)
		}
	}
	return out
}

// Warnings returns the warning-level issues.
func (r *Result) Warnings() []Issue {
	var out []Issue
	for _, i := range r.issues {
		if i.Severity == SeverityWarning {
			out = append(out, i)
		}
	}
	return out
}

// ErrorCount returns the number of errors.
func (r *Result) ErrorCount() int {
	return len(r.Errors())
}
