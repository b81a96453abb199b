// SPDX-License-Identifier: MIT

// Package encoder wraps the external encoding tools and runs the
// per-job pipeline.
package encoder

import (
	"fmt"
)

// SubprocessError is a failed external tool invocation: the tool
// name, its exit code, and a tail of its stderr.
type SubprocessError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, lastLine(e.Stderr))
}

// VerificationError means the produced output failed the post-encode
// probe check.
type VerificationError struct {
	Reason string
}

func (e *VerificationError) Error() string {
	return "output verification failed: " + e.Reason
}

func lastLine(s string) string {
	if s == "" {
		return "(no stderr)"
	}
	lines := splitNonEmpty(s)
	if len(lines) == 0 {
		return "(no stderr)"
	}
	return lines[len(lines)-1]
}

func splitNonEmpty(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == '\n' {
			if line := s[start:i]; line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	return out
}
