// SPDX-License-Identifier: MIT

package validation

import (
	"fmt"
	"strings"
)

// FormatReport renders a result as a human-readable report for the CLI.
func FormatReport(result *Result) string {
	errors := result.Errors()
	warnings := result.Warnings()

	if len(errors) == 0 && len(warnings) == 0 {
		return "Configuration is valid."
	}

	var b strings.Builder

	if len(errors) > 0 {
		b.WriteString("\nConfig Validation Failed\n")
		b.WriteString("========================\n\n")
	}

	for _, issue := range errors {
		b.WriteString(formatIssue(issue, "ERROR"))
		b.WriteString("\n")
	}

	if len(warnings) > 0 {
		if len(errors) > 0 {
			b.WriteString("\nWarnings:\n---------\n\n")
		}
		for _, issue := range warnings {
			b.WriteString(formatIssue(issue, "WARNING"))
			b.WriteString("\n")
		}
	}

	b.WriteString("---\n")
	fmt.Fprintf(&b, "%d warning(s), %d error(s)\n", len(warnings), len(errors))
	if len(errors) > 0 {
		b.WriteString("Config rejected. Current config unchanged.\n")
	}

	return b.String()
}

func formatIssue(issue Issue, prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", prefix, issue.Path)
	fmt.Fprintf(&b, "  └─ %s\n", issue.Message)
	if issue.Suggestion != "" {
		fmt.Fprintf(&b, "     %s\n", issue.Suggestion)
	}
	return b.String()
}
