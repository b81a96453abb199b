// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	FieldJobID     = "job_id"
	FieldProfile   = "profile"
	FieldComponent = "component"
	FieldEvent     = "event"
	FieldPath      = "path"
	FieldPhase     = "phase"
	FieldAttempt   = "attempt"
	FieldEncoder   = "encoder"
	FieldExitCode  = "exit_code"
)
