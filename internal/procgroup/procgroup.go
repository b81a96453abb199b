// SPDX-License-Identifier: MIT

// Package procgroup starts subprocesses in their own process group so
// that cancellation can reap the whole tree. Chunked encoders fork
// per-chunk workers; killing only the leader leaves them running.
package procgroup

import (
	"os/exec"
)

// Set configures the command to start in a new process group. Required
// for Kill to reach the full tree.
func Set(cmd *exec.Cmd) {
	set(cmd)
}

// Kill terminates the command's process group. Safe to call on a
// command that never started or has already exited.
func Kill(cmd *exec.Cmd) error {
	return kill(cmd)
}
