// SPDX-License-Identifier: MIT

package encoder

import (
	"strings"
	"sync"
)

// lineRing keeps the last N stderr lines of a subprocess for error
// reports.
type lineRing struct {
	mu    sync.Mutex
	lines []string
	head  int
	full  bool
}

func newLineRing(capacity int) *lineRing {
	if capacity < 1 {
		capacity = 50
	}
	return &lineRing{lines: make([]string, capacity)}
}

func (r *lineRing) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.head == 0 {
		r.full = true
	}
}

// Tail returns the buffered lines, oldest first, joined by newlines.
func (r *lineRing) Tail() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []string
	if r.full {
		out = append(out, r.lines[r.head:]...)
	}
	out = append(out, r.lines[:r.head]...)
	return strings.Join(out, "\n")
}
