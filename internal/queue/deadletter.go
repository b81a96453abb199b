// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"fmt"
)

// FailureAction reports how a failed job was routed.
type FailureAction int

const (
	// ActionRetried means the job went back to the front of the
	// pending list for another attempt.
	ActionRetried FailureAction = iota
	// ActionDeadLettered means the job exhausted its attempts.
	ActionDeadLettered
)

// FailureHandler routes failed jobs to retry or dead-letter based on
// the attempt budget.
type FailureHandler struct {
	queue       *Manager
	maxAttempts int
}

// NewFailureHandler creates a handler with the configured attempt cap.
func NewFailureHandler(queue *Manager, maxAttempts int) *FailureHandler {
	return &FailureHandler{queue: queue, maxAttempts: maxAttempts}
}

// HandleFailure records the error on the job, then either re-queues it
// or dead-letters it once max attempts are exhausted.
func (h *FailureHandler) HandleFailure(ctx context.Context, job *Job, errMsg string) (FailureAction, error) {
	job.Fail(errMsg)

	if job.AttemptCount < h.maxAttempts {
		job.Retry()
		if err := h.queue.RetryJob(ctx, job); err != nil {
			return ActionRetried, err
		}
		return ActionRetried, nil
	}

	job.DeadLetter(fmt.Sprintf("Exhausted %d attempts. Last error: %s", h.maxAttempts, errMsg))
	if err := h.queue.DeadLetter(ctx, job); err != nil {
		return ActionDeadLettered, err
	}
	return ActionDeadLettered, nil
}
