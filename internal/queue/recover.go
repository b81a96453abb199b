// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"fmt"
	"strings"

	xglog "github.com/avtoolkit/encodarr/internal/log"
)

// Recover scans all job records at startup and re-enqueues any job
// that claims to be pending or in progress but is referenced by no
// collection. A crash between the pending-list pop and the in-flight
// set add leaves exactly this kind of orphan. Returns the number of
// jobs re-enqueued.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	logger := m.logger

	var recovered int
	iter := m.client.Scan(ctx, 0, jobPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := strings.TrimPrefix(iter.Val(), jobPrefix)

		job, err := m.GetJob(ctx, id)
		if err != nil {
			return recovered, err
		}
		if job == nil || (job.Status != StatusPending && job.Status != StatusInProgress) {
			continue
		}

		tracked, err := m.isTracked(ctx, id)
		if err != nil {
			return recovered, err
		}
		if tracked {
			continue
		}

		job.Retry()
		if err := m.writeJob(ctx, job); err != nil {
			return recovered, err
		}
		if err := m.client.RPush(ctx, queueKey, id).Err(); err != nil {
			return recovered, fmt.Errorf("queue: recover %s: %w: %w", id, ErrConnection, err)
		}

		logger.Warn().
			Str(xglog.FieldJobID, id).
			Str(xglog.FieldPath, job.InputPath).
			Msg("re-enqueued orphaned job")
		recovered++
	}
	if err := iter.Err(); err != nil {
		return recovered, fmt.Errorf("queue: recovery scan: %w: %w", ErrConnection, err)
	}

	return recovered, nil
}

// isTracked reports whether the ID appears in the pending list, the
// in-flight set, or the dead-letter list.
func (m *Manager) isTracked(ctx context.Context, id string) (bool, error) {
	inFlight, err := m.client.SIsMember(ctx, processingKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("queue: recovery check %s: %w: %w", id, ErrConnection, err)
	}
	if inFlight {
		return true, nil
	}

	for _, key := range []string{queueKey, deadLetterKey} {
		ids, err := m.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return false, fmt.Errorf("queue: recovery check %s: %w: %w", id, ErrConnection, err)
		}
		for _, candidate := range ids {
			if candidate == id {
				return true, nil
			}
		}
	}
	return false, nil
}
