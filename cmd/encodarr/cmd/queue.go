// SPDX-License-Identifier: MIT

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/avtoolkit/encodarr/internal/queue"
)

var queueListCmd = &cobra.Command{
	Use:   "queue-list",
	Short: "List pending and dead-lettered jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, q, err := openQueue()
		if err != nil {
			return err
		}
		defer func() { _ = q.Close() }()
		ctx := cmd.Context()

		pending, err := q.ListQueue(ctx)
		if err != nil {
			return err
		}
		processing, err := q.ProcessingCount(ctx)
		if err != nil {
			return err
		}
		dead, err := q.ListDeadLetter(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Pending: %d  In progress: %d  Dead letter: %d\n",
			len(pending), processing, len(dead))

		if len(pending) > 0 {
			fmt.Println("\nPending jobs:")
			for _, job := range pending {
				printJob(job)
			}
		}
		if len(dead) > 0 {
			fmt.Println("\nDead-lettered jobs:")
			for _, job := range dead {
				printJob(job)
			}
		}
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "queue-clear",
	Short: "Remove all pending jobs from the queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, q, err := openQueue()
		if err != nil {
			return err
		}
		defer func() { _ = q.Close() }()

		removed, err := q.ClearQueue(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d pending job(s).\n", removed)
		return nil
	},
}

var retryDeadLetterCmd = &cobra.Command{
	Use:   "retry-dead-letter <job-id>",
	Short: "Move a dead-lettered job back into the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, q, err := openQueue()
		if err != nil {
			return err
		}
		defer func() { _ = q.Close() }()

		if err := q.RetryDeadLetter(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Job %s re-queued.\n", args[0])
		return nil
	},
}

func printJob(job *queue.Job) {
	line := fmt.Sprintf("  %s  %-11s attempt=%d  %s",
		job.ID, job.Status, job.AttemptCount, filepath.Base(job.InputPath))
	if job.ErrorMessage != nil {
		line += "  error: " + *job.ErrorMessage
	}
	fmt.Println(line)
}

func init() {
	rootCmd.AddCommand(queueListCmd)
	rootCmd.AddCommand(queueClearCmd)
	rootCmd.AddCommand(retryDeadLetterCmd)
}
