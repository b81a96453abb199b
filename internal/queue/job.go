// SPDX-License-Identifier: MIT

// Package queue implements the durable encoding job queue on Redis.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of an encoding job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusInProgress JobStatus = "in_progress"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusDeadLetter JobStatus = "dead_letter"
)

// Job is one encoding job. The JSON form is the durable wire format
// stored in the per-job Redis record.
type Job struct {
	ID           string     `json:"id"`
	InputPath    string     `json:"input_path"`
	OutputPath   string     `json:"output_path"`
	ProfileName  string     `json:"profile_name"`
	Status       JobStatus  `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at"`
	ErrorMessage *string    `json:"error_message"`
	Progress     *float64   `json:"progress"`

	ResultMetadata *ResultMetadata `json:"result_metadata"`
}

// NewJob creates a pending job for one source file.
func NewJob(inputPath, outputPath, profileName string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.NewString(),
		InputPath:   inputPath,
		OutputPath:  outputPath,
		ProfileName: profileName,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Start marks the job in progress and counts the attempt.
func (j *Job) Start() {
	now := time.Now().UTC()
	j.Status = StatusInProgress
	j.StartedAt = &now
	j.UpdatedAt = now
	j.AttemptCount++
}

// Complete marks the job finished with its result metadata.
func (j *Job) Complete(meta ResultMetadata) {
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
	progress := 100.0
	j.Progress = &progress
	j.ResultMetadata = &meta
}

// Fail records an error against the job.
func (j *Job) Fail(errMsg string) {
	j.Status = StatusFailed
	j.UpdatedAt = time.Now().UTC()
	j.ErrorMessage = &errMsg
}

// Retry resets the job to pending for another attempt.
func (j *Job) Retry() {
	j.Status = StatusPending
	j.UpdatedAt = time.Now().UTC()
	j.ErrorMessage = nil
	j.Progress = nil
}

// DeadLetter marks the job permanently failed.
func (j *Job) DeadLetter(reason string) {
	j.Status = StatusDeadLetter
	j.UpdatedAt = time.Now().UTC()
	j.ErrorMessage = &reason
}

// UpdateProgress records encoding progress, clamped to [0,100].
func (j *Job) UpdateProgress(progress float64) {
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}
	j.Progress = &progress
	j.UpdatedAt = time.Now().UTC()
}

// ResultMetadata describes a completed encode.
type ResultMetadata struct {
	InputSize          int64    `json:"input_size"`
	OutputSize         int64    `json:"output_size"`
	EncodeDurationSecs float64  `json:"encode_duration_secs"`
	VMAFScore          *float64 `json:"vmaf_score"`
	VideoDurationSecs  float64  `json:"video_duration_secs"`
	EncodingSpeed      float64  `json:"encoding_speed"`
}

// CompressionRatio is input size over output size.
func (m *ResultMetadata) CompressionRatio() float64 {
	if m.OutputSize == 0 {
		return 0
	}
	return float64(m.InputSize) / float64(m.OutputSize)
}

// SizeReductionPercent is the percentage of bytes saved.
func (m *ResultMetadata) SizeReductionPercent() float64 {
	if m.InputSize == 0 {
		return 0
	}
	return (1 - float64(m.OutputSize)/float64(m.InputSize)) * 100
}
