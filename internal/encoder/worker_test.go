// SPDX-License-Identifier: MIT

package encoder

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avtoolkit/encodarr/internal/config"
	"github.com/avtoolkit/encodarr/internal/media"
	"github.com/avtoolkit/encodarr/internal/queue"
)

// scriptedPipeline fails the first n runs, then succeeds.
type scriptedPipeline struct {
	failuresLeft int
	runs         int
}

func (p *scriptedPipeline) Run(_ context.Context, _ *queue.Job, _ *config.Profile, _ string) (*queue.ResultMetadata, error) {
	p.runs++
	if p.failuresLeft > 0 {
		p.failuresLeft--
		return nil, &SubprocessError{Tool: "av1an", ExitCode: 1, Stderr: "chunk 3 failed"}
	}
	return &queue.ResultMetadata{
		InputSize:          1000,
		OutputSize:         500,
		EncodeDurationSecs: 60,
		VideoDurationSecs:  120,
		EncodingSpeed:      2,
	}, nil
}

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{
		Global: config.GlobalConfig{
			TempDir: t.TempDir(),
			Retry:   config.RetryConfig{MaxAttempts: 2},
		},
		Profiles: []config.Profile{{
			Name:       "movies",
			InputPath:  "/in",
			OutputPath: "/out",
			Encoder:    config.EncoderSvtAv1,
			VMAFTarget: 93,
			Workers:    4,
		}},
	}
	return cfg
}

func newTestWorker(t *testing.T, pipeline pipelineRunner) (*Worker, *queue.Manager, chan JobEvent) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewManagerWithClient(client)

	holder := config.NewHolder(testConfig(t), "", nil)
	events := make(chan JobEvent, 10)

	w := NewWorker(q, holder, nil, events)
	w.pipeline = pipeline
	return w, q, events
}

func TestWorker_RetryThenSucceed(t *testing.T) {
	pipeline := &scriptedPipeline{failuresLeft: 1}
	w, q, events := newTestWorker(t, pipeline)
	ctx := context.Background()

	job := queue.NewJob("/in/movie.mkv", "/out/movie.mkv", "movies")
	require.NoError(t, q.Enqueue(ctx, job))

	// Attempt 1 fails, job is retried.
	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	w.processJob(ctx, got)

	ev := <-events
	assert.Equal(t, EventRetried, ev.Kind)
	assert.Equal(t, "av1an exited with code 1: chunk 3 failed", ev.Error)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, stored.Status)
	assert.Equal(t, 1, stored.AttemptCount)
	assert.Nil(t, stored.ErrorMessage)

	// Attempt 2 succeeds.
	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	w.processJob(ctx, got)

	ev = <-events
	assert.Equal(t, EventCompleted, ev.Kind)

	stored, err = q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.AttemptCount)
	assert.Nil(t, stored.ErrorMessage)
	assert.Equal(t, 2, pipeline.runs)
}

func TestWorker_DeadLetterAfterMaxAttempts(t *testing.T) {
	pipeline := &scriptedPipeline{failuresLeft: 99}
	w, q, events := newTestWorker(t, pipeline)
	ctx := context.Background()

	job := queue.NewJob("/in/movie.mkv", "/out/movie.mkv", "movies")
	require.NoError(t, q.Enqueue(ctx, job))

	for attempt := 1; attempt <= 2; attempt++ {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		w.processJob(ctx, got)
	}

	ev := <-events
	assert.Equal(t, EventRetried, ev.Kind)
	ev = <-events
	assert.Equal(t, EventDeadLettered, ev.Kind)
	assert.Equal(t, "av1an exited with code 1: chunk 3 failed", ev.Error)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusDeadLetter, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "Exhausted 2 attempts.")

	dead, err := q.ListDeadLetter(ctx)
	require.NoError(t, err)
	require.Len(t, dead, 1)

	pending, err := q.ListQueue(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestWorker_UnknownProfileFailsJob(t *testing.T) {
	w, q, events := newTestWorker(t, &scriptedPipeline{})
	ctx := context.Background()

	job := queue.NewJob("/in/movie.mkv", "/out/movie.mkv", "no-such-profile")
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	w.processJob(ctx, got)

	ev := <-events
	assert.Equal(t, EventRetried, ev.Kind)
}

func TestSubprocessErrorMessage(t *testing.T) {
	err := &SubprocessError{Tool: "av1an", ExitCode: 1, Stderr: "line one\nchunk 3 failed"}
	assert.Equal(t, "av1an exited with code 1: chunk 3 failed", err.Error())

	var target *SubprocessError
	assert.True(t, errors.As(error(err), &target))
}

func TestDemoteExtraBurnIns(t *testing.T) {
	decisions := []media.SubtitleDecision{
		{Stream: media.SubtitleStream{Index: 2, Language: "eng", IsForced: true, IsImageBased: true}, Action: media.SubtitleBurnIn},
		{Stream: media.SubtitleStream{Index: 3, Language: "eng"}, Action: media.SubtitleCopy},
		{Stream: media.SubtitleStream{Index: 4, Language: "ger", IsForced: true, IsImageBased: true}, Action: media.SubtitleBurnIn},
	}

	demoteExtraBurnIns(decisions)

	assert.Equal(t, media.SubtitleBurnIn, decisions[0].Action)
	assert.Equal(t, media.SubtitleCopy, decisions[1].Action)
	assert.Equal(t, media.SubtitleCopy, decisions[2].Action)
}
