// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avtoolkit/encodarr/internal/config"
	"github.com/avtoolkit/encodarr/internal/encoder"
	"github.com/avtoolkit/encodarr/internal/notify"
	"github.com/avtoolkit/encodarr/internal/queue"
)

type webhookRecorder struct {
	mu     sync.Mutex
	titles []string
	fields []map[string]string
	srv    *httptest.Server
}

func newWebhookRecorder(t *testing.T) *webhookRecorder {
	t.Helper()
	rec := &webhookRecorder{}
	rec.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Embeds []struct {
				Title  string `json:"title"`
				Fields []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"fields"`
			} `json:"embeds"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		rec.mu.Lock()
		for _, e := range body.Embeds {
			rec.titles = append(rec.titles, e.Title)
			fields := map[string]string{}
			for _, f := range e.Fields {
				fields[f.Name] = f.Value
			}
			rec.fields = append(rec.fields, fields)
		}
		rec.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(rec.srv.Close)
	return rec
}

func (r *webhookRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.titles...)
}

func (r *webhookRecorder) fieldsOf(i int) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields[i]
}

func newTestSupervisor(t *testing.T, events config.DiscordEvents, webhookURL string) *Supervisor {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := &Supervisor{
		queue:  queue.NewManagerWithClient(client),
		logger: zerolog.Nop(),
	}
	if webhookURL != "" {
		s.notify = notify.NewDiscord(&config.DiscordConfig{
			WebhookURL: webhookURL,
			Events:     events,
		})
	}
	return s
}

func TestHandleJobEvent_RoutesNotifications(t *testing.T) {
	rec := newWebhookRecorder(t)
	s := newTestSupervisor(t, config.DefaultDiscordEvents(), rec.srv.URL)
	ctx := context.Background()

	completed := queue.NewJob("/in/a.mkv", "/out/a.mkv", "movies")
	completed.Start()
	completed.Complete(queue.ResultMetadata{
		InputSize:          1000,
		OutputSize:         500,
		EncodeDurationSecs: 120,
		VideoDurationSecs:  240,
		EncodingSpeed:      2,
	})
	s.handleJobEvent(ctx, encoder.JobEvent{Kind: encoder.EventCompleted, Job: completed})

	// A retried job's record is reset to pending with its error message
	// cleared; the failure text travels in the event.
	retried := queue.NewJob("/in/b.mkv", "/out/b.mkv", "movies")
	retried.Start()
	retried.Fail("av1an exited with code 1: boom")
	retried.Retry()
	require.Nil(t, retried.ErrorMessage)
	s.handleJobEvent(ctx, encoder.JobEvent{
		Kind:  encoder.EventRetried,
		Job:   retried,
		Error: "av1an exited with code 1: boom",
	})

	dead := queue.NewJob("/in/c.mkv", "/out/c.mkv", "movies")
	dead.Start()
	dead.DeadLetter("Exhausted 3 attempts. Last error: boom")
	s.handleJobEvent(ctx, encoder.JobEvent{Kind: encoder.EventDeadLettered, Job: dead})

	assert.Equal(t, []string{"Encode Complete", "Encode Failed", "Job Dead Lettered"}, rec.seen())
	assert.Equal(t, "av1an exited with code 1: boom", rec.fieldsOf(1)["Error"])
}

func TestRefreshGauges_QueueEmptyEdge(t *testing.T) {
	rec := newWebhookRecorder(t)
	events := config.DiscordEvents{OnQueueEmpty: true}
	s := newTestSupervisor(t, events, rec.srv.URL)
	ctx := context.Background()

	// Idle from the start: no notification.
	busy := s.refreshGauges(ctx, false)
	assert.False(t, busy)
	assert.Empty(t, rec.seen())

	job := queue.NewJob("/in/a.mkv", "/out/a.mkv", "movies")
	require.NoError(t, s.queue.Enqueue(ctx, job))

	busy = s.refreshGauges(ctx, busy)
	assert.True(t, busy)
	assert.Empty(t, rec.seen())

	// Drain the queue; the next refresh crosses the busy-to-idle edge.
	dequeued, err := s.queue.Dequeue(ctx)
	require.NoError(t, err)
	dequeued.Start()
	dequeued.Complete(queue.ResultMetadata{InputSize: 1, OutputSize: 1})
	require.NoError(t, s.queue.CompleteJob(ctx, dequeued))

	busy = s.refreshGauges(ctx, busy)
	assert.False(t, busy)
	assert.Equal(t, []string{"Queue Empty"}, rec.seen())

	// Staying idle does not notify again.
	busy = s.refreshGauges(ctx, busy)
	assert.False(t, busy)
	assert.Equal(t, []string{"Queue Empty"}, rec.seen())
}

func TestProgressLoopPersists(t *testing.T) {
	s := newTestSupervisor(t, config.DiscordEvents{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := queue.NewJob("/in/a.mkv", "/out/a.mkv", "movies")
	require.NoError(t, s.queue.Enqueue(ctx, job))

	progressCh := make(chan encoder.WorkerProgress, 1)
	go s.progressLoop(ctx, progressCh)

	progressCh <- encoder.WorkerProgress{JobID: job.ID, Percent: 42.5, Phase: encoder.PhaseEncodingVideo}

	require.Eventually(t, func() bool {
		got, err := s.queue.GetJob(ctx, job.ID)
		if err != nil || got == nil || got.Progress == nil {
			return false
		}
		return *got.Progress == 42.5
	}, 2*time.Second, 10*time.Millisecond)
}
