// SPDX-License-Identifier: MIT

package encoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/media"
	"github.com/avtoolkit/encodarr/internal/queue"
)

// Phase names one stage of the per-job pipeline.
type Phase string

const (
	PhaseAnalyzing           Phase = "analyzing"
	PhaseExtractingSubtitles Phase = "extracting_subtitles"
	PhaseEncodingVideo       Phase = "encoding_video"
	PhaseProcessingAudio     Phase = "processing_audio"
	PhaseMuxing              Phase = "muxing"
	PhaseVerifying           Phase = "verifying"
)

// WorkerProgress is one progress update published by the worker.
type WorkerProgress struct {
	JobID   string
	Percent float64
	Phase   Phase
}

// JobEventKind classifies a finished job.
type JobEventKind int

const (
	EventCompleted JobEventKind = iota
	EventRetried
	EventDeadLettered
)

// JobEvent reports a job outcome to the supervisor. Error carries the
// failure text for retried jobs, whose record no longer holds it: Retry
// resets the job to pending and clears its error message.
type JobEvent struct {
	Kind  JobEventKind
	Job   *queue.Job
	Error string
}

const (
	idleSleep  = 5 * time.Second
	errorSleep = 10 * time.Second
)

// pipelineRunner runs the per-job encode pipeline. Swapped in tests.
type pipelineRunner interface {
	Run(ctx context.Context, job *queue.Job, profile *config.Profile, tempDir string) (*queue.ResultMetadata, error)
}

// Worker drains the queue one job at a time through the encode
// pipeline. Job failures never terminate the worker loop.
type Worker struct {
	queue      *queue.Manager
	holder     *config.Holder
	failures   *queue.FailureHandler
	progressCh chan<- WorkerProgress
	eventCh    chan<- JobEvent
	tempDir    string
	pipeline   pipelineRunner
	logger     zerolog.Logger
}

// NewWorker builds a worker. progressCh and eventCh may be nil.
func NewWorker(q *queue.Manager, holder *config.Holder, progressCh chan<- WorkerProgress, eventCh chan<- JobEvent) *Worker {
	cfg := holder.Get()
	w := &Worker{
		queue:      q,
		holder:     holder,
		failures:   queue.NewFailureHandler(q, cfg.Global.Retry.MaxAttempts),
		progressCh: progressCh,
		eventCh:    eventCh,
		tempDir:    cfg.Global.TempDir,
		logger:     xglog.WithComponent("worker"),
	}
	w.pipeline = &encodePipeline{worker: w}
	return w
}

// Run processes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("starting encode worker")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("dequeue failed")
			if !sleepCtx(ctx, errorSleep) {
				return ctx.Err()
			}
			continue
		}
		if job == nil {
			if !sleepCtx(ctx, idleSleep) {
				return ctx.Err()
			}
			continue
		}

		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) {
	logger := w.logger.With().
		Str(xglog.FieldJobID, job.ID).
		Str(xglog.FieldPath, job.InputPath).
		Logger()
	logger.Info().Msg("processing job")

	meta, err := w.runJob(ctx, job)
	if err != nil {
		if ctx.Err() != nil {
			// Shutdown mid-job: leave the record as is, recovery
			// re-enqueues it on the next start.
			logger.Warn().Msg("job interrupted by shutdown")
			return
		}
		logger.Error().Err(err).Int(xglog.FieldAttempt, job.AttemptCount).Msg("job failed")
		w.handleFailure(ctx, job, err)
		return
	}

	job.Complete(*meta)
	if err := w.queue.CompleteJob(ctx, job); err != nil {
		logger.Error().Err(err).Msg("failed to persist completed job")
		return
	}
	logger.Info().
		Float64("compression_ratio", meta.CompressionRatio()).
		Msg("job completed")
	w.emit(JobEvent{Kind: EventCompleted, Job: job})
}

func (w *Worker) runJob(ctx context.Context, job *queue.Job) (*queue.ResultMetadata, error) {
	job.Start()
	if err := w.queue.UpdateJob(ctx, job); err != nil {
		w.logger.Warn().Err(err).Str(xglog.FieldJobID, job.ID).Msg("failed to persist job start")
	}

	cfg := w.holder.Get()
	profile := cfg.ProfileByName(job.ProfileName)
	if profile == nil {
		return nil, fmt.Errorf("profile %q not found", job.ProfileName)
	}

	tempDir := filepath.Join(w.tempDir, "encode_"+job.ID)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tempDir); err != nil {
			w.logger.Warn().Err(err).Str(xglog.FieldPath, tempDir).Msg("temp dir cleanup failed")
		}
	}()

	return w.pipeline.Run(ctx, job, profile, tempDir)
}

func (w *Worker) handleFailure(ctx context.Context, job *queue.Job, jobErr error) {
	action, err := w.failures.HandleFailure(ctx, job, jobErr.Error())
	if err != nil {
		w.logger.Error().Err(err).Str(xglog.FieldJobID, job.ID).Msg("failure handling failed")
		return
	}

	switch action {
	case queue.ActionRetried:
		w.logger.Info().
			Str(xglog.FieldJobID, job.ID).
			Int(xglog.FieldAttempt, job.AttemptCount).
			Msg("job will be retried")
		w.emit(JobEvent{Kind: EventRetried, Job: job, Error: jobErr.Error()})
	case queue.ActionDeadLettered:
		w.logger.Warn().
			Str(xglog.FieldJobID, job.ID).
			Msg("job moved to dead letter queue")
		w.emit(JobEvent{Kind: EventDeadLettered, Job: job, Error: jobErr.Error()})
	}
}

func (w *Worker) emit(event JobEvent) {
	if w.eventCh == nil {
		return
	}
	select {
	case w.eventCh <- event:
	default:
		w.logger.Debug().Msg("event channel full, dropping job event")
	}
}

func (w *Worker) sendProgress(jobID string, percent float64, phase Phase) {
	if w.progressCh == nil {
		return
	}
	select {
	case w.progressCh <- WorkerProgress{JobID: jobID, Percent: percent, Phase: phase}:
	default:
	}
}

// encodePipeline is the real per-job pipeline: probe, decide, extract
// subtitles, encode video, optional burn-in, audio, mux, verify.
type encodePipeline struct {
	worker *Worker
}

func (p *encodePipeline) Run(ctx context.Context, job *queue.Job, profile *config.Profile, tempDir string) (*queue.ResultMetadata, error) {
	w := p.worker
	start := time.Now()

	w.sendProgress(job.ID, 0, PhaseAnalyzing)
	probe, err := media.Probe(ctx, job.InputPath)
	if err != nil {
		return nil, err
	}

	audioDecisions := media.DecideAudio(probe.AudioStreams, &profile.Audio)
	subtitleDecisions := media.DecideSubtitles(probe.SubtitleStreams, &profile.Subtitles)
	demoteExtraBurnIns(subtitleDecisions)

	w.sendProgress(job.ID, 5, PhaseExtractingSubtitles)
	extracted, err := ExtractSubtitles(ctx, job.InputPath, tempDir, subtitleDecisions)
	if err != nil {
		return nil, err
	}

	var burnIn *ExtractedSubtitle
	for i := range extracted {
		if extracted[i].ShouldBurnIn {
			burnIn = &extracted[i]
			break
		}
	}

	w.sendProgress(job.ID, 10, PhaseEncodingVideo)
	videoOut := filepath.Join(tempDir, "video.mkv")

	progressCh := make(chan Progress, 100)
	encodeDone := make(chan error, 1)
	go func() {
		defer close(progressCh)
		encodeDone <- EncodeVideo(ctx, job.InputPath, videoOut, filepath.Join(tempDir, "av1an"), profile, progressCh)
	}()

	// Scale encoder progress into the 10-80% band of the job.
	for progress := range progressCh {
		w.sendProgress(job.ID, 10+progress.Percent*0.7, PhaseEncodingVideo)
	}
	if err := <-encodeDone; err != nil {
		return nil, err
	}

	finalVideo := videoOut
	if burnIn != nil {
		burned := filepath.Join(tempDir, "video_burned.mkv")
		if err := BurnSubtitles(ctx, videoOut, burnIn.Path, burned, true); err != nil {
			return nil, err
		}
		finalVideo = burned
	}

	w.sendProgress(job.ID, 85, PhaseProcessingAudio)
	audioOut := filepath.Join(tempDir, "audio.mka")
	if err := ProcessAudio(ctx, job.InputPath, audioOut, audioDecisions); err != nil {
		return nil, err
	}

	w.sendProgress(job.ID, 95, PhaseMuxing)
	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := Mux(ctx, finalVideo, audioOut, extracted, job.OutputPath); err != nil {
		return nil, err
	}

	w.sendProgress(job.ID, 99, PhaseVerifying)
	outputProbe, err := media.Probe(ctx, job.OutputPath)
	if err != nil {
		return nil, &VerificationError{Reason: err.Error()}
	}
	if len(outputProbe.VideoStreams) == 0 {
		return nil, &VerificationError{Reason: "no video stream in output"}
	}

	encodeDuration := time.Since(start).Seconds()
	meta := &queue.ResultMetadata{
		InputSize:          probe.Info.Size,
		OutputSize:         outputProbe.Info.Size,
		EncodeDurationSecs: encodeDuration,
		VideoDurationSecs:  probe.Info.Duration,
		EncodingSpeed:      probe.Info.Duration / encodeDuration,
	}

	w.sendProgress(job.ID, 100, PhaseVerifying)
	return meta, nil
}

// demoteExtraBurnIns downgrades every burn-in decision after the
// first to copy. The pipeline burns exactly one track.
func demoteExtraBurnIns(decisions []media.SubtitleDecision) {
	seen := false
	for i := range decisions {
		if decisions[i].Action != media.SubtitleBurnIn {
			continue
		}
		if seen {
			decisions[i].Action = media.SubtitleCopy
		}
		seen = true
	}
}

// sleepCtx sleeps for d or until the context ends. Reports whether
// the full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
