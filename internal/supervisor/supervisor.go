// SPDX-License-Identifier: MIT

// Package supervisor wires the long-lived subsystems together: queue,
// folder watchers, encode worker, metrics server, notifier, and the
// config hot-reload loop.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/avtoolkit/encodarr/internal/config"
	"github.com/avtoolkit/encodarr/internal/encoder"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/metrics"
	"github.com/avtoolkit/encodarr/internal/notify"
	"github.com/avtoolkit/encodarr/internal/queue"
	"github.com/avtoolkit/encodarr/internal/watcher"
)

// gaugeRefreshInterval drives the periodic queue-depth gauge scan and
// the queue-empty edge detection.
const gaugeRefreshInterval = 15 * time.Second

// Options carry the run-mode flags from the CLI.
type Options struct {
	// DryRun logs what would be enqueued without touching the queue.
	DryRun bool
	// ProcessExisting scans watch folders once at startup.
	ProcessExisting bool
}

// Supervisor owns the daemon runtime lifecycle. All subsystems stop
// via context cancellation.
type Supervisor struct {
	holder  *config.Holder
	queue   *queue.Manager
	opts    Options
	notify  *notify.Discord
	metrics *metrics.Server
	logger  zerolog.Logger

	reloadSignal os.Signal
}

// New builds a supervisor around an already-validated configuration
// and an established queue connection.
func New(holder *config.Holder, q *queue.Manager, opts Options) *Supervisor {
	cfg := holder.Get()

	s := &Supervisor{
		holder:       holder,
		queue:        q,
		opts:         opts,
		logger:       xglog.WithComponent("supervisor"),
		reloadSignal: syscall.SIGHUP,
	}
	if cfg.Global.Notifications.Discord != nil {
		s.notify = notify.NewDiscord(cfg.Global.Notifications.Discord)
	}
	if cfg.Global.Prometheus.Enabled {
		s.metrics = metrics.NewServer(cfg.Global.Prometheus.Port)
	}
	return s
}

// Run starts all subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (s *Supervisor) Run(ctx context.Context) error {
	cfg := s.holder.Get()

	// Re-enqueue jobs stranded by a previous crash before the worker
	// starts pulling.
	recovered, err := s.queue.Recover(ctx)
	if err != nil {
		s.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "recovery.scan_failed").
			Msg("startup recovery scan failed")
	} else if recovered > 0 {
		s.logger.Info().
			Str(xglog.FieldEvent, "recovery.requeued").
			Int("jobs", recovered).
			Msg("re-enqueued orphaned jobs")
	}

	// Operators read the accepted config back out of Redis; losing the
	// cache write is not fatal.
	if err := config.StoreCache(ctx, s.queue.Client(), cfg); err != nil {
		s.logger.Warn().Err(err).
			Str(xglog.FieldEvent, "config.cache_failed").
			Msg("failed to cache configuration")
	}

	g, ctx := errgroup.WithContext(ctx)

	progressCh := make(chan encoder.WorkerProgress, 100)
	eventCh := make(chan encoder.JobEvent, 100)
	worker := encoder.NewWorker(s.queue, s.holder, progressCh, eventCh)

	watchMgr := watcher.NewManager(
		s.holder,
		s.queue,
		time.Duration(cfg.Global.Stability.DurationSeconds)*time.Second,
		time.Duration(cfg.Global.Stability.PollIntervalSeconds)*time.Second,
		s.opts.DryRun,
	)

	if s.metrics != nil {
		g.Go(func() error {
			return s.metrics.Run(ctx)
		})
	}

	// Config file watcher is best-effort: startup must not fail when
	// the file cannot be watched (bind mounts, missing inotify).
	g.Go(func() error {
		if err := s.holder.Watch(ctx); err != nil {
			s.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "config.watcher_start_failed").
				Msg("config file watcher unavailable, hot reload via SIGHUP only")
		}
		return nil
	})

	reloadCh := make(chan config.ReloadEvent, 1)
	s.holder.Subscribe(reloadCh)
	g.Go(func() error {
		s.reloadLoop(ctx, reloadCh, watchMgr)
		return nil
	})

	g.Go(func() error {
		s.signalLoop(ctx)
		return nil
	})

	g.Go(func() error {
		return watchMgr.Run(ctx, s.opts.ProcessExisting)
	})

	g.Go(func() error {
		return worker.Run(ctx)
	})

	g.Go(func() error {
		s.progressLoop(ctx, progressCh)
		return nil
	})

	g.Go(func() error {
		s.eventLoop(ctx, eventCh)
		return nil
	})

	g.Go(func() error {
		s.gaugeLoop(ctx)
		return nil
	})

	s.logger.Info().
		Str(xglog.FieldEvent, "supervisor.started").
		Int("profiles", len(cfg.Profiles)).
		Bool("dry_run", s.opts.DryRun).
		Msg("pipeline supervisor running")

	return g.Wait()
}

// reloadLoop applies successful config reloads to the running
// subsystems and refreshes the Redis config cache.
func (s *Supervisor) reloadLoop(ctx context.Context, reloadCh <-chan config.ReloadEvent, watchMgr *watcher.Manager) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-reloadCh:
			if ev.Err != nil {
				continue
			}
			watchMgr.HandleReload(ev.Profiles)
			if err := config.StoreCache(ctx, s.queue.Client(), s.holder.Get()); err != nil {
				s.logger.Warn().Err(err).
					Str(xglog.FieldEvent, "config.cache_failed").
					Msg("failed to refresh cached configuration")
			}
		}
	}
}

// signalLoop triggers a manual config reload on SIGHUP.
func (s *Supervisor) signalLoop(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.reloadSignal)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			s.logger.Info().
				Str(xglog.FieldEvent, "config.reload_signal").
				Msg("received reload signal, reloading config")
			_ = s.holder.Reload(ctx)
		}
	}
}

// progressLoop persists worker progress updates into the per-job
// Redis records so queue-list shows live percentages.
func (s *Supervisor) progressLoop(ctx context.Context, progressCh <-chan encoder.WorkerProgress) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-progressCh:
			job, err := s.queue.GetJob(ctx, p.JobID)
			if err != nil || job == nil {
				continue
			}
			job.UpdateProgress(p.Percent)
			if err := s.queue.UpdateJob(ctx, job); err != nil {
				s.logger.Debug().Err(err).
					Str(xglog.FieldJobID, p.JobID).
					Msg("progress persist failed")
			}
		}
	}
}

// eventLoop translates job outcomes into metrics and notifications.
func (s *Supervisor) eventLoop(ctx context.Context, eventCh <-chan encoder.JobEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eventCh:
			s.handleJobEvent(ctx, ev)
		}
	}
}

func (s *Supervisor) handleJobEvent(ctx context.Context, ev encoder.JobEvent) {
	switch ev.Kind {
	case encoder.EventCompleted:
		if ev.Job.ResultMetadata != nil {
			metrics.RecordSuccess(ev.Job.ResultMetadata)
		}
		if s.notify != nil {
			if err := s.notify.NotifyEncodeSuccess(ctx, ev.Job); err != nil {
				s.logNotifyError(err, ev.Job)
			}
		}

	case encoder.EventRetried:
		metrics.RecordFailure()
		if s.notify != nil {
			if err := s.notify.NotifyEncodeFailure(ctx, ev.Job, ev.Error); err != nil {
				s.logNotifyError(err, ev.Job)
			}
		}

	case encoder.EventDeadLettered:
		metrics.RecordFailure()
		metrics.RecordDeadLetter()
		if s.notify != nil {
			if err := s.notify.NotifyDeadLetter(ctx, ev.Job); err != nil {
				s.logNotifyError(err, ev.Job)
			}
		}
	}
}

func (s *Supervisor) logNotifyError(err error, job *queue.Job) {
	s.logger.Warn().Err(err).
		Str(xglog.FieldJobID, job.ID).
		Str(xglog.FieldEvent, "notify.failed").
		Msg("notification delivery failed")
}

// gaugeLoop refreshes the queue gauges and fires the queue-empty
// notification when the pipeline drains.
func (s *Supervisor) gaugeLoop(ctx context.Context) {
	ticker := time.NewTicker(gaugeRefreshInterval)
	defer ticker.Stop()

	wasBusy := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wasBusy = s.refreshGauges(ctx, wasBusy)
		}
	}
}

// refreshGauges updates the queue gauges once and returns whether the
// pipeline currently has work. The queue-empty notification fires only
// on the busy-to-idle transition.
func (s *Supervisor) refreshGauges(ctx context.Context, wasBusy bool) bool {
	depth, err := s.queue.QueueLength(ctx)
	if err != nil {
		return wasBusy
	}
	processing, err := s.queue.ProcessingCount(ctx)
	if err != nil {
		return wasBusy
	}
	dead, err := s.queue.DeadLetterCount(ctx)
	if err != nil {
		return wasBusy
	}

	metrics.SetQueueDepth(depth)
	metrics.SetJobsInProgress(processing)
	metrics.SetDeadLetterCount(dead)

	idle := depth == 0 && processing == 0
	if wasBusy && idle && s.notify != nil {
		if err := s.notify.NotifyQueueEmpty(ctx); err != nil {
			s.logger.Warn().Err(err).
				Str(xglog.FieldEvent, "notify.failed").
				Msg("queue-empty notification failed")
		}
	}
	return !idle
}
