// SPDX-License-Identifier: MIT

package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/queue"
)

// Manager owns the per-profile folder watchers and the stability
// checker, and turns ready files into queued jobs.
type Manager struct {
	holder  *config.Holder
	queue   *queue.Manager
	checker *StabilityChecker
	fileCh  chan DetectedFile
	readyCh chan ReadyFile
	dryRun  bool
	logger  zerolog.Logger
}

// NewManager builds a watcher manager. When dryRun is set, ready
// files are logged instead of enqueued.
func NewManager(holder *config.Holder, q *queue.Manager, stabilityDuration, pollInterval time.Duration, dryRun bool) *Manager {
	fileCh := make(chan DetectedFile, 100)
	readyCh := make(chan ReadyFile, 100)

	return &Manager{
		holder:  holder,
		queue:   q,
		checker: NewStabilityChecker(stabilityDuration, pollInterval, readyCh),
		fileCh:  fileCh,
		readyCh: readyCh,
		dryRun:  dryRun,
		logger:  xglog.WithComponent("watcher-manager"),
	}
}

// Run starts a watcher per profile and drives the detection loop
// until the context is cancelled. A profile whose subscription fails
// is disabled with an error log; the others continue. When
// processExisting is set, current matches are tracked at startup too.
func (m *Manager) Run(ctx context.Context, processExisting bool) error {
	cfg := m.holder.Get()

	for i := range cfg.Profiles {
		profile := &cfg.Profiles[i]
		if err := m.addWatcher(ctx, profile); err != nil {
			m.logger.Error().Err(err).
				Str(xglog.FieldProfile, profile.Name).
				Msg("watcher subscription failed, profile disabled")
			continue
		}
		if processExisting {
			m.scanExisting(profile)
		}
	}

	m.runLoop(ctx)
	return nil
}

func (m *Manager) addWatcher(ctx context.Context, profile *config.Profile) error {
	w, err := NewFolderWatcher(profile.InputPath, profile.Recursive, profile.FilePatterns, profile.Name, m.fileCh)
	if err != nil {
		return err
	}
	return w.Start(ctx)
}

func (m *Manager) scanExisting(profile *config.Profile) {
	w, err := NewFolderWatcher(profile.InputPath, profile.Recursive, profile.FilePatterns, profile.Name, m.fileCh)
	if err != nil {
		m.logger.Error().Err(err).Str(xglog.FieldProfile, profile.Name).Msg("scan setup failed")
		return
	}

	files, err := w.ScanExisting()
	if err != nil {
		m.logger.Error().Err(err).Str(xglog.FieldProfile, profile.Name).Msg("existing file scan failed")
		return
	}
	for _, f := range files {
		m.checker.Track(f.Path, f.ProfileName)
	}
}

func (m *Manager) runLoop(ctx context.Context) {
	ticker := time.NewTicker(m.checker.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case detected := <-m.fileCh:
			m.checker.Track(detected.Path, detected.ProfileName)
		case ready := <-m.readyCh:
			m.enqueueFile(ctx, ready)
		case <-ticker.C:
			m.checker.CheckAll()
		}
	}
}

func (m *Manager) enqueueFile(ctx context.Context, ready ReadyFile) {
	cfg := m.holder.Get()
	profile := cfg.ProfileByName(ready.ProfileName)
	if profile == nil {
		m.logger.Error().
			Str(xglog.FieldPath, ready.Path).
			Str(xglog.FieldProfile, ready.ProfileName).
			Msg("no profile for ready file")
		return
	}

	outputPath := DeriveOutputPath(ready.Path, profile)
	job := queue.NewJob(ready.Path, outputPath, profile.Name)

	if m.dryRun {
		m.logger.Info().
			Str(xglog.FieldPath, ready.Path).
			Str("output_path", outputPath).
			Str(xglog.FieldProfile, profile.Name).
			Msg("dry run: would enqueue job")
		return
	}

	if err := m.queue.Enqueue(ctx, job); err != nil {
		m.logger.Error().Err(err).Str(xglog.FieldPath, ready.Path).Msg("enqueue failed")
		return
	}

	m.logger.Info().
		Str(xglog.FieldJobID, job.ID).
		Str(xglog.FieldPath, ready.Path).
		Str("output_path", outputPath).
		Msg("enqueued encoding job")
}

// HandleReload reacts to a configuration reload. Watcher diffing is
// not implemented; added or removed profiles take effect on restart.
func (m *Manager) HandleReload(profiles int) {
	m.logger.Info().Int("profiles", profiles).Msg("configuration reloaded; watcher set unchanged until restart")
}

// DeriveOutputPath maps an input file to its output location per the
// profile's naming settings. Mirror structure recreates the relative
// directory layout under the output root; flat drops it. Preserve
// naming keeps the stem, appends the configured suffix, and always
// emits a .mkv container. Template naming is not implemented and
// keeps the original filename.
func DeriveOutputPath(inputPath string, profile *config.Profile) string {
	rel, err := filepath.Rel(profile.InputPath, inputPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(inputPath)
	}

	outputDir := profile.OutputPath
	if profile.OutputNaming.Structure == config.StructureMirror {
		if parent := filepath.Dir(rel); parent != "." {
			outputDir = filepath.Join(outputDir, parent)
		}
	}

	var filename string
	switch profile.OutputNaming.Filename {
	case config.FilenameTemplate:
		filename = filepath.Base(rel)
	default:
		base := filepath.Base(rel)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		filename = stem + profile.OutputNaming.Suffix + ".mkv"
	}

	return filepath.Join(outputDir, filename)
}
