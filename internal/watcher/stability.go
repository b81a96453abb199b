// SPDX-License-Identifier: MIT

package watcher

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/avtoolkit/encodarr/internal/log"
)

// ReadyFile is a tracked file whose size has held steady for the
// stability window.
type ReadyFile struct {
	Path        string
	ProfileName string
}

// StabilityChecker decides when a detected file is done being
// written: its size must remain unchanged and non-zero for the
// stability duration. Writers cannot be relied on to close files, so
// size stability over a window is the signal.
type StabilityChecker struct {
	stabilityDuration time.Duration
	pollInterval      time.Duration
	tracked           map[string]*trackedFile
	readyCh           chan<- ReadyFile
	logger            zerolog.Logger

	// now is swapped by tests.
	now func() time.Time
}

type trackedFile struct {
	lastSize    int64
	stableSince time.Time
	profileName string
}

// NewStabilityChecker creates a checker that emits ready files to the
// given channel. Not safe for concurrent use; the owning manager
// drives it from one goroutine.
func NewStabilityChecker(stabilityDuration, pollInterval time.Duration, readyCh chan<- ReadyFile) *StabilityChecker {
	return &StabilityChecker{
		stabilityDuration: stabilityDuration,
		pollInterval:      pollInterval,
		tracked:           make(map[string]*trackedFile),
		readyCh:           readyCh,
		logger:            xglog.WithComponent("stability"),
		now:               time.Now,
	}
}

// Track starts tracking a file. No-op if already tracked.
func (s *StabilityChecker) Track(path, profileName string) {
	if _, ok := s.tracked[path]; ok {
		s.logger.Debug().Str(xglog.FieldPath, path).Msg("file already tracked")
		return
	}

	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}

	s.logger.Info().
		Str(xglog.FieldPath, path).
		Int64("size", size).
		Msg("tracking file for stability")

	s.tracked[path] = &trackedFile{lastSize: size, profileName: profileName}
}

// Untrack stops tracking a file.
func (s *StabilityChecker) Untrack(path string) {
	delete(s.tracked, path)
}

// CheckAll stats every tracked file once and emits those stable for
// the full window. Emitted files leave the tracking map; a later
// write starts a fresh window via Track.
func (s *StabilityChecker) CheckAll() {
	var ready []string

	for path, tf := range s.tracked {
		info, err := os.Stat(path)
		if err != nil {
			s.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("stability stat failed")
			continue
		}

		size := info.Size()
		if size == tf.lastSize && size > 0 {
			if tf.stableSince.IsZero() {
				tf.stableSince = s.now()
				s.logger.Debug().Str(xglog.FieldPath, path).Msg("file size became stable")
			} else if s.now().Sub(tf.stableSince) >= s.stabilityDuration {
				s.logger.Info().
					Str(xglog.FieldPath, path).
					Dur("stable_for", s.stabilityDuration).
					Msg("file is ready")
				ready = append(ready, path)
			}
		} else {
			tf.lastSize = size
			tf.stableSince = time.Time{}
		}
	}

	for _, path := range ready {
		tf := s.tracked[path]
		delete(s.tracked, path)
		s.readyCh <- ReadyFile{Path: path, ProfileName: tf.profileName}
	}
}

// PollInterval returns the configured check cadence.
func (s *StabilityChecker) PollInterval() time.Duration {
	return s.pollInterval
}

// TrackedCount returns the number of files currently tracked.
func (s *StabilityChecker) TrackedCount() int {
	return len(s.tracked)
}
