// SPDX-License-Identifier: MIT

// Package watcher detects finished source files: fsnotify
// subscriptions per profile, plus size-stability tracking to decide
// when a file is done being written.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	xglog "github.com/avtoolkit/encodarr/internal/log"
)

// DetectedFile is a path seen under a watched profile.
type DetectedFile struct {
	Path        string
	ProfileName string
}

// FolderWatcher watches one profile's input directory.
type FolderWatcher struct {
	watchPath   string
	recursive   bool
	patterns    []string
	profileName string
	fileCh      chan<- DetectedFile
	logger      zerolog.Logger
}

// NewFolderWatcher validates the glob patterns and builds a watcher
// for one profile.
func NewFolderWatcher(watchPath string, recursive bool, patterns []string, profileName string, fileCh chan<- DetectedFile) (*FolderWatcher, error) {
	for _, p := range patterns {
		if _, err := filepath.Match(p, "probe"); err != nil {
			return nil, fmt.Errorf("watcher %s: invalid file pattern %q: %w", profileName, p, err)
		}
	}

	return &FolderWatcher{
		watchPath:   watchPath,
		recursive:   recursive,
		patterns:    patterns,
		profileName: profileName,
		fileCh:      fileCh,
		logger: xglog.WithComponent("watcher").With().
			Str(xglog.FieldProfile, profileName).Logger(),
	}, nil
}

// Start subscribes to filesystem events and processes them until the
// context is cancelled. Subscription failure is returned; individual
// event errors are logged and skipped.
func (w *FolderWatcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher %s: %w", w.profileName, err)
	}

	if err := w.addWatches(fsw); err != nil {
		fsw.Close()
		return err
	}

	w.logger.Info().
		Str(xglog.FieldPath, w.watchPath).
		Bool("recursive", w.recursive).
		Msg("started watching folder")

	go w.handleEvents(ctx, fsw)
	return nil
}

// addWatches registers the root directory and, when recursive, every
// subdirectory. fsnotify watches are non-recursive.
func (w *FolderWatcher) addWatches(fsw *fsnotify.Watcher) error {
	if !w.recursive {
		if err := fsw.Add(w.watchPath); err != nil {
			return fmt.Errorf("watcher %s: watch %s: %w", w.profileName, w.watchPath, err)
		}
		return nil
	}

	err := filepath.WalkDir(w.watchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watcher %s: watch %s: %w", w.profileName, w.watchPath, err)
	}
	return nil
}

func (w *FolderWatcher) handleEvents(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				w.logger.Warn().Msg("watcher event channel closed")
				return
			}
			w.processEvent(ctx, fsw, event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("watcher event error")
		}
	}
}

func (w *FolderWatcher) processEvent(ctx context.Context, fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		w.logger.Debug().Err(err).Str(xglog.FieldPath, event.Name).Msg("stat after event failed")
		return
	}

	if info.IsDir() {
		// New directories under a recursive watch get their own watch.
		if w.recursive && event.Has(fsnotify.Create) {
			if err := fsw.Add(event.Name); err != nil {
				w.logger.Warn().Err(err).Str(xglog.FieldPath, event.Name).Msg("failed to watch new directory")
			}
		}
		return
	}

	if !info.Mode().IsRegular() || !w.matchesPatterns(event.Name) {
		return
	}

	w.logger.Debug().Str(xglog.FieldPath, event.Name).Msg("detected file")

	select {
	case w.fileCh <- DetectedFile{Path: event.Name, ProfileName: w.profileName}:
	case <-ctx.Done():
	}
}

// ScanExisting walks the tree once and returns every current match.
func (w *FolderWatcher) ScanExisting() ([]DetectedFile, error) {
	var files []DetectedFile

	err := filepath.WalkDir(w.watchPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn().Err(err).Str(xglog.FieldPath, path).Msg("scan error, skipping entry")
			return nil
		}
		if d.IsDir() {
			if !w.recursive && path != w.watchPath {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.matchesPatterns(path) {
			files = append(files, DetectedFile{Path: path, ProfileName: w.profileName})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watcher %s: scan %s: %w", w.profileName, w.watchPath, err)
	}

	w.logger.Info().
		Int("count", len(files)).
		Str(xglog.FieldPath, w.watchPath).
		Msg("scanned existing files")
	return files, nil
}

func (w *FolderWatcher) matchesPatterns(path string) bool {
	base := filepath.Base(path)
	for _, p := range w.patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}
