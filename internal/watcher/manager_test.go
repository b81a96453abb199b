// SPDX-License-Identifier: MIT

package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avtoolkit/encodarr/internal/config"
)

func movieProfile(structure config.OutputStructure, filename config.FilenameMode, suffix string) *config.Profile {
	return &config.Profile{
		Name:       "movies",
		InputPath:  "/in",
		OutputPath: "/out",
		OutputNaming: config.OutputNaming{
			Structure: structure,
			Filename:  filename,
			Suffix:    suffix,
		},
	}
}

func TestDeriveOutputPath(t *testing.T) {
	tests := []struct {
		name    string
		profile *config.Profile
		input   string
		want    string
	}{
		{
			"mirror preserve with suffix",
			movieProfile(config.StructureMirror, config.FilenamePreserve, ".av1"),
			"/in/movies/x.mkv",
			"/out/movies/x.av1.mkv",
		},
		{
			"mirror preserve top level",
			movieProfile(config.StructureMirror, config.FilenamePreserve, ".av1"),
			"/in/x.mkv",
			"/out/x.av1.mkv",
		},
		{
			"flat drops subdirectories",
			movieProfile(config.StructureFlat, config.FilenamePreserve, ""),
			"/in/a/b/c.mkv",
			"/out/c.mkv",
		},
		{
			"preserve always emits mkv",
			movieProfile(config.StructureFlat, config.FilenamePreserve, ""),
			"/in/movie.mp4",
			"/out/movie.mkv",
		},
		{
			"template keeps original filename",
			movieProfile(config.StructureMirror, config.FilenameTemplate, ".av1"),
			"/in/shows/e01.mkv",
			"/out/shows/e01.mkv",
		},
		{
			"input outside profile root",
			movieProfile(config.StructureMirror, config.FilenamePreserve, ""),
			"/elsewhere/y.mkv",
			"/out/y.mkv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveOutputPath(tt.input, tt.profile))
		})
	}
}

func TestFolderWatcher_ScanExisting(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "season1")
	require.NoError(t, os.Mkdir(sub, 0o755))

	for _, path := range []string{
		filepath.Join(root, "movie.mkv"),
		filepath.Join(sub, "e01.mkv"),
		filepath.Join(sub, "notes.txt"),
	} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	recursive, err := NewFolderWatcher(root, true, []string{"*.mkv"}, "movies", nil)
	require.NoError(t, err)
	files, err := recursive.ScanExisting()
	require.NoError(t, err)
	assert.Len(t, files, 2)

	flat, err := NewFolderWatcher(root, false, []string{"*.mkv"}, "movies", nil)
	require.NoError(t, err)
	files, err = flat.ScanExisting()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(root, "movie.mkv"), files[0].Path)
	assert.Equal(t, "movies", files[0].ProfileName)
}

func TestFolderWatcher_RejectsBadPattern(t *testing.T) {
	_, err := NewFolderWatcher("/in", true, []string{"[unclosed"}, "movies", nil)
	assert.Error(t, err)
}

func TestFolderWatcher_PatternMatch(t *testing.T) {
	w, err := NewFolderWatcher("/in", true, []string{"*.mkv", "*.mp4"}, "movies", nil)
	assert.NoError(t, err)

	assert.True(t, w.matchesPatterns("/in/sub/movie.mkv"))
	assert.True(t, w.matchesPatterns("/in/clip.mp4"))
	assert.False(t, w.matchesPatterns("/in/notes.txt"))
	assert.False(t, w.matchesPatterns("/in/partial.mkv.part"))
}
