// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avtoolkit/encodarr/internal/validation"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// minimalConfig returns a loadable config with real directories so the
// path checks pass.
func minimalConfig(t *testing.T) string {
	t.Helper()
	in := t.TempDir()
	out := t.TempDir()
	return fmt.Sprintf(`
global:
  redis:
    host: localhost
profiles:
  - name: movies
    input_path: %s
    output_path: %s
    encoder: svt-av1
    subtitles:
      tracks:
        - language: eng
`, in, out)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig(t)))
	require.NoError(t, err)

	g := cfg.Global
	assert.Equal(t, "info", g.LogLevel)
	assert.Equal(t, "/tmp/encodarr", g.TempDir)
	assert.Equal(t, "localhost:6379", g.Redis.Addr())
	assert.Equal(t, 30, g.Stability.DurationSeconds)
	assert.Equal(t, 5, g.Stability.PollIntervalSeconds)
	assert.Equal(t, 2, g.Retry.MaxAttempts)
	assert.Equal(t, 9090, g.Prometheus.Port)

	require.Len(t, cfg.Profiles, 1)
	p := cfg.Profiles[0]
	assert.True(t, p.Recursive)
	assert.Equal(t, []string{"*.mkv"}, p.FilePatterns)
	assert.Equal(t, StructureMirror, p.OutputNaming.Structure)
	assert.Equal(t, FilenamePreserve, p.OutputNaming.Filename)
	assert.InDelta(t, 93.0, p.VMAFTarget, 0.001)
	assert.Equal(t, 4, p.Workers)
	assert.Equal(t, FallbackExclude, p.Audio.Fallback)
	assert.Equal(t, ImageSubsCopy, p.Subtitles.ImageSubs)

	// Subtitle track include flags default to true.
	require.Len(t, p.Subtitles.Tracks, 1)
	assert.True(t, p.Subtitles.Tracks[0].IncludeForced)
	assert.True(t, p.Subtitles.Tracks[0].IncludeFull)
	assert.False(t, p.Subtitles.Tracks[0].IncludeSDH)
}

func TestLoadRejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   string
		wantErr string
	}{
		{"encoder", "encoder", "h264", "unknown encoder"},
		{"fallback", "audio: {fallback", "keep}", "unknown fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := fmt.Sprintf(`
profiles:
  - name: movies
    input_path: /in
    output_path: /out
    %s: %s
`, tt.field, tt.value)
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrRead)
}

func TestValidateConfigSchemaErrors(t *testing.T) {
	in := t.TempDir()

	cfg := &AppConfig{
		Profiles: []Profile{
			{
				Name:       "movies",
				InputPath:  in,
				OutputPath: in,
				Encoder:    EncoderSvtAv1,
				VMAFTarget: 150,
				Audio: AudioConfig{
					Rules: []AudioRule{
						{
							Action:    ActionTranscode,
							Transcode: &TranscodeSettings{Codec: "opus", Bitrate: "fast"},
						},
					},
				},
			},
			{Name: "movies", InputPath: in, OutputPath: t.TempDir(), Encoder: EncoderSvtAv1, VMAFTarget: 93},
		},
	}

	result := ValidateConfig(cfg, nil)
	assert.False(t, result.IsValid())

	paths := make(map[string]bool)
	for _, issue := range result.Errors() {
		paths[issue.Path] = true
	}
	assert.True(t, paths["profiles[0].output_path"], "same input and output must be rejected")
	assert.True(t, paths["profiles[0].vmaf_target"])
	assert.True(t, paths["profiles[0].audio.rules[0].transcode.bitrate"])
	assert.True(t, paths["profiles[1].name"], "duplicate profile name must be rejected")
}

func TestValidateConfigEncoderParams(t *testing.T) {
	in := t.TempDir()

	cfg := &AppConfig{
		Profiles: []Profile{
			{
				Name:          "movies",
				InputPath:     in,
				OutputPath:    t.TempDir(),
				Encoder:       EncoderX265,
				VMAFTarget:    93,
				EncoderParams: "--preset turbo --presett slow",
			},
		},
	}

	result := ValidateConfig(cfg, nil)
	assert.False(t, result.IsValid())

	require.Len(t, result.Errors(), 1)
	assert.Equal(t, "profiles[0].encoder_params.preset", result.Errors()[0].Path)
	assert.Contains(t, result.Errors()[0].Message, "Invalid x265 preset: 'turbo'")

	require.Len(t, result.Warnings(), 1)
	assert.Equal(t, "profiles[0].encoder_params.presett", result.Warnings()[0].Path)
	assert.Equal(t, "Did you mean '--preset'?", result.Warnings()[0].Suggestion)
}

func TestValidateConfigCodecAvailability(t *testing.T) {
	caps := &validation.Capabilities{
		Encoders:      map[string]struct{}{"aac": {}},
		ChunkEncoders: map[string]struct{}{"x265": {}},
	}

	in := t.TempDir()
	cfg := &AppConfig{
		Profiles: []Profile{
			{
				Name:       "movies",
				InputPath:  in,
				OutputPath: t.TempDir(),
				Encoder:    EncoderSvtAv1,
				VMAFTarget: 93,
				Audio: AudioConfig{
					Rules: []AudioRule{
						{
							Action:    ActionTranscode,
							Transcode: &TranscodeSettings{Codec: "opus", Bitrate: "192k"},
						},
					},
				},
			},
		},
	}

	result := ValidateConfig(cfg, caps)
	require.Len(t, result.Errors(), 2)
	assert.Equal(t, "profiles[0].encoder", result.Errors()[0].Path)
	assert.Contains(t, result.Errors()[0].Suggestion, "x265")
	assert.Equal(t, "profiles[0].audio.rules[0].transcode.codec", result.Errors()[1].Path)
	assert.Contains(t, result.Errors()[1].Suggestion, "aac")
}

func TestValidBitrate(t *testing.T) {
	assert.True(t, validBitrate("192k"))
	assert.True(t, validBitrate("640k"))
	assert.False(t, validBitrate("192"))
	assert.False(t, validBitrate("k"))
	assert.False(t, validBitrate("19.2k"))
	assert.False(t, validBitrate(""))
}
