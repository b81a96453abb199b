// SPDX-License-Identifier: MIT

package encoder

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/media"
)

// ExtractedSubtitle is one subtitle sidecar file produced from the
// source.
type ExtractedSubtitle struct {
	Path         string
	StreamIndex  int
	Language     string
	IsForced     bool
	IsDefault    bool
	ShouldBurnIn bool
}

// ProcessAudio emits the audio intermediate per the track decisions.
// The ordinal output index advances per emitted track; downmix
// decisions emit the original followed by a stereo re-encode of the
// same source stream.
func ProcessAudio(ctx context.Context, input, output string, decisions []media.AudioDecision) error {
	logger := xglog.WithComponent("ffmpeg")

	args := []string{"-y", "-i", input}
	ordinal := 0

	for i := range decisions {
		d := &decisions[i]
		switch d.Action {
		case media.AudioExclude:
			continue
		case media.AudioPassthrough:
			args = append(args,
				"-map", fmt.Sprintf("0:%d", d.Stream.Index),
				fmt.Sprintf("-c:a:%d", ordinal), "copy",
			)
			ordinal++
		case media.AudioTranscode:
			args = append(args,
				"-map", fmt.Sprintf("0:%d", d.Stream.Index),
				fmt.Sprintf("-c:a:%d", ordinal), normalizeCodec(d.Codec),
				fmt.Sprintf("-b:a:%d", ordinal), d.Bitrate,
			)
			ordinal++
		}

		if d.Downmix {
			args = append(args,
				"-map", fmt.Sprintf("0:%d", d.Stream.Index),
				fmt.Sprintf("-c:a:%d", ordinal), normalizeCodec(d.DownmixCodec),
				fmt.Sprintf("-ac:%d", ordinal), "2",
				fmt.Sprintf("-b:a:%d", ordinal), d.DownmixBitrate,
			)
			ordinal++
		}
	}

	args = append(args, "-vn", output)

	logger.Debug().Strs("args", args).Msg("running ffmpeg for audio")

	if err := runTool(ctx, "ffmpeg", args); err != nil {
		return err
	}
	logger.Info().Int("tracks", ordinal).Msg("audio processing completed")
	return nil
}

// ExtractSubtitles writes each non-excluded subtitle stream to a
// sidecar in tempDir. A stream that fails to extract is logged and
// skipped; one bad track does not fail the job.
func ExtractSubtitles(ctx context.Context, input, tempDir string, decisions []media.SubtitleDecision) ([]ExtractedSubtitle, error) {
	logger := xglog.WithComponent("ffmpeg")

	var extracted []ExtractedSubtitle
	for i := range decisions {
		d := &decisions[i]
		if d.Action == media.SubtitleExclude {
			continue
		}

		stream := &d.Stream
		ext := "srt"
		if stream.IsImageBased {
			ext = "sup"
		}
		lang := stream.Language
		if lang == "" {
			lang = "und"
		}
		outFile := filepath.Join(tempDir, fmt.Sprintf("sub_%d_%s.%s", stream.Index, lang, ext))

		args := []string{
			"-y",
			"-i", input,
			"-map", fmt.Sprintf("0:%d", stream.Index),
			"-c:s", "copy",
			outFile,
		}

		if err := runTool(ctx, "ffmpeg", args); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn().Err(err).
				Int("stream_index", stream.Index).
				Msg("subtitle extraction failed, skipping track")
			continue
		}

		extracted = append(extracted, ExtractedSubtitle{
			Path:         outFile,
			StreamIndex:  stream.Index,
			Language:     stream.Language,
			IsForced:     stream.IsForced,
			IsDefault:    stream.IsDefault,
			ShouldBurnIn: d.Action == media.SubtitleBurnIn,
		})
	}

	return extracted, nil
}

// BurnSubtitles overlays one subtitle file onto the video. Image subs
// use the overlay filter; text subs use the subtitles filter with
// path escaping.
func BurnSubtitles(ctx context.Context, input, subtitle, output string, imageBased bool) error {
	args := []string{"-y", "-i", input}

	if imageBased {
		args = append(args,
			"-i", subtitle,
			"-filter_complex", "[0:v][1:s]overlay[v]",
			"-map", "[v]",
			"-map", "0:a",
			"-c:a", "copy",
		)
	} else {
		escaped := strings.ReplaceAll(subtitle, `\`, "/")
		escaped = strings.ReplaceAll(escaped, ":", `\:`)
		args = append(args,
			"-vf", fmt.Sprintf("subtitles='%s'", escaped),
			"-map", "0:a",
			"-c:a", "copy",
		)
	}

	args = append(args, output)

	if err := runTool(ctx, "ffmpeg", args); err != nil {
		return err
	}
	logger := xglog.WithComponent("ffmpeg")
	logger.Info().Msg("subtitle burn-in completed")
	return nil
}

// runTool runs a tool to completion and converts a non-zero exit into
// a SubprocessError with the stderr tail.
func runTool(ctx context.Context, tool string, args []string) error {
	cmd := exec.CommandContext(ctx, tool, args...)

	ring := newLineRing(64)
	cmd.Stderr = ringWriter{ring}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return &SubprocessError{Tool: tool, ExitCode: code, Stderr: ring.Tail()}
	}
	return nil
}

type ringWriter struct {
	ring *lineRing
}

func (w ringWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		if line != "" {
			w.ring.Add(line)
		}
	}
	return len(p), nil
}

// normalizeCodec maps friendly codec names to ffmpeg encoder names.
func normalizeCodec(codec string) string {
	switch strings.ToLower(codec) {
	case "opus":
		return "libopus"
	case "mp3":
		return "libmp3lame"
	case "vorbis":
		return "libvorbis"
	default:
		return codec
	}
}
