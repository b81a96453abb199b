// SPDX-License-Identifier: MIT

package encoder

import (
	"context"
	"fmt"
	"os/exec"

	xglog "github.com/avtoolkit/encodarr/internal/log"
)

// Mux combines the encoded video, the audio intermediate, and the
// non-burn-in subtitle sidecars into the final container. Per
// sidecar the language, forced flag, and default flag carry over
// from the source stream.
func Mux(ctx context.Context, video, audio string, subtitles []ExtractedSubtitle, output string) error {
	args := []string{
		"-o", output,
		"--no-audio", "--no-subtitles", video,
		"--no-video", "--no-subtitles", audio,
	}

	for _, sub := range subtitles {
		if sub.ShouldBurnIn {
			continue
		}
		if sub.Language != "" {
			args = append(args, "--language", "0:"+sub.Language)
		}
		if sub.IsForced {
			args = append(args, "--forced-display-flag", "0:yes")
		}
		if sub.IsDefault {
			args = append(args, "--default-track-flag", "0:yes")
		}
		args = append(args, sub.Path)
	}

	logger := xglog.WithComponent("mkvmerge")
	logger.Debug().Strs("args", args).Msg("running mkvmerge")

	if err := runMkvmerge(ctx, args); err != nil {
		return err
	}
	logger.Info().Str("output", output).Msg("container mux completed")
	return nil
}

// Remux rewrites a file into an MKV container without re-encoding.
func Remux(ctx context.Context, input, output string) error {
	return runMkvmerge(ctx, []string{"-o", output, input})
}

// runMkvmerge treats exit code 1 as success with warnings; only
// codes >= 2 are failures.
func runMkvmerge(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, "mkvmerge", args...)

	ring := newLineRing(64)
	cmd.Stdout = ringWriter{ring}
	cmd.Stderr = ringWriter{ring}

	err := cmd.Run()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return fmt.Errorf("mkvmerge: %w", err)
	}

	code := exitErr.ExitCode()
	if code == 1 {
		logger := xglog.WithComponent("mkvmerge")
		logger.Warn().
			Str("output", ring.Tail()).
			Msg("mkvmerge finished with warnings")
		return nil
	}
	return &SubprocessError{Tool: "mkvmerge", ExitCode: code, Stderr: ring.Tail()}
}
