// SPDX-License-Identifier: MIT

package encoder

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/procgroup"
)

// Progress is one parsed progress line from the chunked encoder.
// Fields other than Percent are best effort; the output format
// drifts between versions.
type Progress struct {
	Percent     float64
	Speed       string
	ETA         string
	Frame       int64
	TotalFrames int64
}

// EncodeVideo runs av1an with VMAF targeting. Parsed progress lines
// go to progressCh when non-nil; the channel is not closed. Context
// cancellation kills the whole process group.
func EncodeVideo(ctx context.Context, input, output, tempDir string, profile *config.Profile, progressCh chan<- Progress) error {
	logger := xglog.WithComponent("av1an")

	args := []string{
		"-i", input,
		"-o", output,
		"--temp", tempDir,
		"--encoder", profile.Encoder.CLIName(),
		"--target-quality", strconv.FormatFloat(profile.VMAFTarget, 'f', -1, 64),
		"--target-metric", "vmaf",
		"-w", strconv.Itoa(profile.Workers),
	}
	if profile.EncoderParams != "" {
		args = append(args, "-v", profile.EncoderParams)
	}
	// lsmash chunking handles MKV sources best; resume survives
	// interrupted runs sharing the temp dir.
	args = append(args, "--chunk-method", "lsmash", "--resume")

	logger.Info().
		Str(xglog.FieldPath, input).
		Str("output", output).
		Str(xglog.FieldEncoder, string(profile.Encoder)).
		Float64("vmaf_target", profile.VMAFTarget).
		Msg("starting video encode")

	return runWithProgress(ctx, logger, "av1an", args, progressCh)
}

// runWithProgress spawns the tool in its own process group, scans
// stderr for progress, and waits. Only the wait result decides
// success; stderr-reader failures are ignored.
func runWithProgress(ctx context.Context, logger zerolog.Logger, tool string, args []string, progressCh chan<- Progress) error {
	cmd := exec.Command(tool, args...)
	procgroup.Set(cmd)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("%s: stderr pipe: %w", tool, err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: spawn: %w", tool, err)
	}

	// Kill the group on cancellation. The goroutine ends when Wait
	// returns and done closes.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := procgroup.Kill(cmd); err != nil {
				logger.Warn().Err(err).Msg("process group kill failed")
			}
		case <-done:
		}
	}()

	ring := newLineRing(64)
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		ring.Add(line)

		if progress, ok := parseProgress(line); ok {
			if progressCh != nil {
				select {
				case progressCh <- progress:
				case <-ctx.Done():
				}
			}
		} else {
			logger.Debug().Str("line", line).Msg("tool output")
		}
	}

	err = cmd.Wait()
	close(done)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		code := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		}
		return &SubprocessError{Tool: tool, ExitCode: code, Stderr: ring.Tail()}
	}

	logger.Info().Msg("video encode completed")
	return nil
}

// parseProgress extracts what it can from one output line. A line
// without a percentage is not progress.
func parseProgress(line string) (Progress, bool) {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "encoding") && !strings.Contains(lower, "%") {
		return Progress{}, false
	}

	percent, ok := extractPercent(line)
	if !ok {
		return Progress{}, false
	}

	p := Progress{Percent: percent}
	if speed := extractAfter(line, "speed:", "x"); speed != "" {
		p.Speed = speed
	} else if fps := extractAfter(line, "fps:", ""); fps != "" {
		p.Speed = fps
	}
	if eta := extractAfter(line, "eta:", ""); eta != "" {
		p.ETA = eta
	} else if rem := extractAfter(line, "remaining:", ""); rem != "" {
		p.ETA = rem
	}
	p.Frame = extractNumberAfter(line, "frame")
	p.TotalFrames = extractNumberAfter(line, "of")
	return p, true
}

func extractPercent(line string) (float64, bool) {
	for _, part := range strings.Fields(line) {
		if num, ok := strings.CutSuffix(part, "%"); ok {
			if v, err := strconv.ParseFloat(num, 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

// extractAfter finds "prefix value" and returns the value up to the
// suffix, or up to whitespace when suffix is empty.
func extractAfter(line, prefix, suffix string) string {
	lower := strings.ToLower(line)
	idx := strings.Index(lower, prefix)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimLeft(line[idx+len(prefix):], " \t")

	if suffix == "" {
		if end := strings.IndexAny(rest, " \t"); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	end := strings.Index(rest, suffix)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end]) + suffix
}

func extractNumberAfter(line, keyword string) int64 {
	lower := strings.ToLower(line)
	idx := strings.Index(lower, keyword)
	if idx < 0 {
		return 0
	}
	for _, part := range strings.Fields(line[idx+len(keyword):]) {
		if v, err := strconv.ParseInt(part, 10, 64); err == nil {
			return v
		}
	}
	return 0
}
