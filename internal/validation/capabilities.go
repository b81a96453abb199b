// SPDX-License-Identifier: MIT

package validation

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Capabilities describes the encoders and decoders available on the
// host. It is detected once at startup and treated as immutable.
type Capabilities struct {
	// Encoders available to ffmpeg (audio and video encoder names).
	Encoders map[string]struct{}
	// Decoders available to ffmpeg.
	Decoders map[string]struct{}
	// ChunkEncoders are the video encoders usable by the chunked
	// encoder (x265, x264, svt-av1, aomenc, rav1e).
	ChunkEncoders map[string]struct{}
}

// HasEncoder reports whether the given ffmpeg encoder is available.
func (c *Capabilities) HasEncoder(name string) bool {
	_, ok := c.Encoders[name]
	return ok
}

// HasChunkEncoder reports whether the given video encoder is available.
func (c *Capabilities) HasChunkEncoder(name string) bool {
	_, ok := c.ChunkEncoders[name]
	return ok
}

// chunk encoder binary -> configured name
var chunkEncoderBinaries = map[string]string{
	"x265":         "x265",
	"x264":         "x264",
	"SvtAv1EncApp": "svt-av1",
	"aomenc":       "aomenc",
	"rav1e":        "rav1e",
}

// Detect queries the host for available tools. The chunked encoder
// itself must be present; individual video encoders are optional and
// checked per profile during validation.
func Detect(ctx context.Context) (*Capabilities, error) {
	encoders, err := ffmpegCodecList(ctx, "-encoders")
	if err != nil {
		return nil, err
	}
	decoders, err := ffmpegCodecList(ctx, "-decoders")
	if err != nil {
		return nil, err
	}

	if _, err := exec.LookPath("av1an"); err != nil {
		return nil, fmt.Errorf("required tool av1an not found in PATH: %w", err)
	}

	chunk := make(map[string]struct{})
	for binary, name := range chunkEncoderBinaries {
		if _, err := exec.LookPath(binary); err == nil {
			chunk[name] = struct{}{}
		}
	}

	return &Capabilities{
		Encoders:      encoders,
		Decoders:      decoders,
		ChunkEncoders: chunk,
	}, nil
}

func ffmpegCodecList(ctx context.Context, flag string) (map[string]struct{}, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg", flag, "-hide_banner").Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg %s: %w", flag, err)
	}
	return ParseCodecList(string(out)), nil
}

// ParseCodecList extracts codec names from ffmpeg -encoders/-decoders
// output. Lines look like:
//
//	A..... aac    AAC (Advanced Audio Coding)
func ParseCodecList(output string) map[string]struct{} {
	codecs := make(map[string]struct{})
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "-") || strings.Contains(trimmed, "coders:") {
			continue
		}
		// The first field is the capability flag column (V/A/S prefix).
		// Legend lines ("V..... = Video") share the prefix and are
		// filtered by the "=" column.
		fields := strings.Fields(trimmed)
		if len(fields) < 2 || fields[1] == "=" {
			continue
		}
		switch trimmed[0] {
		case 'V', 'A', 'S':
			codecs[fields[1]] = struct{}{}
		}
	}
	return codecs
}

// NormalizeCodec maps a configured codec name to its ffmpeg encoder
// name.
func NormalizeCodec(codec string) string {
	switch strings.ToLower(codec) {
	case "opus":
		return "libopus"
	case "mp3":
		return "libmp3lame"
	case "vorbis":
		return "libvorbis"
	case "eac3", "e-ac3":
		return "eac3"
	default:
		return strings.ToLower(codec)
	}
}
