// SPDX-License-Identifier: MIT

// Package media wraps ffprobe and implements the track-selection
// decision engine over its results.
package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult is the structured outcome of probing one media file.
type ProbeResult struct {
	Info            MediaInfo
	VideoStreams    []VideoStream
	AudioStreams    []AudioStream
	SubtitleStreams []SubtitleStream
}

// MediaInfo carries container-level information.
type MediaInfo struct {
	Path     string  `json:"path"`
	Format   string  `json:"format"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Bitrate  int64   `json:"bitrate"`
}

// VideoStream describes one video stream.
type VideoStream struct {
	Index     int    `json:"index"`
	Codec     string `json:"codec"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate string `json:"frame_rate"`
	BitDepth  int    `json:"bit_depth"`
	HDRFormat string `json:"hdr_format,omitempty"` // "HDR10", "HLG", "Dolby Vision", or empty
}

// AudioStream describes one audio stream.
type AudioStream struct {
	Index            int    `json:"index"`
	Codec            string `json:"codec"`
	Channels         int    `json:"channels"`
	ChannelLayout    string `json:"channel_layout,omitempty"`
	SampleRate       int    `json:"sample_rate"`
	Language         string `json:"language,omitempty"`
	Title            string `json:"title,omitempty"`
	IsDefault        bool   `json:"is_default"`
	IsCommentary     bool   `json:"is_commentary"`
	IsVisualImpaired bool   `json:"is_visual_impaired"`
}

// SubtitleStream describes one subtitle stream.
type SubtitleStream struct {
	Index             int    `json:"index"`
	Codec             string `json:"codec"`
	Language          string `json:"language,omitempty"`
	Title             string `json:"title,omitempty"`
	IsDefault         bool   `json:"is_default"`
	IsForced          bool   `json:"is_forced"`
	IsHearingImpaired bool   `json:"is_hearing_impaired"`
	IsImageBased      bool   `json:"is_image_based"`
}

// losslessCodecs are audio codecs whose decoded waveform is
// bit-identical to the encoder input.
var losslessCodecs = map[string]struct{}{
	"truehd":    {},
	"mlp":       {},
	"dts-hd ma": {},
	"dtshd":     {},
	"flac":      {},
	"alac":      {},
	"pcm_s16le": {},
	"pcm_s24le": {},
	"pcm_s32le": {},
}

// IsLosslessCodec reports whether the codec is a lossless audio format.
func IsLosslessCodec(codec string) bool {
	_, ok := losslessCodecs[strings.ToLower(codec)]
	return ok
}

// imageSubCodecs are bitmap subtitle formats that require overlay to
// render.
var imageSubCodecs = map[string]struct{}{
	"hdmv_pgs_subtitle": {},
	"dvd_subtitle":      {},
	"dvb_subtitle":      {},
}

// Probe runs ffprobe against a file and parses the JSON document into
// typed stream lists. Streams of unknown codec types are ignored.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var doc probeDocument
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("parse ffprobe output for %s: %w", path, err)
	}

	return parseProbeDocument(&doc, path), nil
}

// probeDocument mirrors the subset of ffprobe's JSON output we consume.
type probeDocument struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	Index          int    `json:"index"`
	CodecType      string `json:"codec_type"`
	CodecName      string `json:"codec_name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	RFrameRate     string `json:"r_frame_rate"`
	BitsPerRaw     string `json:"bits_per_raw_sample"`
	ColorTransfer  string `json:"color_transfer"`
	Channels       int    `json:"channels"`
	ChannelLayout  string `json:"channel_layout"`
	SampleRate     string `json:"sample_rate"`
	Tags           map[string]string `json:"tags"`
	Disposition    map[string]int    `json:"disposition"`
	SideDataList   []sideData        `json:"side_data_list"`
}

type sideData struct {
	SideDataType string `json:"side_data_type"`
}

func parseProbeDocument(doc *probeDocument, path string) *ProbeResult {
	result := &ProbeResult{
		Info: MediaInfo{
			Path:     path,
			Format:   orUnknown(doc.Format.FormatName),
			Duration: parseFloat(doc.Format.Duration),
			Size:     parseInt(doc.Format.Size),
			Bitrate:  parseInt(doc.Format.BitRate),
		},
	}

	for i := range doc.Streams {
		s := &doc.Streams[i]
		switch s.CodecType {
		case "video":
			result.VideoStreams = append(result.VideoStreams, parseVideoStream(s))
		case "audio":
			result.AudioStreams = append(result.AudioStreams, parseAudioStream(s))
		case "subtitle":
			result.SubtitleStreams = append(result.SubtitleStreams, parseSubtitleStream(s))
		}
	}

	return result
}

func parseVideoStream(s *probeStream) VideoStream {
	frameRate := s.RFrameRate
	if frameRate == "" {
		frameRate = "0/1"
	}
	bitDepth := int(parseInt(s.BitsPerRaw))
	if bitDepth == 0 {
		bitDepth = 8
	}
	return VideoStream{
		Index:     s.Index,
		Codec:     s.CodecName,
		Width:     s.Width,
		Height:    s.Height,
		FrameRate: frameRate,
		BitDepth:  bitDepth,
		HDRFormat: detectHDRFormat(s),
	}
}

// detectHDRFormat classifies the HDR variant from the transfer
// characteristics, falling back to Dolby Vision side data.
func detectHDRFormat(s *probeStream) string {
	switch s.ColorTransfer {
	case "smpte2084":
		return "HDR10"
	case "arib-std-b67":
		return "HLG"
	}
	for _, sd := range s.SideDataList {
		if strings.Contains(sd.SideDataType, "Dolby Vision") {
			return "Dolby Vision"
		}
	}
	return ""
}

func parseAudioStream(s *probeStream) AudioStream {
	title := s.Tags["title"]
	isCommentary := s.Disposition["comment"] == 1 ||
		strings.Contains(strings.ToLower(title), "commentary")

	sampleRate := int(parseInt(s.SampleRate))
	if sampleRate == 0 {
		sampleRate = 48000
	}

	return AudioStream{
		Index:            s.Index,
		Codec:            s.CodecName,
		Channels:         s.Channels,
		ChannelLayout:    s.ChannelLayout,
		SampleRate:       sampleRate,
		Language:         s.Tags["language"],
		Title:            title,
		IsDefault:        s.Disposition["default"] == 1,
		IsCommentary:     isCommentary,
		IsVisualImpaired: s.Disposition["visual_impaired"] == 1,
	}
}

func parseSubtitleStream(s *probeStream) SubtitleStream {
	_, imageBased := imageSubCodecs[s.CodecName]
	return SubtitleStream{
		Index:             s.Index,
		Codec:             s.CodecName,
		Language:          s.Tags["language"],
		Title:             s.Tags["title"],
		IsDefault:         s.Disposition["default"] == 1,
		IsForced:          s.Disposition["forced"] == 1,
		IsHearingImpaired: s.Disposition["hearing_impaired"] == 1,
		IsImageBased:      imageBased,
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
