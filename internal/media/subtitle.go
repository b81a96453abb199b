// SPDX-License-Identifier: MIT

package media

import (
	"github.com/avtoolkit/encodarr/internal/config"
)

// SubtitleActionKind names the action chosen for one subtitle track.
type SubtitleActionKind string

const (
	SubtitleCopy    SubtitleActionKind = "copy"
	SubtitleBurnIn  SubtitleActionKind = "burn_in"
	SubtitleExclude SubtitleActionKind = "exclude"
)

// SubtitleDecision is the decision for one subtitle stream.
type SubtitleDecision struct {
	Stream SubtitleStream
	Action SubtitleActionKind
}

// DecideSubtitles maps each subtitle stream to a decision using the
// per-language track configs, the global image_subs mode, and the
// fallback policy.
func DecideSubtitles(streams []SubtitleStream, cfg *config.SubtitleConfig) []SubtitleDecision {
	decisions := make([]SubtitleDecision, 0, len(streams))
	for i := range streams {
		decisions = append(decisions, SubtitleDecision{
			Stream: streams[i],
			Action: decideSubtitle(&streams[i], cfg),
		})
	}
	return decisions
}

func decideSubtitle(stream *SubtitleStream, cfg *config.SubtitleConfig) SubtitleActionKind {
	tc := findTrackConfig(stream, cfg.Tracks)
	if tc == nil {
		switch cfg.Fallback {
		case config.FallbackInclude, config.FallbackPassthrough:
			return imageSubsAware(stream, cfg.ImageSubs)
		default:
			return SubtitleExclude
		}
	}

	if !includeTrack(stream, tc) {
		return SubtitleExclude
	}
	if tc.BurnIn && stream.IsImageBased {
		return SubtitleBurnIn
	}
	return imageSubsAware(stream, cfg.ImageSubs)
}

func findTrackConfig(stream *SubtitleStream, tracks []config.SubtitleTrackConfig) *config.SubtitleTrackConfig {
	if stream.Language == "" {
		return nil
	}
	for i := range tracks {
		if tracks[i].Language == stream.Language {
			return &tracks[i]
		}
	}
	return nil
}

func includeTrack(stream *SubtitleStream, tc *config.SubtitleTrackConfig) bool {
	if stream.IsForced {
		return tc.IncludeForced
	}
	if stream.IsHearingImpaired {
		return tc.IncludeSDH
	}
	return tc.IncludeFull
}

// imageSubsAware routes image-based streams through the global
// image_subs mode; text streams are always copied.
func imageSubsAware(stream *SubtitleStream, mode config.ImageSubsMode) SubtitleActionKind {
	if !stream.IsImageBased {
		return SubtitleCopy
	}
	switch mode {
	case config.ImageSubsBurnIn:
		return SubtitleBurnIn
	case config.ImageSubsExclude:
		return SubtitleExclude
	default:
		return SubtitleCopy
	}
}

// BurnInStream returns the first stream decided as burn-in, or nil.
// The pipeline burns at most one subtitle track.
func BurnInStream(decisions []SubtitleDecision) *SubtitleStream {
	for i := range decisions {
		if decisions[i].Action == SubtitleBurnIn {
			return &decisions[i].Stream
		}
	}
	return nil
}

// CopyStreams returns all streams decided as copy, in source order.
func CopyStreams(decisions []SubtitleDecision) []SubtitleStream {
	var out []SubtitleStream
	for i := range decisions {
		if decisions[i].Action == SubtitleCopy {
			out = append(out, decisions[i].Stream)
		}
	}
	return out
}
