// SPDX-License-Identifier: MIT

package media

import (
	"strings"

	"github.com/avtoolkit/encodarr/internal/config"
)

// AudioActionKind names the action chosen for one audio track.
type AudioActionKind string

const (
	AudioPassthrough AudioActionKind = "passthrough"
	AudioTranscode   AudioActionKind = "transcode"
	AudioExclude     AudioActionKind = "exclude"
)

// AudioDecision is the decision for one audio stream. When Downmix is
// true a stereo re-encode of the same source track is emitted after
// the primary output.
type AudioDecision struct {
	Stream AudioStream

	Action  AudioActionKind
	Codec   string // transcode target, empty for passthrough
	Bitrate string

	Downmix        bool
	DownmixCodec   string
	DownmixBitrate string

	// MatchedRule is the index of the rule that produced this decision,
	// or -1 when the fallback applied.
	MatchedRule int
}

// DecideAudio maps each audio stream to a decision using the first
// matching rule, the per-language track cap, and the fallback policy.
func DecideAudio(streams []AudioStream, cfg *config.AudioConfig) []AudioDecision {
	decisions := make([]AudioDecision, 0, len(streams))
	langCounts := make(map[string]int)

	for i := range streams {
		stream := &streams[i]

		ruleIdx, rule := matchAudioRule(stream, cfg.Rules)
		if rule == nil {
			decisions = append(decisions, AudioDecision{
				Stream:      *stream,
				Action:      fallbackAction(cfg.Fallback),
				MatchedRule: -1,
			})
			continue
		}

		d := buildAudioDecision(stream, rule, ruleIdx)

		if d.Action != AudioExclude && cfg.MaxTracksPerLanguage > 0 && stream.Language != "" {
			if langCounts[stream.Language] >= cfg.MaxTracksPerLanguage {
				d = AudioDecision{Stream: *stream, Action: AudioExclude, MatchedRule: ruleIdx}
			} else {
				langCounts[stream.Language]++
			}
		}

		decisions = append(decisions, d)
	}

	return decisions
}

func fallbackAction(fb config.TrackFallback) AudioActionKind {
	if fb == config.FallbackExclude {
		return AudioExclude
	}
	return AudioPassthrough
}

func matchAudioRule(stream *AudioStream, rules []config.AudioRule) (int, *config.AudioRule) {
	for i := range rules {
		if matchesAudioCriteria(stream, &rules[i].Match) {
			return i, &rules[i]
		}
	}
	return -1, nil
}

// matchesAudioCriteria reports whether every present criterion matches
// the stream. An absent criterion matches any value.
func matchesAudioCriteria(stream *AudioStream, c *config.AudioMatchCriteria) bool {
	if c.Language != "" && stream.Language != c.Language {
		return false
	}
	if len(c.Languages) > 0 {
		if stream.Language == "" || !containsString(c.Languages, stream.Language) {
			return false
		}
	}
	if c.Codec != "" && !strings.EqualFold(stream.Codec, c.Codec) {
		return false
	}
	if len(c.Codecs) > 0 && !containsFold(c.Codecs, stream.Codec) {
		return false
	}
	if c.ChannelsMin > 0 && stream.Channels < c.ChannelsMin {
		return false
	}
	if c.ChannelsMax > 0 && stream.Channels > c.ChannelsMax {
		return false
	}
	if c.Flags != nil && !matchesTrackFlags(stream, c.Flags) {
		return false
	}
	if c.TitleContains != "" {
		if stream.Title == "" || !strings.Contains(strings.ToLower(stream.Title), strings.ToLower(c.TitleContains)) {
			return false
		}
	}
	if c.Index != nil && stream.Index != *c.Index {
		return false
	}
	return true
}

func matchesTrackFlags(stream *AudioStream, flags *config.TrackFlags) bool {
	if flags.Commentary != nil && stream.IsCommentary != *flags.Commentary {
		return false
	}
	if flags.VisualImpaired != nil && stream.IsVisualImpaired != *flags.VisualImpaired {
		return false
	}
	if flags.Default != nil && stream.IsDefault != *flags.Default {
		return false
	}
	return true
}

func buildAudioDecision(stream *AudioStream, rule *config.AudioRule, ruleIdx int) AudioDecision {
	d := baseAudioDecision(stream, rule)
	d.Stream = *stream
	d.MatchedRule = ruleIdx

	if d.Action != AudioExclude && rule.Downmix != nil && rule.Downmix.Mode != config.DownmixNone && stream.Channels > 2 {
		d.Downmix = true
		d.DownmixCodec = rule.Downmix.Codec
		d.DownmixBitrate = rule.Downmix.Bitrate
	}

	return d
}

func baseAudioDecision(stream *AudioStream, rule *config.AudioRule) AudioDecision {
	switch rule.Action {
	case config.ActionExclude:
		return AudioDecision{Action: AudioExclude}
	case config.ActionTranscode:
		return transcodeDecision(stream, rule.Transcode, true)
	case config.ActionPassthroughOrTranscode:
		if containsFold(rule.PassthroughCodecs, stream.Codec) {
			return AudioDecision{Action: AudioPassthrough}
		}
		return transcodeDecision(stream, rule.Transcode, true)
	case config.ActionPassthroughLossless:
		if IsLosslessCodec(stream.Codec) {
			return AudioDecision{Action: AudioPassthrough}
		}
		return transcodeDecision(stream, rule.Transcode, false)
	default:
		return AudioDecision{Action: AudioPassthrough}
	}
}

// transcodeDecision builds a transcode action from the rule settings,
// falling back to passthrough when no settings are present. When
// useLossless is set, lossless source codecs use the rule's
// lossless_bitrate if configured.
func transcodeDecision(stream *AudioStream, tc *config.TranscodeSettings, useLossless bool) AudioDecision {
	if tc == nil {
		return AudioDecision{Action: AudioPassthrough}
	}
	bitrate := tc.Bitrate
	if useLossless && tc.LosslessBitrate != "" && IsLosslessCodec(stream.Codec) {
		bitrate = tc.LosslessBitrate
	}
	return AudioDecision{Action: AudioTranscode, Codec: tc.Codec, Bitrate: bitrate}
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
