// SPDX-License-Identifier: MIT

package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avtoolkit/encodarr/internal/config"
)

func TestDecideSubtitles_BurnInSelection(t *testing.T) {
	streams := []SubtitleStream{
		{Index: 4, Codec: "hdmv_pgs_subtitle", Language: "eng", IsForced: true, IsImageBased: true},
		{Index: 5, Codec: "hdmv_pgs_subtitle", Language: "eng", IsForced: true, IsImageBased: true},
	}
	cfg := &config.SubtitleConfig{
		Tracks: []config.SubtitleTrackConfig{
			{Language: "eng", IncludeForced: true, IncludeFull: true, BurnIn: true},
		},
		ImageSubs: config.ImageSubsCopy,
		Fallback:  config.FallbackExclude,
	}

	decisions := DecideSubtitles(streams, cfg)
	require.Len(t, decisions, 2)

	// Both streams decide burn_in; the pipeline consumes only the first.
	assert.Equal(t, SubtitleBurnIn, decisions[0].Action)
	burn := BurnInStream(decisions)
	require.NotNil(t, burn)
	assert.Equal(t, 4, burn.Index)
}

func TestDecideSubtitles_IncludeFlags(t *testing.T) {
	cfg := &config.SubtitleConfig{
		Tracks: []config.SubtitleTrackConfig{
			{Language: "eng", IncludeForced: true, IncludeFull: false, IncludeSDH: false},
		},
		ImageSubs: config.ImageSubsCopy,
		Fallback:  config.FallbackExclude,
	}

	streams := []SubtitleStream{
		{Index: 1, Codec: "subrip", Language: "eng", IsForced: true},
		{Index: 2, Codec: "subrip", Language: "eng", IsHearingImpaired: true},
		{Index: 3, Codec: "subrip", Language: "eng"},
	}

	decisions := DecideSubtitles(streams, cfg)
	require.Len(t, decisions, 3)
	assert.Equal(t, SubtitleCopy, decisions[0].Action)
	assert.Equal(t, SubtitleExclude, decisions[1].Action)
	assert.Equal(t, SubtitleExclude, decisions[2].Action)
}

func TestDecideSubtitles_ImageSubsModes(t *testing.T) {
	stream := []SubtitleStream{{Index: 1, Codec: "dvd_subtitle", Language: "eng", IsImageBased: true}}
	track := []config.SubtitleTrackConfig{{Language: "eng", IncludeForced: true, IncludeFull: true}}

	tests := []struct {
		mode config.ImageSubsMode
		want SubtitleActionKind
	}{
		{config.ImageSubsCopy, SubtitleCopy},
		{config.ImageSubsBurnIn, SubtitleBurnIn},
		{config.ImageSubsExclude, SubtitleExclude},
	}
	for _, tt := range tests {
		cfg := &config.SubtitleConfig{Tracks: track, ImageSubs: tt.mode, Fallback: config.FallbackExclude}
		decisions := DecideSubtitles(stream, cfg)
		require.Len(t, decisions, 1)
		assert.Equal(t, tt.want, decisions[0].Action, "mode %s", tt.mode)
	}
}

func TestDecideSubtitles_Fallback(t *testing.T) {
	streams := []SubtitleStream{
		{Index: 1, Codec: "subrip", Language: "ger"},
		{Index: 2, Codec: "dvb_subtitle", Language: "fra", IsImageBased: true},
	}

	include := &config.SubtitleConfig{ImageSubs: config.ImageSubsExclude, Fallback: config.FallbackInclude}
	decisions := DecideSubtitles(streams, include)
	assert.Equal(t, SubtitleCopy, decisions[0].Action)
	assert.Equal(t, SubtitleExclude, decisions[1].Action)

	exclude := &config.SubtitleConfig{ImageSubs: config.ImageSubsCopy, Fallback: config.FallbackExclude}
	for _, d := range DecideSubtitles(streams, exclude) {
		assert.Equal(t, SubtitleExclude, d.Action)
	}
}

func TestCopyStreams(t *testing.T) {
	decisions := []SubtitleDecision{
		{Stream: SubtitleStream{Index: 1}, Action: SubtitleCopy},
		{Stream: SubtitleStream{Index: 2}, Action: SubtitleExclude},
		{Stream: SubtitleStream{Index: 3}, Action: SubtitleCopy},
	}
	copies := CopyStreams(decisions)
	require.Len(t, copies, 2)
	assert.Equal(t, 1, copies[0].Index)
	assert.Equal(t, 3, copies[1].Index)
}
