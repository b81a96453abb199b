// SPDX-License-Identifier: MIT

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEncoderParamsClean(t *testing.T) {
	result := ValidateEncoderParams("x265", "--preset slow --crf 22 --bframes 8 --sao", "profiles[0].encoder_params")
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings())

	result = ValidateEncoderParams("x265", "", "profiles[0].encoder_params")
	assert.True(t, result.IsValid())
}

func TestValidateEncoderParamsTypoSuggestion(t *testing.T) {
	result := ValidateEncoderParams("x265", "--presett slow", "profiles[0].encoder_params")
	require.Len(t, result.Warnings(), 1)
	w := result.Warnings()[0]
	assert.Equal(t, "profiles[0].encoder_params.presett", w.Path)
	assert.Contains(t, w.Message, "Unknown x265 parameter: '--presett'")
	assert.Equal(t, "Did you mean '--preset'?", w.Suggestion)
	assert.True(t, result.IsValid(), "unknown flags warn, not block")
}

func TestValidateEncoderParamsBadPreset(t *testing.T) {
	result := ValidateEncoderParams("x265", "--preset turbo", "profiles[0].encoder_params")
	require.Len(t, result.Errors(), 1)
	e := result.Errors()[0]
	assert.Contains(t, e.Message, "Invalid x265 preset: 'turbo'")
	assert.Contains(t, e.Suggestion, "ultrafast")
	assert.Contains(t, e.Suggestion, "placebo")
}

func TestValidateEncoderParamsBadTune(t *testing.T) {
	result := ValidateEncoderParams("x265", "--tune film", "profiles[0].encoder_params")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "Invalid x265 tune: 'film'")
}

func TestValidateEncoderParamsCRFRange(t *testing.T) {
	result := ValidateEncoderParams("x265", "--crf 63", "profiles[0].encoder_params")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "CRF 63 is out of range")
	assert.Equal(t, "CRF must be between 0 and 51", result.Errors()[0].Suggestion)

	result = ValidateEncoderParams("x265", "--crf abc", "profiles[0].encoder_params")
	require.Len(t, result.Errors(), 1)
	assert.Contains(t, result.Errors()[0].Message, "Invalid CRF value: 'abc'")

	result = ValidateEncoderParams("x265", "--crf=20.5", "profiles[0].encoder_params")
	assert.True(t, result.IsValid())
}

func TestValidateEncoderParamsHighCounts(t *testing.T) {
	result := ValidateEncoderParams("x265", "--bframes 20 --ref 24", "profiles[0].encoder_params")
	require.Len(t, result.Warnings(), 2)
	assert.Contains(t, result.Warnings()[0].Message, "bframes 20 is unusually high")
	assert.Equal(t, "Typical values are 3-8", result.Warnings()[0].Suggestion)
	assert.Contains(t, result.Warnings()[1].Message, "ref 24 is unusually high")
	assert.Equal(t, "Typical values are 3-6", result.Warnings()[1].Suggestion)
	assert.True(t, result.IsValid())
}

func TestValidateEncoderParamsOtherEncoders(t *testing.T) {
	result := ValidateEncoderParams("x264", "--mbtree --presett fast", "p")
	require.Len(t, result.Warnings(), 1)
	assert.Contains(t, result.Warnings()[0].Message, "Unknown x264 parameter: '--presett'")

	result = ValidateEncoderParams("svt-av1", "--film-grain 8 --tiles 2", "p")
	require.Len(t, result.Warnings(), 1)
	assert.Contains(t, result.Warnings()[0].Message, "Unknown SVT-AV1 parameter: '--tiles'")

	// Encoders without a whitelist get a syntax check only.
	result = ValidateEncoderParams("rav1e", "--speed 4", "p")
	assert.True(t, result.IsValid())
	assert.Empty(t, result.Warnings())

	result = ValidateEncoderParams("aomenc", "not cli params", "p")
	require.Len(t, result.Warnings(), 1)
	assert.Contains(t, result.Warnings()[0].Message, "Could not parse encoder parameters")
}

func TestParseEncoderParams(t *testing.T) {
	parsed := parseEncoderParams("--preset slow --crf=22 --sao --ref 4")
	require.Len(t, parsed, 4)
	assert.Equal(t, encoderParam{name: "preset", value: "slow"}, parsed[0])
	assert.Equal(t, encoderParam{name: "crf", value: "22"}, parsed[1])
	assert.Equal(t, encoderParam{name: "sao", value: ""}, parsed[2])
	assert.Equal(t, encoderParam{name: "ref", value: "4"}, parsed[3])
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("preset", "preset"))
	assert.Equal(t, 1, editDistance("presett", "preset"))
	assert.Equal(t, 4, editDistance("crf", "tune"))
	assert.Equal(t, 4, editDistance("", "tune"))
}
