// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/validation"
)

func logValidation() zerolog.Logger {
	return xglog.WithComponent("config")
}

// ValidateConfig runs all validation layers over a parsed config.
// A nil caps skips codec availability checks (used by offline
// subcommands that only need a parsed config).
func ValidateConfig(cfg *AppConfig, caps *validation.Capabilities) *validation.Result {
	result := &validation.Result{}

	validateSchema(cfg, result)
	validateSemantics(cfg, result)
	validateEncoderParams(cfg, result)
	validatePaths(cfg, result)
	if caps != nil {
		validateCodecs(cfg, caps, result)
	}

	return result
}

func validateSchema(cfg *AppConfig, result *validation.Result) {
	if len(cfg.Profiles) == 0 {
		result.Add(validation.Errorf("profiles", "at least one profile is required"))
	}

	for i, p := range cfg.Profiles {
		prefix := fmt.Sprintf("profiles[%d]", i)

		if p.Name == "" {
			result.Add(validation.Errorf(prefix+".name", "profile name is required"))
		}
		if p.InputPath == "" {
			result.Add(validation.Errorf(prefix+".input_path", "input path is required"))
		}
		if p.OutputPath == "" {
			result.Add(validation.Errorf(prefix+".output_path", "output path is required"))
		}
		if p.Encoder == "" {
			result.Add(validation.Errorf(prefix+".encoder", "encoder is required"))
		}
		if p.VMAFTarget < 0 || p.VMAFTarget > 100 {
			result.Add(validation.Errorf(prefix+".vmaf_target",
				"VMAF target %.1f is outside [0, 100]", p.VMAFTarget).
				WithSuggestion("typical targets are between 90 and 96"))
		}

		for j, rule := range p.Audio.Rules {
			rulePrefix := fmt.Sprintf("%s.audio.rules[%d]", prefix, j)
			if rule.Action == "" {
				result.Add(validation.Errorf(rulePrefix+".action", "rule action is required"))
			}
			if rule.Action == ActionTranscode && rule.Transcode == nil {
				result.Add(validation.Errorf(rulePrefix+".transcode",
					"action %q requires transcode settings", rule.Action))
			}
			if rule.Transcode != nil {
				if rule.Transcode.Codec == "" {
					result.Add(validation.Errorf(rulePrefix+".transcode.codec", "transcode codec is required"))
				}
				if !validBitrate(rule.Transcode.Bitrate) {
					result.Add(validation.Errorf(rulePrefix+".transcode.bitrate",
						"bitrate %q is not of the form <number>k", rule.Transcode.Bitrate).
						WithSuggestion(`use a value like "192k" or "640k"`))
				}
			}
			if rule.Downmix != nil && rule.Downmix.Mode != DownmixNone && !validBitrate(rule.Downmix.Bitrate) {
				result.Add(validation.Errorf(rulePrefix+".downmix.bitrate",
					"bitrate %q is not of the form <number>k", rule.Downmix.Bitrate))
			}
		}
	}
}

func validBitrate(bitrate string) bool {
	if !strings.HasSuffix(bitrate, "k") {
		return false
	}
	digits := strings.TrimSuffix(bitrate, "k")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validateSemantics(cfg *AppConfig, result *validation.Result) {
	seen := make(map[string]int)
	for i, p := range cfg.Profiles {
		prefix := fmt.Sprintf("profiles[%d]", i)

		if prev, dup := seen[p.Name]; dup {
			result.Add(validation.Errorf(prefix+".name",
				"profile name %q duplicates profiles[%d]", p.Name, prev))
		} else {
			seen[p.Name] = i
		}

		if p.InputPath != "" && p.InputPath == p.OutputPath {
			result.Add(validation.Errorf(prefix+".output_path",
				"output path must differ from input path").
				WithSuggestion("encoding into the watched folder would re-trigger the watcher"))
		}

		if p.OutputNaming.Filename == FilenameTemplate {
			result.Add(validation.Warnf(prefix+".output_naming.filename",
				"template naming is reserved; falling back to preserve behaviour"))
		}
	}
}

func validateEncoderParams(cfg *AppConfig, result *validation.Result) {
	for i, p := range cfg.Profiles {
		path := fmt.Sprintf("profiles[%d].encoder_params", i)
		result.Extend(validation.ValidateEncoderParams(string(p.Encoder), p.EncoderParams, path))
	}
}

func validatePaths(cfg *AppConfig, result *validation.Result) {
	for i, p := range cfg.Profiles {
		prefix := fmt.Sprintf("profiles[%d]", i)

		if p.InputPath != "" {
			if info, err := os.Stat(p.InputPath); err != nil {
				result.Add(validation.Errorf(prefix+".input_path",
					"input path %q is not accessible: %v", p.InputPath, err))
			} else if !info.IsDir() {
				result.Add(validation.Errorf(prefix+".input_path",
					"input path %q is not a directory", p.InputPath))
			}
		}
	}
}

func validateCodecs(cfg *AppConfig, caps *validation.Capabilities, result *validation.Result) {
	for i, p := range cfg.Profiles {
		prefix := fmt.Sprintf("profiles[%d]", i)

		if p.Encoder != "" && !caps.HasChunkEncoder(string(p.Encoder)) {
			result.Add(validation.Errorf(prefix+".encoder",
				"video encoder %q is not available", p.Encoder).
				WithSuggestion("available encoders: " + formatSet(caps.ChunkEncoders)))
		}

		for j, rule := range p.Audio.Rules {
			rulePrefix := fmt.Sprintf("%s.audio.rules[%d]", prefix, j)
			if rule.Transcode != nil && rule.Transcode.Codec != "" {
				checkAudioCodec(caps, rule.Transcode.Codec, rulePrefix+".transcode.codec", result)
			}
			if rule.Downmix != nil && rule.Downmix.Mode != DownmixNone {
				checkAudioCodec(caps, rule.Downmix.Codec, rulePrefix+".downmix.codec", result)
			}
		}
	}
}

func checkAudioCodec(caps *validation.Capabilities, codec, path string, result *validation.Result) {
	if caps.HasEncoder(validation.NormalizeCodec(codec)) {
		return
	}
	result.Add(validation.Errorf(path, "audio codec %q is not available", codec).
		WithSuggestion(suggestAudioCodec(caps)))
}

func suggestAudioCodec(caps *validation.Capabilities) string {
	common := []string{"aac", "libopus", "ac3", "flac", "libmp3lame"}
	var available []string
	for _, c := range common {
		if caps.HasEncoder(c) {
			available = append(available, c)
		}
	}
	if len(available) == 0 {
		return "no common audio encoders available"
	}
	return "available alternatives: " + strings.Join(available, ", ")
}

func formatSet(set map[string]struct{}) string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
