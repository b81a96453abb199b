// SPDX-License-Identifier: MIT

package validation

import (
	"strconv"
	"strings"
)

// Known x265 parameters.
var x265Params = []string{
	"preset", "tune", "crf", "qp", "bitrate", "pass", "stats", "slow-firstpass",
	"keyint", "min-keyint", "scenecut", "scenecut-bias", "hist-scenecut",
	"bframes", "b-adapt", "b-pyramid", "ref", "limit-refs",
	"deblock", "sao", "sao-non-deblock", "limit-sao",
	"aq-mode", "aq-strength", "qg-size", "cutree",
	"psy-rd", "psy-rdoq", "rdoq-level", "rd", "rskip", "rskip-edge-threshold",
	"colorprim", "transfer", "colormatrix", "chromaloc",
	"hdr10", "hdr10-opt", "dhdr10-info", "dhdr10-opt",
	"repeat-headers", "aud", "hrd", "info",
	"hash", "temporal-layers", "open-gop",
	"rc-lookahead", "lookahead-slices", "lookahead-threads",
	"pmode", "pme", "pools", "frame-threads", "wpp", "slices",
	"log-level", "csv", "csv-log-level",
	"sar", "overscan", "videoformat", "range", "master-display", "max-cll",
	"vbv-bufsize", "vbv-maxrate", "vbv-init", "crf-max", "crf-min",
	"ipratio", "pbratio", "qcomp", "qpstep", "qpmin", "qpmax",
	"cbqpoffs", "crqpoffs", "nr-intra", "nr-inter",
	"input-res", "input-depth", "input-csp", "interlace", "fps",
	"profile", "level-idc", "high-tier", "uhd-bd",
	"weightp", "weightb", "analyze-src-pics",
	"strong-intra-smoothing", "constrained-intra",
	"rect", "amp", "early-skip", "fast-intra", "b-intra",
	"cu-lossless", "tskip-fast", "rd-refine",
	"max-merge", "me", "subme", "merange", "max-tu-size", "min-cu-size", "max-cu-size",
	"dynamic-rd", "ssim-rd",
}

var x265Presets = []string{
	"ultrafast", "superfast", "veryfast", "faster", "fast",
	"medium", "slow", "slower", "veryslow", "placebo",
}

var x265Tunes = []string{
	"psnr", "ssim", "grain", "fastdecode", "zerolatency", "animation",
}

// Known x264 parameters.
var x264Params = []string{
	"preset", "tune", "profile", "level", "crf", "qp", "bitrate", "pass",
	"keyint", "min-keyint", "scenecut", "bframes", "b-adapt", "b-pyramid",
	"ref", "deblock", "aq-mode", "aq-strength", "psy-rd",
	"colorprim", "transfer", "colormatrix",
	"rc-lookahead", "mbtree", "threads", "lookahead-threads",
	"vbv-bufsize", "vbv-maxrate", "crf-max",
	"weightp", "weightb", "me", "subme", "merange",
	"direct", "trellis", "fast-pskip", "dct-decimate",
	"nr", "interlaced", "sar", "overscan", "videoformat", "range",
}

// Known SVT-AV1 parameters.
var svtAv1Params = []string{
	"preset", "crf", "qp", "keyint", "lookahead", "tile-rows", "tile-columns",
	"enable-overlays", "scd", "film-grain", "film-grain-denoise",
	"enable-qm", "qm-min", "qm-max", "hierarchical-levels",
	"pred-struct", "enable-dlf", "enable-cdef", "enable-restoration",
	"enable-tpl-la", "enable-tf",
	"aq-mode", "lp", "pin", "ss", "irefresh-type",
	"color-primaries", "transfer-characteristics", "matrix-coefficients",
	"color-range", "chroma-sample-position",
	"mastering-display", "content-light",
	"input-depth", "profile", "level", "tier", "fast-decode",
}

// ValidateEncoderParams checks a profile's raw encoder parameter string
// against the chunk encoder's known flags. Unknown flags produce
// warnings with a closest-match suggestion; bad values for flags with
// constrained domains (preset, tune, crf) produce errors. Encoders
// without a whitelist get a syntax check only.
func ValidateEncoderParams(encoder, params, path string) *Result {
	result := &Result{}
	if params == "" {
		return result
	}

	switch encoder {
	case "x265":
		validateKnownParams(params, path, "x265", x265Params, result, validateX265Value)
	case "x264":
		validateKnownParams(params, path, "x264", x264Params, result, nil)
	case "svt-av1":
		validateKnownParams(params, path, "SVT-AV1", svtAv1Params, result, nil)
	default:
		if len(parseEncoderParams(params)) == 0 && strings.TrimSpace(params) != "" {
			result.Add(Warnf(path, "Could not parse encoder parameters").
				WithSuggestion("Parameters should be in '--key value' format"))
		}
	}
	return result
}

type valueValidator func(name, value, path string, result *Result)

func validateKnownParams(params, path, label string, known []string, result *Result, checkValue valueValidator) {
	knownSet := make(map[string]struct{}, len(known))
	for _, p := range known {
		knownSet[p] = struct{}{}
	}

	for _, param := range parseEncoderParams(params) {
		if _, ok := knownSet[param.name]; !ok {
			suggestion := closestParam(param.name, known)
			result.Add(Warnf(path+"."+param.name, "Unknown %s parameter: '--%s'", label, param.name).
				WithSuggestion("Did you mean '--" + suggestion + "'?"))
			continue
		}
		if checkValue != nil && param.value != "" {
			checkValue(param.name, param.value, path, result)
		}
	}
}

func validateX265Value(name, value, path string, result *Result) {
	switch name {
	case "preset":
		if !contains(x265Presets, value) {
			result.Add(Errorf(path+".preset", "Invalid x265 preset: '%s'", value).
				WithSuggestion("Valid presets: " + strings.Join(x265Presets, ", ")))
		}
	case "tune":
		if !contains(x265Tunes, value) {
			result.Add(Errorf(path+".tune", "Invalid x265 tune: '%s'", value).
				WithSuggestion("Valid tunes: " + strings.Join(x265Tunes, ", ")))
		}
	case "crf":
		crf, err := strconv.ParseFloat(value, 64)
		if err != nil {
			result.Add(Errorf(path+".crf", "Invalid CRF value: '%s'", value))
			return
		}
		if crf < 0 || crf > 51 {
			result.Add(Errorf(path+".crf", "CRF %g is out of range", crf).
				WithSuggestion("CRF must be between 0 and 51"))
		}
	case "bframes":
		if n, err := strconv.Atoi(value); err == nil && n > 16 {
			result.Add(Warnf(path+".bframes", "bframes %d is unusually high", n).
				WithSuggestion("Typical values are 3-8"))
		}
	case "ref":
		if n, err := strconv.Atoi(value); err == nil && n > 16 {
			result.Add(Warnf(path+".ref", "ref %d is unusually high", n).
				WithSuggestion("Typical values are 3-6"))
		}
	}
}

type encoderParam struct {
	name  string
	value string
}

// parseEncoderParams tokenizes a raw CLI parameter string. Accepts
// "--name value", "--name=value", and bare "--name" flags; anything
// without a -- prefix is skipped.
func parseEncoderParams(params string) []encoderParam {
	fields := strings.Fields(params)
	var out []encoderParam
	for i := 0; i < len(fields); i++ {
		name, ok := strings.CutPrefix(fields[i], "--")
		if !ok || name == "" {
			continue
		}
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			out = append(out, encoderParam{name: name[:eq], value: name[eq+1:]})
			continue
		}
		value := ""
		if i+1 < len(fields) && !strings.HasPrefix(fields[i+1], "-") {
			value = fields[i+1]
			i++
		}
		out = append(out, encoderParam{name: name, value: value})
	}
	return out
}

// closestParam returns the known parameter nearest to input by edit
// distance. Ties resolve to the earlier entry, keeping suggestions
// deterministic.
func closestParam(input string, known []string) string {
	best := "preset"
	bestDist := -1
	for _, candidate := range known {
		d := editDistance(input, candidate)
		if bestDist < 0 || d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
