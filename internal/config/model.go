// SPDX-License-Identifier: MIT

// Package config holds the pipeline configuration model, the YAML
// loader, and the hot-reload holder.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// AppConfig is the root configuration structure.
type AppConfig struct {
	Global   GlobalConfig `yaml:"global" json:"global"`
	Profiles []Profile    `yaml:"profiles" json:"profiles"`
}

// GlobalConfig carries settings shared by all profiles.
type GlobalConfig struct {
	LogLevel       string             `yaml:"log_level" json:"log_level"`
	TempDir        string             `yaml:"temp_dir" json:"temp_dir"`
	Redis          RedisConfig        `yaml:"redis" json:"redis"`
	Stability      StabilityConfig    `yaml:"stability_check" json:"stability_check"`
	Retry          RetryConfig        `yaml:"retry" json:"retry"`
	Prometheus     PrometheusConfig   `yaml:"prometheus" json:"prometheus"`
	Notifications  NotificationConfig `yaml:"notifications" json:"notifications"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	DB       int    `yaml:"db" json:"db"`
	Password string `yaml:"password" json:"password"`
}

// Addr returns the host:port address for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// StabilityConfig controls write-completion detection.
type StabilityConfig struct {
	DurationSeconds     int `yaml:"duration_seconds" json:"duration_seconds"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds" json:"poll_interval_seconds"`
}

// RetryConfig controls retry behaviour for failed encodes.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (1 = no retry).
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

// PrometheusConfig controls the metrics endpoint.
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	Port    int  `yaml:"port" json:"port"`
}

// UnmarshalYAML applies the enabled default (true).
func (p *PrometheusConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw PrometheusConfig
	tmp := raw{Enabled: true}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*p = PrometheusConfig(tmp)
	return nil
}

// NotificationConfig holds outbound notification settings.
type NotificationConfig struct {
	Discord *DiscordConfig `yaml:"discord" json:"discord,omitempty"`
}

// DiscordConfig holds Discord webhook settings.
type DiscordConfig struct {
	WebhookURL       string        `yaml:"webhook_url" json:"webhook_url"`
	Events           DiscordEvents `yaml:"events" json:"events"`
	MentionOnFailure string        `yaml:"mention_on_failure" json:"mention_on_failure"`
}

func (d *DiscordConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw DiscordConfig
	tmp := raw{Events: DefaultDiscordEvents()}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*d = DiscordConfig(tmp)
	return nil
}

// DiscordEvents toggles individual notification events.
type DiscordEvents struct {
	OnEncodeSuccess bool `yaml:"on_encode_success" json:"on_encode_success"`
	OnEncodeFailure bool `yaml:"on_encode_failure" json:"on_encode_failure"`
	OnDeadLetter    bool `yaml:"on_dead_letter" json:"on_dead_letter"`
	OnQueueEmpty    bool `yaml:"on_queue_empty" json:"on_queue_empty"`
}

// DefaultDiscordEvents enables all events except queue-empty.
func DefaultDiscordEvents() DiscordEvents {
	return DiscordEvents{
		OnEncodeSuccess: true,
		OnEncodeFailure: true,
		OnDeadLetter:    true,
	}
}

// UnmarshalYAML applies the event defaults.
func (d *DiscordEvents) UnmarshalYAML(value *yaml.Node) error {
	type raw DiscordEvents
	tmp := raw(DefaultDiscordEvents())
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*d = DiscordEvents(tmp)
	return nil
}

// Profile binds a watch folder to an encoding configuration.
//
// Recursive defaults to true; use UnmarshalYAML-applied defaults rather
// than zero values when decoding.
type Profile struct {
	Name          string         `yaml:"name" json:"name"`
	InputPath     string         `yaml:"input_path" json:"input_path"`
	OutputPath    string         `yaml:"output_path" json:"output_path"`
	Recursive     bool           `yaml:"recursive" json:"recursive"`
	FilePatterns  []string       `yaml:"file_patterns" json:"file_patterns"`
	OutputNaming  OutputNaming   `yaml:"output_naming" json:"output_naming"`
	Encoder       Encoder        `yaml:"encoder" json:"encoder"`
	VMAFTarget    float64        `yaml:"vmaf_target" json:"vmaf_target"`
	EncoderParams string         `yaml:"encoder_params" json:"encoder_params"`
	Workers       int            `yaml:"workers" json:"workers"`
	Audio         AudioConfig    `yaml:"audio" json:"audio"`
	Subtitles     SubtitleConfig `yaml:"subtitles" json:"subtitles"`
}

func (p *Profile) UnmarshalYAML(value *yaml.Node) error {
	type raw Profile
	tmp := raw{Recursive: true}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*p = Profile(tmp)
	return nil
}

// OutputNaming controls output path and filename derivation.
type OutputNaming struct {
	Structure OutputStructure `yaml:"structure" json:"structure"`
	Filename  FilenameMode    `yaml:"filename" json:"filename"`
	Template  string          `yaml:"template" json:"template"`
	Suffix    string          `yaml:"suffix" json:"suffix"`
}

// Encoder identifies a supported video encoder.
type Encoder string

// Supported encoders.
const (
	EncoderX265   Encoder = "x265"
	EncoderX264   Encoder = "x264"
	EncoderSvtAv1 Encoder = "svt-av1"
	EncoderAomenc Encoder = "aomenc"
	EncoderRav1e  Encoder = "rav1e"
)

// CLIName returns the encoder name passed to the chunked encoder.
func (e Encoder) CLIName() string {
	if e == EncoderAomenc {
		return "aom"
	}
	return string(e)
}

// UnmarshalYAML rejects unknown encoder tags at parse time.
func (e *Encoder) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Encoder(s) {
	case EncoderX265, EncoderX264, EncoderSvtAv1, EncoderAomenc, EncoderRav1e:
		*e = Encoder(s)
		return nil
	}
	return fmt.Errorf("unknown encoder %q", s)
}

// OutputStructure selects mirror or flat output layout.
type OutputStructure string

const (
	StructureMirror OutputStructure = "mirror"
	StructureFlat   OutputStructure = "flat"
)

func (o *OutputStructure) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch OutputStructure(s) {
	case StructureMirror, StructureFlat:
		*o = OutputStructure(s)
		return nil
	}
	return fmt.Errorf("unknown output structure %q", s)
}

// FilenameMode selects output filename handling.
type FilenameMode string

const (
	FilenamePreserve FilenameMode = "preserve"
	FilenameTemplate FilenameMode = "template"
)

func (f *FilenameMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch FilenameMode(s) {
	case FilenamePreserve, FilenameTemplate:
		*f = FilenameMode(s)
		return nil
	}
	return fmt.Errorf("unknown filename mode %q", s)
}

// AudioConfig holds the audio track rule set for a profile.
type AudioConfig struct {
	Rules                []AudioRule   `yaml:"rules" json:"rules"`
	Fallback             TrackFallback `yaml:"fallback" json:"fallback"`
	MaxTracksPerLanguage int           `yaml:"max_tracks_per_language" json:"max_tracks_per_language"`
	OutputOrder          OutputOrder   `yaml:"output_order" json:"output_order"`
	LanguagePriority     []string      `yaml:"language_priority" json:"language_priority"`
}

// AudioRule is one ordered audio selection rule.
type AudioRule struct {
	Match             AudioMatchCriteria `yaml:"match" json:"match"`
	Action            AudioAction        `yaml:"action" json:"action"`
	PassthroughCodecs []string           `yaml:"passthrough_codecs" json:"passthrough_codecs"`
	Transcode         *TranscodeSettings `yaml:"transcode" json:"transcode,omitempty"`
	Downmix           *DownmixSettings   `yaml:"downmix" json:"downmix,omitempty"`
}

// AudioMatchCriteria matches streams; an absent field matches anything.
type AudioMatchCriteria struct {
	Language      string     `yaml:"language" json:"language"`
	Languages     []string   `yaml:"languages" json:"languages"`
	Codec         string     `yaml:"codec" json:"codec"`
	Codecs        []string   `yaml:"codecs" json:"codecs"`
	ChannelsMin   int        `yaml:"channels_min" json:"channels_min"`
	ChannelsMax   int        `yaml:"channels_max" json:"channels_max"`
	Flags         *TrackFlags `yaml:"flags" json:"flags,omitempty"`
	TitleContains string     `yaml:"title_contains" json:"title_contains"`
	Index         *int       `yaml:"index" json:"index,omitempty"`
}

// TrackFlags are tri-state flag criteria; nil means "match any".
type TrackFlags struct {
	Commentary     *bool `yaml:"commentary" json:"commentary,omitempty"`
	VisualImpaired *bool `yaml:"visual_impaired" json:"visual_impaired,omitempty"`
	Default        *bool `yaml:"default" json:"default,omitempty"`
}

// AudioAction is the action a rule applies to matched tracks.
type AudioAction string

const (
	ActionPassthrough            AudioAction = "passthrough"
	ActionTranscode              AudioAction = "transcode"
	ActionPassthroughOrTranscode AudioAction = "passthrough_or_transcode"
	ActionPassthroughLossless    AudioAction = "passthrough_lossless"
	ActionExclude                AudioAction = "exclude"
)

func (a *AudioAction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch AudioAction(s) {
	case ActionPassthrough, ActionTranscode, ActionPassthroughOrTranscode,
		ActionPassthroughLossless, ActionExclude:
		*a = AudioAction(s)
		return nil
	}
	return fmt.Errorf("unknown audio action %q", s)
}

// TranscodeSettings configure the target codec for transcode actions.
type TranscodeSettings struct {
	Codec   string `yaml:"codec" json:"codec"`
	Bitrate string `yaml:"bitrate" json:"bitrate"`
	// LosslessBitrate overrides Bitrate when the source codec is lossless.
	LosslessBitrate string `yaml:"lossless_bitrate" json:"lossless_bitrate"`
}

// DownmixSettings configure the stereo downmix track.
type DownmixSettings struct {
	Mode    DownmixMode `yaml:"mode" json:"mode"`
	Codec   string      `yaml:"codec" json:"codec"`
	Bitrate string      `yaml:"bitrate" json:"bitrate"`
}

// DownmixMode selects downmix behaviour.
type DownmixMode string

const (
	DownmixNone      DownmixMode = "none"
	DownmixReplace   DownmixMode = "replace"
	DownmixAddStereo DownmixMode = "add_stereo"
)

func (d *DownmixMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch DownmixMode(s) {
	case DownmixNone, DownmixReplace, DownmixAddStereo:
		*d = DownmixMode(s)
		return nil
	}
	return fmt.Errorf("unknown downmix mode %q", s)
}

// SubtitleConfig holds the subtitle track rule set for a profile.
type SubtitleConfig struct {
	Tracks       []SubtitleTrackConfig `yaml:"tracks" json:"tracks"`
	ImageSubs    ImageSubsMode         `yaml:"image_subs" json:"image_subs"`
	Fallback     TrackFallback         `yaml:"fallback" json:"fallback"`
	DefaultTrack *DefaultTrackConfig   `yaml:"default_track" json:"default_track,omitempty"`
}

// SubtitleTrackConfig configures handling for one subtitle language.
type SubtitleTrackConfig struct {
	Language      string `yaml:"language" json:"language"`
	IncludeForced bool   `yaml:"include_forced" json:"include_forced"`
	IncludeFull   bool   `yaml:"include_full" json:"include_full"`
	IncludeSDH    bool   `yaml:"include_sdh" json:"include_sdh"`
	BurnIn        bool   `yaml:"burn_in" json:"burn_in"`
}

// UnmarshalYAML applies the include_forced/include_full defaults (true).
func (s *SubtitleTrackConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw SubtitleTrackConfig
	tmp := raw{IncludeForced: true, IncludeFull: true}
	if err := value.Decode(&tmp); err != nil {
		return err
	}
	*s = SubtitleTrackConfig(tmp)
	return nil
}

// DefaultTrackConfig selects the default subtitle track.
type DefaultTrackConfig struct {
	Language     string `yaml:"language" json:"language"`
	PreferForced bool   `yaml:"prefer_forced" json:"prefer_forced"`
}

// ImageSubsMode selects handling for image-based subtitles.
type ImageSubsMode string

const (
	ImageSubsCopy    ImageSubsMode = "copy"
	ImageSubsBurnIn  ImageSubsMode = "burn_in"
	ImageSubsExclude ImageSubsMode = "exclude"
)

func (i *ImageSubsMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch ImageSubsMode(s) {
	case ImageSubsCopy, ImageSubsBurnIn, ImageSubsExclude:
		*i = ImageSubsMode(s)
		return nil
	}
	return fmt.Errorf("unknown image_subs mode %q", s)
}

// TrackFallback is the action for tracks matching no rule.
type TrackFallback string

const (
	FallbackExclude     TrackFallback = "exclude"
	FallbackInclude     TrackFallback = "include"
	FallbackPassthrough TrackFallback = "passthrough"
)

func (t *TrackFallback) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch TrackFallback(s) {
	case FallbackExclude, FallbackInclude, FallbackPassthrough:
		*t = TrackFallback(s)
		return nil
	}
	return fmt.Errorf("unknown fallback %q", s)
}

// OutputOrder selects track ordering in the output.
type OutputOrder string

const (
	OrderPreserve           OutputOrder = "preserve"
	OrderByLanguagePriority OutputOrder = "by_language_priority"
)

func (o *OutputOrder) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch OutputOrder(s) {
	case OrderPreserve, OrderByLanguagePriority:
		*o = OutputOrder(s)
		return nil
	}
	return fmt.Errorf("unknown output order %q", s)
}

// applyDefaults fills zero values with the documented defaults.
func (c *AppConfig) applyDefaults() {
	g := &c.Global
	if g.LogLevel == "" {
		g.LogLevel = "info"
	}
	if g.TempDir == "" {
		g.TempDir = "/tmp/encodarr"
	}
	if g.Redis.Host == "" {
		g.Redis.Host = "redis"
	}
	if g.Redis.Port == 0 {
		g.Redis.Port = 6379
	}
	if g.Stability.DurationSeconds == 0 {
		g.Stability.DurationSeconds = 30
	}
	if g.Stability.PollIntervalSeconds == 0 {
		g.Stability.PollIntervalSeconds = 5
	}
	if g.Retry.MaxAttempts == 0 {
		g.Retry.MaxAttempts = 2
	}
	if g.Prometheus.Port == 0 {
		g.Prometheus.Port = 9090
	}

	for i := range c.Profiles {
		p := &c.Profiles[i]
		if len(p.FilePatterns) == 0 {
			p.FilePatterns = []string{"*.mkv"}
		}
		if p.OutputNaming.Structure == "" {
			p.OutputNaming.Structure = StructureMirror
		}
		if p.OutputNaming.Filename == "" {
			p.OutputNaming.Filename = FilenamePreserve
		}
		if p.VMAFTarget == 0 {
			p.VMAFTarget = 93
		}
		if p.Workers == 0 {
			p.Workers = 4
		}
		if p.Audio.Fallback == "" {
			p.Audio.Fallback = FallbackExclude
		}
		if p.Audio.OutputOrder == "" {
			p.Audio.OutputOrder = OrderPreserve
		}
		if p.Subtitles.Fallback == "" {
			p.Subtitles.Fallback = FallbackExclude
		}
		if p.Subtitles.ImageSubs == "" {
			p.Subtitles.ImageSubs = ImageSubsCopy
		}
		for j := range p.Audio.Rules {
			if dm := p.Audio.Rules[j].Downmix; dm != nil {
				if dm.Codec == "" {
					dm.Codec = "aac"
				}
				if dm.Bitrate == "" {
					dm.Bitrate = "160k"
				}
			}
		}
	}
}

// ProfileByName returns the named profile, or nil.
func (c *AppConfig) ProfileByName(name string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i]
		}
	}
	return nil
}
