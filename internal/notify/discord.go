// SPDX-License-Identifier: MIT

// Package notify sends pipeline events to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/avtoolkit/encodarr/internal/config"
	xglog "github.com/avtoolkit/encodarr/internal/log"
	"github.com/avtoolkit/encodarr/internal/queue"
)

// Embed colors.
const (
	colorSuccess    = 0x00FF00
	colorFailure    = 0xFF0000
	colorDeadLetter = 0x800000
	colorInfo       = 0x0088FF
)

const maxFieldLen = 1024

// Discord sends webhook embeds for job lifecycle events. Event
// toggles come from configuration; a disabled event is a no-op.
type Discord struct {
	webhookURL       string
	events           config.DiscordEvents
	mentionOnFailure string
	client           *http.Client
	logger           zerolog.Logger
}

// NewDiscord builds a notifier from the Discord configuration.
func NewDiscord(cfg *config.DiscordConfig) *Discord {
	return &Discord{
		webhookURL:       cfg.WebhookURL,
		events:           cfg.Events,
		mentionOnFailure: cfg.MentionOnFailure,
		client:           &http.Client{Timeout: 10 * time.Second},
		logger:           xglog.WithComponent("notify"),
	}
}

// NotifyEncodeSuccess announces a completed encode.
func (d *Discord) NotifyEncodeSuccess(ctx context.Context, job *queue.Job) error {
	if !d.events.OnEncodeSuccess {
		return nil
	}

	sizeReduction := "N/A"
	duration := "N/A"
	speed := "N/A"
	if meta := job.ResultMetadata; meta != nil {
		sizeReduction = fmt.Sprintf("%.1f%%", meta.SizeReductionPercent())
		duration = formatDuration(meta.EncodeDurationSecs)
		speed = fmt.Sprintf("%.2fx", meta.EncodingSpeed)
	}

	embed := embed{
		Title: "Encode Complete",
		Color: colorSuccess,
		Fields: []embedField{
			{Name: "File", Value: filepath.Base(job.InputPath)},
			{Name: "Profile", Value: job.ProfileName, Inline: true},
			{Name: "Size Reduction", Value: sizeReduction, Inline: true},
			{Name: "Duration", Value: duration, Inline: true},
			{Name: "Speed", Value: speed, Inline: true},
		},
	}
	return d.send(ctx, embed, "")
}

// NotifyEncodeFailure announces a failed attempt. errMsg overrides the
// job record's error text; a retried job's record no longer carries it.
func (d *Discord) NotifyEncodeFailure(ctx context.Context, job *queue.Job, errMsg string) error {
	if !d.events.OnEncodeFailure {
		return nil
	}
	if errMsg == "" {
		errMsg = errorMessage(job)
	}

	embed := embed{
		Title: "Encode Failed",
		Color: colorFailure,
		Fields: []embedField{
			{Name: "File", Value: filepath.Base(job.InputPath)},
			{Name: "Profile", Value: job.ProfileName, Inline: true},
			{Name: "Attempt", Value: fmt.Sprintf("%d", job.AttemptCount), Inline: true},
			{Name: "Error", Value: truncate(errMsg, maxFieldLen)},
		},
	}
	return d.send(ctx, embed, d.mentionOnFailure)
}

// NotifyDeadLetter announces a job exhausting its attempts.
func (d *Discord) NotifyDeadLetter(ctx context.Context, job *queue.Job) error {
	if !d.events.OnDeadLetter {
		return nil
	}

	embed := embed{
		Title: "Job Dead Lettered",
		Color: colorDeadLetter,
		Fields: []embedField{
			{Name: "File", Value: filepath.Base(job.InputPath)},
			{Name: "Job ID", Value: job.ID, Inline: true},
			{Name: "Attempts", Value: fmt.Sprintf("%d", job.AttemptCount), Inline: true},
			{Name: "Reason", Value: truncate(errorMessage(job), maxFieldLen)},
		},
	}
	return d.send(ctx, embed, d.mentionOnFailure)
}

// NotifyQueueEmpty announces that all pending work is done.
func (d *Discord) NotifyQueueEmpty(ctx context.Context) error {
	if !d.events.OnQueueEmpty {
		return nil
	}

	embed := embed{
		Title: "Queue Empty",
		Color: colorInfo,
		Fields: []embedField{
			{Name: "Status", Value: "All encoding jobs have been processed."},
		},
	}
	return d.send(ctx, embed, "")
}

type payload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []embed `json:"embeds"`
}

type embed struct {
	Title  string       `json:"title"`
	Color  int          `json:"color"`
	Fields []embedField `json:"fields"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

func (d *Discord) send(ctx context.Context, e embed, content string) error {
	body, err := json.Marshal(payload{Content: content, Embeds: []embed{e}})
	if err != nil {
		return fmt.Errorf("notify: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		d.logger.Error().
			Int("status", resp.StatusCode).
			Str("body", string(text)).
			Msg("discord webhook failed")
		return fmt.Errorf("notify: webhook: HTTP %d: %s", resp.StatusCode, text)
	}

	d.logger.Debug().Str("title", e.Title).Msg("discord notification sent")
	return nil
}

func errorMessage(job *queue.Job) string {
	if job.ErrorMessage != nil {
		return *job.ErrorMessage
	}
	return "Unknown error"
}

func formatDuration(secs float64) string {
	hours := int(secs) / 3600
	minutes := (int(secs) % 3600) / 60
	seconds := int(secs) % 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multibyte
	// character.
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
