// Package reporter forwards unexpected errors to the operator's Discord
// webhook.
package reporter

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

// maxContent is Discord's message content limit.
const maxContent = 2000

// WebhookExecutor is the part of *discordgo.Session used to post to webhooks.
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Webhook identifies a Discord webhook.
type Webhook struct {
	ID    string
	Token string
}

// ParseWebhook extracts the id and token from a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhook(raw string) (Webhook, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Webhook{}, errors.Wrap(err, "parse webhook url")
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" {
			return Webhook{ID: parts[i+1], Token: parts[i+2]}, nil
		}
	}
	return Webhook{}, errors.Errorf("not a webhook url: %q", raw)
}

// Execute posts params through the webhook and returns the created message.
func (w Webhook) Execute(ctx context.Context, s WebhookExecutor, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	return s.WebhookExecute(w.ID, w.Token, true, params, discordgo.WithContext(ctx))
}

// Reporter posts error reports to the error_logs webhook. A Reporter with no
// webhook only logs.
type Reporter struct {
	exec   WebhookExecutor
	hook   *Webhook
	logger *slog.Logger
}

// New returns a Reporter posting to webhookURL. An empty URL disables posting.
func New(exec WebhookExecutor, webhookURL string, logger *slog.Logger) (*Reporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reporter{exec: exec, logger: logger}
	if webhookURL == "" {
		return r, nil
	}
	hook, err := ParseWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	r.hook = &hook
	return r, nil
}

// Report logs err and posts it, with its stack trace, to the webhook.
func (r *Reporter) Report(ctx context.Context, err error) {
	if err == nil {
		return
	}
	r.logger.Error("unexpected error", "error", err)
	r.send(ctx, formatReport(fmt.Sprintf("%+v", errors.WithStackIf(err))))
}

// ReportDetail posts content together with detail attached as a file.
func (r *Reporter) ReportDetail(ctx context.Context, content, filename string, detail []byte) {
	r.logger.Warn("reporting detail", "content", content, "file", filename)
	r.send(ctx, &discordgo.WebhookParams{
		Content: content,
		Files:   []*discordgo.File{{Name: filename, ContentType: "text/plain", Reader: bytes.NewReader(detail)}},
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	})
}

// formatReport wraps text in a code block, or attaches it as large.txt when
// it does not fit in a message.
func formatReport(text string) *discordgo.WebhookParams {
	if len(text) > maxContent {
		return &discordgo.WebhookParams{
			Content: "File too large",
			Files:   []*discordgo.File{{Name: "large.txt", ContentType: "text/plain", Reader: strings.NewReader(text)}},
		}
	}
	return &discordgo.WebhookParams{Content: "```go\n" + text + "\n```"}
}

func (r *Reporter) send(ctx context.Context, params *discordgo.WebhookParams) {
	if r.hook == nil || r.exec == nil {
		return
	}
	if _, err := r.hook.Execute(ctx, r.exec, params); err != nil {
		r.logger.Warn("failed to send error report", "error", err)
	}
}
