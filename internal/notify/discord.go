package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Embed colours per event.
const (
	colourOK    = 0x2ecc71
	colourError = 0xe74c3c
	colourInfo  = 0x3498db
)

// DiscordSender posts alerts to a Discord webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// NewDiscordSender creates a sender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: sendTimeout},
		now:        time.Now,
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
}

// Send posts the alert. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, event, title, message string) error {
	colour := colourInfo
	switch event {
	case EventOfferCreated:
		colour = colourOK
	case EventOfferFailed:
		colour = colourError
	}
	if err := postJSON(ctx, d.client, d.webhookURL, map[string]any{
		"embeds": []discordEmbed{{
			Title:       title,
			Description: message,
			Color:       colour,
			Timestamp:   d.now().UTC().Format(time.RFC3339),
		}},
	}); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
