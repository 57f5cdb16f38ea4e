package notify

import (
	"context"
	"net/http"
)

// discordContentLimit is Discord's maximum message length.
const discordContentLimit = 2000

// DiscordNotifier sends notifications to a Discord webhook.
type DiscordNotifier struct {
	WebhookURL string
	Client     *http.Client
}

// NewDiscordNotifier creates a new DiscordNotifier.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{WebhookURL: webhookURL, Client: newWebhookClient()}
}

func (n *DiscordNotifier) Name() string { return "discord" }

// Send posts the message as webhook content.
func (n *DiscordNotifier) Send(ctx context.Context, msg Message) error {
	content := msg.PlainText()
	if r := []rune(content); len(r) > discordContentLimit {
		content = string(r[:discordContentLimit-1]) + "…"
	}
	return postJSON(ctx, n.Client, n.Name(), n.WebhookURL, map[string]string{"content": content})
}
