package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// WeComNotifier posts markdown messages to a WeCom (WeChat Work) group bot.
type WeComNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func NewWeComNotifier(webhookURL string) *WeComNotifier {
	return &WeComNotifier{WebhookURL: webhookURL, Client: newWebhookClient()}
}

func (n *WeComNotifier) Name() string { return "wecom" }

func (n *WeComNotifier) Send(ctx context.Context, msg Message) error {
	return postJSON(ctx, n.Client, n.Name(), n.WebhookURL, map[string]interface{}{
		"msgtype":  "markdown",
		"markdown": map[string]string{"content": wecomMarkdown(msg)},
	})
}

func wecomMarkdown(msg Message) string {
	lines := []string{"## " + msg.Title}
	if msg.Text != "" {
		lines = append(lines, msg.Text)
	}
	for _, e := range msg.Entries {
		title := e.Title
		if e.URL != "" {
			title = fmt.Sprintf("[%s](%s)", e.Title, e.URL)
		}
		if e.Priority != "" {
			lines = append(lines, fmt.Sprintf(`> <font color="comment">[%s]</font> %s`, e.Priority, title))
		} else {
			lines = append(lines, "> "+title)
		}
	}
	return strings.Join(lines, "\n")
}
