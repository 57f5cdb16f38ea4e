package notify

import (
	"context"
	"fmt"
	"net/http"
)

// FeishuNotifier posts interactive cards to a Feishu (Lark) bot webhook.
type FeishuNotifier struct {
	WebhookURL string
	Client     *http.Client
}

func NewFeishuNotifier(webhookURL string) *FeishuNotifier {
	return &FeishuNotifier{WebhookURL: webhookURL, Client: newWebhookClient()}
}

func (n *FeishuNotifier) Name() string { return "feishu" }

func (n *FeishuNotifier) Send(ctx context.Context, msg Message) error {
	return postJSON(ctx, n.Client, n.Name(), n.WebhookURL, feishuCard(msg))
}

func feishuCard(msg Message) map[string]interface{} {
	elements := []map[string]interface{}{}
	if msg.Text != "" {
		elements = append(elements, larkDiv(msg.Text))
	}
	for _, e := range msg.Entries {
		content := e.Title
		if e.URL != "" {
			content = fmt.Sprintf("[%s](%s)", e.Title, e.URL)
		}
		if e.Priority != "" {
			content = fmt.Sprintf("**[%s]** %s", e.Priority, content)
		}
		elements = append(elements, larkDiv(content))
	}
	template := "blue"
	if msg.Event == EventFailure {
		template = "red"
	}
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title":    map[string]string{"tag": "plain_text", "content": msg.Title},
				"template": template,
			},
			"elements": elements,
		},
	}
}

func larkDiv(content string) map[string]interface{} {
	return map[string]interface{}{
		"tag":  "div",
		"text": map[string]string{"tag": "lark_md", "content": content},
	}
}
