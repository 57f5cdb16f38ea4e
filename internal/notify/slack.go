package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts messages to a channel with a bot token.
type SlackNotifier struct {
	client    *slack.Client
	channelID string
}

// NewSlackNotifier creates a SlackNotifier. Extra options (e.g.
// slack.OptionAPIURL in tests) are passed through to the client.
func NewSlackNotifier(botToken, channelID string, opts ...slack.Option) *SlackNotifier {
	if channelID == "" {
		channelID = "#general"
	}
	return &SlackNotifier{
		client:    slack.New(botToken, opts...),
		channelID: channelID,
	}
}

func (s *SlackNotifier) Name() string { return "slack" }

// Send posts the message text to the configured channel.
func (s *SlackNotifier) Send(ctx context.Context, msg Message) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(msg.PlainText(), false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}
