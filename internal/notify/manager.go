package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"featurefactory/internal/config"
)

// Manager fans a message out to every configured provider. Delivery is
// best-effort: failures are logged and returned joined, never retried.
type Manager struct {
	providers []Provider
	events    map[string]bool
	logger    *slog.Logger
}

// NewManager creates a Manager with a provider for every configured destination.
func NewManager(cfg config.NotificationsConfig, logger *slog.Logger) *Manager {
	var providers []Provider
	if cfg.SlackEnabled {
		if cfg.SlackToken != "" {
			providers = append(providers, NewSlackNotifier(cfg.SlackToken, cfg.SlackChannel))
		} else if logger != nil {
			logger.Warn("SLACK_BOT_USER_TOKEN not set, slack notifications disabled")
		}
	}
	if cfg.DiscordWebhook != "" {
		providers = append(providers, NewDiscordNotifier(cfg.DiscordWebhook))
	}
	if cfg.FeishuWebhook != "" {
		providers = append(providers, NewFeishuNotifier(cfg.FeishuWebhook))
	}
	if cfg.WechatWebhook != "" {
		providers = append(providers, NewWeComNotifier(cfg.WechatWebhook))
	}
	return NewManagerWithProviders(providers, cfg.Events, logger)
}

// NewManagerWithProviders creates a Manager over explicit providers.
// A nil events map enables every event.
func NewManagerWithProviders(providers []Provider, events map[string]bool, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{providers: providers, events: events, logger: logger}
}

// Providers returns the names of the active providers.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for _, p := range m.providers {
		names = append(names, p.Name())
	}
	return names
}

func (m *Manager) isEnabled(event string) bool {
	if len(m.providers) == 0 {
		return false
	}
	if m.events == nil {
		return true
	}
	return m.events[event]
}

// Notify sends msg to every provider concurrently if its event is enabled.
func (m *Manager) Notify(ctx context.Context, msg Message) error {
	if m == nil || !m.isEnabled(msg.Event) {
		return nil
	}
	m.logger.Debug("sending notification", "event", msg.Event, "providers", len(m.providers))

	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, p := range m.providers {
		p := p
		g.Go(func() error {
			if err := p.Send(ctx, msg); err != nil {
				m.logger.Warn("notification failed", "provider", p.Name(), "event", msg.Event, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
