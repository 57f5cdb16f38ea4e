// Package pipeline reconciles the feature registry, the issue tracker and
// the repository: it proposes features as review items, syncs human label
// decisions and promotes approved features to development branches.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"featurefactory/internal/notify"
	"featurefactory/internal/telemetry"
)

// Stage names used in logs and metrics.
const (
	StageProposal     = "proposal"
	StageApprovalSync = "approval_sync"
	StagePromotion    = "promotion"
)

// DefaultListLimit caps how many items one tracker listing returns.
const DefaultListLimit = 200

// Notifier receives best-effort announcements.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

// Env carries the collaborators every stage shares.
type Env struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
	Out     io.Writer
	Now     func() time.Time
}

func (e Env) logger(stage string) *slog.Logger {
	l := e.Logger
	if l == nil {
		l = slog.Default()
	}
	return telemetry.Component(l, stage)
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// observe records a stage's duration once it returns.
func (e Env) observe(stage string, start time.Time) {
	e.Metrics.ObserveStage(stage, time.Since(start))
}

func outOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
