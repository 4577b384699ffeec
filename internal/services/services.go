// Package services holds the application operations. Every operation acts for the principal
// carried in its context and fails with apperrors.ErrUnauthenticated before writing anything
// when there is none.
package services

import (
	"log/slog"
	"time"

	"github.com/anonto42/minglr/backend/internal/metrics"
)

// Kicker wakes the outbox relay after a write that stored an event.
type Kicker interface {
	Kick()
}

type noopKicker struct{}

func (noopKicker) Kick() {}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	kicker  Kicker
}

// Option configures a service
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithKicker wakes k after every write that produced an outbox event
func WithKicker(k Kicker) Option {
	return func(o *options) { o.kicker = k }
}

func newOptions(opts []Option) options {
	o := options{logger: slog.Default(), now: time.Now, kicker: noopKicker{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
