// Package fanout delivers outbox events as per-recipient notifications.
//
// Every write that should notify someone stores an OutboxEvent in the same transaction. The relay
// drains the outboxes, writes one notification per recipient and marks the event delivered.
// Notification ids are derived from (event, recipient), so an event delivered twice after a crash
// produces no duplicates.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/minglr/backend/internal/metrics"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
)

var notificationNamespace = uuid.MustParse("6f1c1a52-3d0e-4b7e-9a55-2f0a8c9d1e41")

// NotificationID is the id of the notification an event produces for recipient.
func NotificationID(eventID, recipient string) string {
	return uuid.NewSHA1(notificationNamespace, []byte(eventID+"/"+recipient)).String()
}

// Source is one outbox the relay drains.
type Source struct {
	Name   string
	Outbox repositories.OutboxRepository
}

// Exporter publishes delivered events to an external consumer.
type Exporter interface {
	Export(ctx context.Context, ev models.OutboxEvent) error
}

// Relay moves outbox events into the notification store.
type Relay struct {
	sources       []Source
	notifications repositories.NotificationRepository
	exporter      Exporter
	interval      time.Duration
	batchSize     int
	kick          chan struct{}
	now           func() time.Time
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

// WithExporter also sends every delivered event to e
func WithExporter(e Exporter) Option {
	return func(r *Relay) { r.exporter = e }
}

// WithInterval sets how often the outboxes are polled without a kick
func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batchSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(r *Relay) { r.now = now }
}

func NewRelay(notifications repositories.NotificationRepository, sources []Source, opts ...Option) *Relay {
	r := &Relay{
		sources:       sources,
		notifications: notifications,
		interval:      2 * time.Second,
		batchSize:     100,
		kick:          make(chan struct{}, 1),
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kick asks a running relay to drain now. It never blocks.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run drains the outboxes on every tick or kick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.InfoContext(ctx, "outbox relay started", "sources", len(r.sources), "interval", r.interval)
	for {
		if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
			r.logger.WarnContext(ctx, "draining outbox", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
		case <-r.kick:
		}
	}
}

// Drain delivers every pending event once and returns how many were delivered.
// Events that fail stay pending and are retried on the next drain.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	delivered := 0
	var firstErr error
	for _, src := range r.sources {
		n, err := r.drainSource(ctx, src)
		delivered += n
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s outbox: %w", src.Name, err)
		}
	}
	return delivered, firstErr
}

func (r *Relay) drainSource(ctx context.Context, src Source) (int, error) {
	delivered := 0
	failed := make(map[string]bool)
	for {
		events, err := src.Outbox.Pending(ctx, r.batchSize)
		if err != nil {
			return delivered, err
		}
		progressed := false
		for _, ev := range events {
			if failed[ev.ID] {
				continue
			}
			if err := r.deliver(ctx, src.Outbox, ev); err != nil {
				failed[ev.ID] = true
				r.metrics.IncRelayErrors()
				r.logger.WarnContext(ctx, "delivering outbox event", "source", src.Name, "event_id", ev.ID, "error", err)
				continue
			}
			delivered++
			progressed = true
		}
		if !progressed || len(events) < r.batchSize {
			return delivered, nil
		}
	}
}

func (r *Relay) deliver(ctx context.Context, outbox repositories.OutboxRepository, ev models.OutboxEvent) error {
	notifications := ev.Notifications(NotificationID)
	for i := range notifications {
		if _, err := r.notifications.CreateIfAbsent(ctx, &notifications[i]); err != nil {
			return err
		}
	}
	if r.exporter != nil {
		if err := r.exporter.Export(ctx, ev); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}
	now := r.now()
	if err := outbox.MarkDelivered(ctx, ev.ID, now); err != nil {
		return err
	}
	r.metrics.ObserveDelivery(ev.CreatedAt, now, len(notifications))
	return nil
}
