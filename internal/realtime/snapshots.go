package realtime

import (
	"context"
	"log/slog"
)

// Snapshots emits load's result once, then again after every signal, until ctx is done or signals closes.
// A failed reload is logged and skipped; the previous snapshot stays current for the reader.
func Snapshots[T any](ctx context.Context, signals <-chan struct{}, load func(context.Context) ([]T, error), logger *slog.Logger) <-chan []T {
	if logger == nil {
		logger = slog.Default()
	}
	out := make(chan []T, 1)
	go func() {
		defer close(out)
		emit := func() bool {
			items, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				logger.WarnContext(ctx, "reloading live query", "error", err)
				return true
			}
			select {
			case out <- items:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok || !emit() {
					return
				}
			}
		}
	}()
	return out
}

// Watch subscribes to topic and returns live snapshots produced by load.
func Watch[T any](ctx context.Context, bus Bus, topic string, load func(context.Context) ([]T, error), logger *slog.Logger) (<-chan []T, error) {
	signals, err := bus.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return Snapshots(ctx, signals, load, logger), nil
}
