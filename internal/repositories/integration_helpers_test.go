//go:build integration

package repositories

import (
	"testing"
	"time"

	"github.com/anonto42/minglr/backend/internal/models"
)

const snapshotTimeout = 15 * time.Second

// awaitSnapshot reads snapshots until one satisfies ok.
func awaitSnapshot[T any](t *testing.T, stream <-chan []T, ok func([]T) bool) []T {
	t.Helper()
	deadline := time.After(snapshotTimeout)
	for {
		select {
		case items, open := <-stream:
			if !open {
				t.Fatal("stream closed before the expected snapshot")
			}
			if ok(items) {
				return items
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

// awaitClosed drains stream until it is closed.
func awaitClosed[T any](t *testing.T, stream <-chan []T) {
	t.Helper()
	deadline := time.After(snapshotTimeout)
	for {
		select {
		case _, open := <-stream:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("stream not closed after cancel")
		}
	}
}

func containsEvent(events []models.OutboxEvent, id string) bool {
	for _, ev := range events {
		if ev.ID == id {
			return true
		}
	}
	return false
}
