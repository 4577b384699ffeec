package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

// Firestore collection names.
const (
	groupsCollection   = "groups"
	messagesCollection = "messages"
)

// translateFirestoreErr maps gRPC statuses onto the shared sentinels.
func translateFirestoreErr(err error, op string) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	case codes.AlreadyExists:
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	case codes.PermissionDenied:
		return fmt.Errorf("%s: %w", op, apperrors.ErrPermissionDenied)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// createOutbox adds ev to the outbox inside tx.
func createOutbox(tx *firestore.Transaction, client *firestore.Client, ev *models.OutboxEvent) error {
	if ev == nil {
		return nil
	}
	ref := client.Collection(outboxCollection).NewDoc()
	ev.ID = ref.ID
	ev.Delivered = false
	return tx.Create(ref, ev)
}

// watchQuery streams decoded, sorted query results for every snapshot the listener receives.
func watchQuery[T any](ctx context.Context, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error), sortFn func([]T), logger *slog.Logger) <-chan []T {
	out := make(chan []T, 1)
	it := q.Snapshots(ctx)
	go func() {
		defer close(out)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, iterator.Done) && status.Code(err) != codes.Canceled {
					logger.WarnContext(ctx, "snapshot listener stopped", "error", err)
				}
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				logger.WarnContext(ctx, "reading snapshot documents", "error", err)
				continue
			}
			items := make([]T, 0, len(docs))
			for _, doc := range docs {
				item, err := decode(doc)
				if err != nil {
					logger.WarnContext(ctx, "skipping undecodable document", "id", doc.Ref.ID, "error", err)
					continue
				}
				items = append(items, item)
			}
			if sortFn != nil {
				sortFn(items)
			}
			select {
			case out <- items:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func decodeGroup(doc *firestore.DocumentSnapshot) (models.ChatGroup, error) {
	var g models.ChatGroup
	if err := doc.DataTo(&g); err != nil {
		return g, err
	}
	g.ID = doc.Ref.ID
	if g.Members == nil {
		g.Members = []string{}
	}
	return g, nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (models.Message, error) {
	var m models.Message
	if err := doc.DataTo(&m); err != nil {
		return m, err
	}
	m.ID = doc.Ref.ID
	if m.Poll != nil {
		m.Poll.Normalize()
	}
	return m, nil
}

func toInterfaces(ids []string) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
