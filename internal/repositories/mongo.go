package repositories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anonto42/minglr/backend/internal/models"
)

// Collection names shared by the MongoDB repositories.
const (
	postsCollection      = "posts"
	activitiesCollection = "activities"
	outboxCollection     = "outbox"
)

// withTransaction runs fn in a multi-document transaction. It needs a replica set.
func withTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// insertOutbox stores ev in the outbox collection as part of the caller's session.
func insertOutbox(ctx context.Context, coll *mongo.Collection, ev *models.OutboxEvent) error {
	if ev == nil {
		return nil
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.Delivered = false
	if _, err := coll.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// changeSignals turns a change stream on coll into coalesced signals until ctx is done.
func changeSignals(ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline, logger *slog.Logger) (<-chan struct{}, error) {
	cs, err := coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", coll.Name(), err)
	}
	signals := make(chan struct{}, 1)
	go func() {
		defer close(signals)
		defer cs.Close(context.Background())
		for cs.Next(ctx) {
			select {
			case signals <- struct{}{}:
			default:
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			logger.WarnContext(ctx, "change stream ended", "collection", coll.Name(), "error", err)
		}
	}()
	return signals, nil
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
