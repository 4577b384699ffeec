package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

// MongoOutboxRepository reads the outbox written alongside post likes and comments
type MongoOutboxRepository struct {
	collection *mongo.Collection
}

// NewMongoOutboxRepository creates a new MongoOutboxRepository
func NewMongoOutboxRepository(db *mongo.Database) *MongoOutboxRepository {
	return &MongoOutboxRepository{collection: db.Collection(outboxCollection)}
}

func (r *MongoOutboxRepository) Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	events := []models.OutboxEvent{}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{"delivered": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("pending outbox events: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode outbox events: %w", err)
	}
	return events, nil
}

func (r *MongoOutboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"delivered": true, "delivered_at": at}})
	if err != nil {
		return fmt.Errorf("mark outbox event delivered: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("outbox event %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// EnsureIndexes creates the indexes the outbox and feed queries rely on
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(outboxCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "delivered", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("outbox index: %w", err)
	}
	_, err = db.Collection(postsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("posts index: %w", err)
	}
	return nil
}
