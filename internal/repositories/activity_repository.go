package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

// MongoActivityRepository implements ActivityRepository for MongoDB
type MongoActivityRepository struct {
	collection *mongo.Collection
}

// NewMongoActivityRepository creates a new MongoActivityRepository
func NewMongoActivityRepository(db *mongo.Database) *MongoActivityRepository {
	return &MongoActivityRepository{collection: db.Collection(activitiesCollection)}
}

func (r *MongoActivityRepository) List(ctx context.Context) ([]models.Activity, error) {
	activities := []models.Activity{}
	cursor, err := r.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return activities, nil
}

func (r *MongoActivityRepository) Get(ctx context.Context, id string) (*models.Activity, error) {
	var a models.Activity
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("get activity %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return &a, nil
}

func (r *MongoActivityRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

// Upsert replaces the activity with the same id, inserting it if missing
func (r *MongoActivityRepository) Upsert(ctx context.Context, activity models.Activity) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": activity.ID}, activity, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert activity %s: %w", activity.ID, err)
	}
	return nil
}
