package repositories

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/anonto42/minglr/backend/internal/models"
)

// FirestoreOutboxRepository reads the outbox written alongside groups and messages
type FirestoreOutboxRepository struct {
	client *firestore.Client
}

// NewFirestoreOutboxRepository creates a new FirestoreOutboxRepository
func NewFirestoreOutboxRepository(client *firestore.Client) *FirestoreOutboxRepository {
	return &FirestoreOutboxRepository{client: client}
}

func (r *FirestoreOutboxRepository) Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	docs, err := r.client.Collection(outboxCollection).
		Where("delivered", "==", false).
		OrderBy("createdAt", firestore.Asc).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, translateFirestoreErr(err, "pending outbox events")
	}
	events := make([]models.OutboxEvent, 0, len(docs))
	for _, doc := range docs {
		var ev models.OutboxEvent
		if err := doc.DataTo(&ev); err != nil {
			return nil, translateFirestoreErr(err, "decode outbox event "+doc.Ref.ID)
		}
		ev.ID = doc.Ref.ID
		events = append(events, ev)
	}
	return events, nil
}

func (r *FirestoreOutboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	_, err := r.client.Collection(outboxCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "delivered", Value: true},
		{Path: "deliveredAt", Value: at},
	})
	return translateFirestoreErr(err, "mark outbox event "+id)
}
