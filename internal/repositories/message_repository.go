package repositories

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

// FirestoreMessageRepository implements MessageRepository for Firestore
type FirestoreMessageRepository struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreMessageRepository creates a new FirestoreMessageRepository
func NewFirestoreMessageRepository(client *firestore.Client, logger *slog.Logger) *FirestoreMessageRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreMessageRepository{client: client, logger: logger}
}

func (r *FirestoreMessageRepository) messages() *firestore.CollectionRef {
	return r.client.Collection(messagesCollection)
}

// Create stores the message and its outbox event in one transaction
func (r *FirestoreMessageRepository) Create(ctx context.Context, msg *models.Message, event *models.OutboxEvent) error {
	ref := r.messages().NewDoc()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, msg); err != nil {
			return err
		}
		return createOutbox(tx, r.client, event)
	})
	if err != nil {
		return translateFirestoreErr(err, "send message")
	}
	msg.ID = ref.ID
	return nil
}

func (r *FirestoreMessageRepository) Get(ctx context.Context, id string) (*models.Message, error) {
	snap, err := r.messages().Doc(id).Get(ctx)
	if err != nil {
		return nil, translateFirestoreErr(err, "get message "+id)
	}
	m, err := decodeMessage(snap)
	if err != nil {
		return nil, translateFirestoreErr(err, "decode message "+id)
	}
	return &m, nil
}

// Vote reads the poll and writes the moved vote inside a transaction, so two votes by the same
// user cannot overwrite each other.
func (r *FirestoreMessageRepository) Vote(ctx context.Context, messageID, userID string, option int) (*models.Poll, error) {
	ref := r.messages().Doc(messageID)
	var poll *models.Poll
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		m, err := decodeMessage(snap)
		if err != nil {
			return err
		}
		if m.Poll == nil {
			return apperrors.Invalid("message %s has no poll", messageID)
		}
		if err := m.Poll.CastVote(userID, option); err != nil {
			return err
		}
		poll = m.Poll
		return tx.Update(ref, []firestore.Update{{Path: "poll.options", Value: m.Poll.Options}})
	})
	if err != nil {
		return nil, translateFirestoreErr(err, "vote on "+messageID)
	}
	return poll, nil
}

func (r *FirestoreMessageRepository) WatchChannel(ctx context.Context, channel string) (<-chan []models.Message, error) {
	q := r.messages().Where("groupId", "==", channel)
	return watchQuery(ctx, q, decodeMessage, SortMessages, r.logger), nil
}

func (r *FirestoreMessageRepository) WatchPolls(ctx context.Context, kind models.PollKind) (<-chan []models.Message, error) {
	q := r.messages().Where("poll.kind", "==", string(kind))
	return watchQuery(ctx, q, decodeMessage, SortMessages, r.logger), nil
}
