package repositories

import (
	"context"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/anonto42/minglr/backend/internal/models"
)

// FirestoreGroupRepository implements GroupRepository for Firestore
type FirestoreGroupRepository struct {
	client *firestore.Client
	logger *slog.Logger
}

// NewFirestoreGroupRepository creates a new FirestoreGroupRepository
func NewFirestoreGroupRepository(client *firestore.Client, logger *slog.Logger) *FirestoreGroupRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &FirestoreGroupRepository{client: client, logger: logger}
}

func (r *FirestoreGroupRepository) groups() *firestore.CollectionRef {
	return r.client.Collection(groupsCollection)
}

// Create stores the group and its outbox event in one transaction.
// An event without a related id is pointed at the new group.
func (r *FirestoreGroupRepository) Create(ctx context.Context, group *models.ChatGroup, event *models.OutboxEvent) error {
	ref := r.groups().NewDoc()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	if event != nil && event.RelatedID == "" {
		event.RelatedID = ref.ID
	}
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(ref, group); err != nil {
			return err
		}
		return createOutbox(tx, r.client, event)
	})
	if err != nil {
		return translateFirestoreErr(err, "create group")
	}
	group.ID = ref.ID
	return nil
}

func (r *FirestoreGroupRepository) Get(ctx context.Context, id string) (*models.ChatGroup, error) {
	snap, err := r.groups().Doc(id).Get(ctx)
	if err != nil {
		return nil, translateFirestoreErr(err, "get group "+id)
	}
	g, err := decodeGroup(snap)
	if err != nil {
		return nil, translateFirestoreErr(err, "decode group "+id)
	}
	return &g, nil
}

// AddMembers unions memberIDs into the member set
func (r *FirestoreGroupRepository) AddMembers(ctx context.Context, groupID string, memberIDs []string, event *models.OutboxEvent) error {
	ref := r.groups().Doc(groupID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(ref, []firestore.Update{{Path: "members", Value: firestore.ArrayUnion(toInterfaces(memberIDs)...)}}); err != nil {
			return err
		}
		return createOutbox(tx, r.client, event)
	})
	return translateFirestoreErr(err, "add members to "+groupID)
}

// RemoveMember takes userID out of the member set. The group is kept even when it ends up empty.
func (r *FirestoreGroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	_, err := r.groups().Doc(groupID).Update(ctx, []firestore.Update{
		{Path: "members", Value: firestore.ArrayRemove(userID)},
	})
	return translateFirestoreErr(err, "leave group "+groupID)
}

func (r *FirestoreGroupRepository) WatchForMember(ctx context.Context, userID string) (<-chan []models.ChatGroup, error) {
	q := r.groups().Where("members", "array-contains", userID)
	return watchQuery(ctx, q, decodeGroup, SortGroups, r.logger), nil
}
