package models

import "time"

// OutboxEvent records a notification fan-out that must happen because of a write.
// It is stored in the same transaction as that write and delivered later by the relay.
type OutboxEvent struct {
	ID          string           `json:"id" firestore:"-" bson:"_id"`
	Type        NotificationType `json:"type" firestore:"type" bson:"type"`
	ActorID     string           `json:"actorId" firestore:"actorId" bson:"actor_id"`
	ActorName   string           `json:"actorName" firestore:"actorName" bson:"actor_name"`
	Recipients  []string         `json:"recipients" firestore:"recipients" bson:"recipients"`
	Text        string           `json:"text,omitempty" firestore:"text" bson:"text"`
	RelatedID   string           `json:"relatedId,omitempty" firestore:"relatedId" bson:"related_id"`
	CreatedAt   time.Time        `json:"createdAt" firestore:"createdAt" bson:"created_at"`
	Delivered   bool             `json:"delivered" firestore:"delivered" bson:"delivered"`
	DeliveredAt *time.Time       `json:"deliveredAt,omitempty" firestore:"deliveredAt,omitempty" bson:"delivered_at,omitempty"`
}

// Notifications expands the event into one notification per recipient, skipping the actor.
// id derives the notification id from the event id and recipient.
func (e *OutboxEvent) Notifications(id func(eventID, recipient string) string) []Notification {
	out := make([]Notification, 0, len(e.Recipients))
	seen := make(map[string]struct{}, len(e.Recipients))
	for _, r := range e.Recipients {
		if r == "" || r == e.ActorID {
			continue
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, Notification{
			ID:        id(e.ID, r),
			UserID:    r,
			ActorID:   e.ActorID,
			UserName:  e.ActorName,
			Type:      e.Type,
			Text:      e.Text,
			RelatedID: e.RelatedID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}
