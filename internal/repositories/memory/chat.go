package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
	"github.com/anonto42/minglr/backend/internal/repositories"
)

// GroupRepository is the in-memory repositories.GroupRepository
type GroupRepository struct{ db *DB }

// NewGroupRepository creates a GroupRepository over db
func NewGroupRepository(db *DB) *GroupRepository { return &GroupRepository{db: db} }

func (r *GroupRepository) Create(_ context.Context, group *models.ChatGroup, event *models.OutboxEvent) error {
	r.db.mu.Lock()
	if group.ID == "" {
		group.ID = r.db.newID()
	}
	if group.CreatedAt.IsZero() {
		group.CreatedAt = time.Now().UTC()
	}
	stored := cloneGroup(group)
	r.db.groups[group.ID] = &stored
	if event != nil && event.RelatedID == "" {
		event.RelatedID = group.ID
	}
	r.db.addOutbox(event)
	r.db.mu.Unlock()

	r.db.publish(realtime.GroupsTopic)
	return nil
}

func (r *GroupRepository) Get(_ context.Context, id string) (*models.ChatGroup, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	g, ok := r.db.groups[id]
	if !ok {
		return nil, fmt.Errorf("get group %s: %w", id, apperrors.ErrNotFound)
	}
	c := cloneGroup(g)
	return &c, nil
}

func (r *GroupRepository) AddMembers(_ context.Context, groupID string, memberIDs []string, event *models.OutboxEvent) error {
	r.db.mu.Lock()
	g, ok := r.db.groups[groupID]
	if !ok {
		r.db.mu.Unlock()
		return fmt.Errorf("add members to %s: %w", groupID, apperrors.ErrNotFound)
	}
	for _, id := range memberIDs {
		if !g.HasMember(id) {
			g.Members = append(g.Members, id)
		}
	}
	r.db.addOutbox(event)
	r.db.mu.Unlock()

	r.db.publish(realtime.GroupsTopic)
	return nil
}

func (r *GroupRepository) RemoveMember(_ context.Context, groupID, userID string) error {
	r.db.mu.Lock()
	g, ok := r.db.groups[groupID]
	if !ok {
		r.db.mu.Unlock()
		return fmt.Errorf("leave group %s: %w", groupID, apperrors.ErrNotFound)
	}
	out := make([]string, 0, len(g.Members))
	for _, m := range g.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	g.Members = out
	r.db.mu.Unlock()

	r.db.publish(realtime.GroupsTopic)
	return nil
}

func (r *GroupRepository) WatchForMember(ctx context.Context, userID string) (<-chan []models.ChatGroup, error) {
	return realtime.Watch(ctx, r.db.bus, realtime.GroupsTopic, func(context.Context) ([]models.ChatGroup, error) {
		r.db.mu.RLock()
		defer r.db.mu.RUnlock()
		out := []models.ChatGroup{}
		for _, g := range r.db.groups {
			if g.HasMember(userID) {
				out = append(out, cloneGroup(g))
			}
		}
		repositories.SortGroups(out)
		return out, nil
	}, r.db.logger)
}

// MessageRepository is the in-memory repositories.MessageRepository
type MessageRepository struct{ db *DB }

// NewMessageRepository creates a MessageRepository over db
func NewMessageRepository(db *DB) *MessageRepository { return &MessageRepository{db: db} }

func (r *MessageRepository) Create(_ context.Context, msg *models.Message, event *models.OutboxEvent) error {
	r.db.mu.Lock()
	if msg.ID == "" {
		msg.ID = r.db.newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	stored := cloneMessage(msg)
	r.db.messages[msg.ID] = &stored
	r.db.addOutbox(event)
	r.db.mu.Unlock()

	r.db.publish(realtime.MessagesChannelTopic(msg.GroupID), realtime.MessagesTopic)
	return nil
}

func (r *MessageRepository) Get(_ context.Context, id string) (*models.Message, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	m, ok := r.db.messages[id]
	if !ok {
		return nil, fmt.Errorf("get message %s: %w", id, apperrors.ErrNotFound)
	}
	c := cloneMessage(m)
	return &c, nil
}

// Vote runs under the write lock, so votes on one poll are applied one at a time.
func (r *MessageRepository) Vote(_ context.Context, messageID, userID string, option int) (*models.Poll, error) {
	r.db.mu.Lock()
	m, ok := r.db.messages[messageID]
	if !ok {
		r.db.mu.Unlock()
		return nil, fmt.Errorf("vote on %s: %w", messageID, apperrors.ErrNotFound)
	}
	if m.Poll == nil {
		r.db.mu.Unlock()
		return nil, apperrors.Invalid("message %s has no poll", messageID)
	}
	next := m.Poll.Clone()
	next.Normalize()
	if err := next.CastVote(userID, option); err != nil {
		r.db.mu.Unlock()
		return nil, err
	}
	m.Poll = next
	channel := m.GroupID
	r.db.mu.Unlock()

	r.db.publish(realtime.MessagesChannelTopic(channel), realtime.MessagesTopic)
	return next.Clone(), nil
}

func (r *MessageRepository) WatchChannel(ctx context.Context, channel string) (<-chan []models.Message, error) {
	return realtime.Watch(ctx, r.db.bus, realtime.MessagesChannelTopic(channel), func(context.Context) ([]models.Message, error) {
		return r.filter(func(m *models.Message) bool { return m.GroupID == channel }), nil
	}, r.db.logger)
}

func (r *MessageRepository) WatchPolls(ctx context.Context, kind models.PollKind) (<-chan []models.Message, error) {
	return realtime.Watch(ctx, r.db.bus, realtime.MessagesTopic, func(context.Context) ([]models.Message, error) {
		return r.filter(func(m *models.Message) bool { return m.Poll != nil && m.Poll.Kind == kind }), nil
	}, r.db.logger)
}

func (r *MessageRepository) filter(keep func(*models.Message) bool) []models.Message {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.Message{}
	for _, m := range r.db.messages {
		if keep(m) {
			out = append(out, cloneMessage(m))
		}
	}
	repositories.SortMessages(out)
	return out
}

// OutboxRepository is the in-memory repositories.OutboxRepository
type OutboxRepository struct{ db *DB }

// NewOutboxRepository creates an OutboxRepository over db
func NewOutboxRepository(db *DB) *OutboxRepository { return &OutboxRepository{db: db} }

func (r *OutboxRepository) Pending(_ context.Context, limit int) ([]models.OutboxEvent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	out := []models.OutboxEvent{}
	for _, ev := range r.db.outbox {
		if !ev.Delivered {
			c := *ev
			c.Recipients = cloneStrings(ev.Recipients)
			out = append(out, c)
		}
	}
	sortEvents(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *OutboxRepository) MarkDelivered(_ context.Context, id string, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	ev, ok := r.db.outbox[id]
	if !ok {
		return fmt.Errorf("outbox event %s: %w", id, apperrors.ErrNotFound)
	}
	ev.Delivered = true
	ev.DeliveredAt = &at
	return nil
}
