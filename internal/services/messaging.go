package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/session"
)

// MessagingService manages chat groups and messages.
type MessagingService struct {
	groups   repositories.GroupRepository
	messages repositories.MessageRepository
	options
}

func NewMessagingService(groups repositories.GroupRepository, messages repositories.MessageRepository, opts ...Option) *MessagingService {
	return &MessagingService{groups: groups, messages: messages, options: newOptions(opts)}
}

// CreateGroup creates a group of memberIDs plus the caller and notifies the other members.
func (s *MessagingService) CreateGroup(ctx context.Context, name string, memberIDs []string) (*models.ChatGroup, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Invalid("group name is required")
	}

	now := s.now().UTC()
	group := &models.ChatGroup{
		Name:      name,
		Members:   dedupe(append(append([]string{}, memberIDs...), p.UserID)),
		CreatedAt: now,
	}
	event := &models.OutboxEvent{
		Type:       models.NotificationMessage,
		ActorID:    p.UserID,
		ActorName:  p.Name,
		Recipients: group.Members,
		Text:       "added you to " + name,
		CreatedAt:  now,
	}
	// the store points the event at the new group id
	if err := s.groups.Create(ctx, group, event); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.kicker.Kick()
	s.logger.InfoContext(ctx, "group created", "group_id", group.ID, "members", len(group.Members))
	return group, nil
}

// AddMembers adds users to a group the caller belongs to and notifies the newcomers.
func (s *MessagingService) AddMembers(ctx context.Context, groupID string, memberIDs []string) (*models.ChatGroup, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(p.UserID) {
		return nil, fmt.Errorf("add members to %s: %w", groupID, apperrors.ErrPermissionDenied)
	}

	var added []string
	for _, id := range dedupe(memberIDs) {
		if !group.HasMember(id) {
			added = append(added, id)
		}
	}
	if len(added) == 0 {
		return group, nil
	}
	event := &models.OutboxEvent{
		Type:       models.NotificationMessage,
		ActorID:    p.UserID,
		ActorName:  p.Name,
		Recipients: added,
		Text:       "added you to " + group.Name,
		RelatedID:  groupID,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.groups.AddMembers(ctx, groupID, added, event); err != nil {
		return nil, fmt.Errorf("add members: %w", err)
	}
	s.kicker.Kick()
	group.Members = append(group.Members, added...)
	return group, nil
}

// LeaveGroup removes the caller from the group. A group may end up empty.
func (s *MessagingService) LeaveGroup(ctx context.Context, groupID string) error {
	p, err := session.Require(ctx)
	if err != nil {
		return err
	}
	if err := s.groups.RemoveMember(ctx, groupID, p.UserID); err != nil {
		return fmt.Errorf("leave group: %w", err)
	}
	return nil
}

// SendMessageInput is a new chat message.
type SendMessageInput struct {
	Text       string
	ActivityID string
	GroupID    string
	Poll       *models.PollInput
}

// SendMessage posts to the group channel, or the global channel when GroupID is empty.
// Membership is not checked. Group members other than the sender are notified.
func (s *MessagingService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.buildMessage(p, in)
	if err != nil {
		return nil, err
	}

	var event *models.OutboxEvent
	if msg.GroupID != models.GlobalChannel {
		group, err := s.groups.Get(ctx, msg.GroupID)
		switch {
		case err == nil:
			event = &models.OutboxEvent{
				Type:       models.NotificationMessage,
				ActorID:    p.UserID,
				ActorName:  p.Name,
				Recipients: group.Members,
				Text:       msg.Text,
				RelatedID:  group.ID,
				CreatedAt:  msg.CreatedAt,
			}
		case errors.Is(err, apperrors.ErrNotFound):
			s.logger.WarnContext(ctx, "message sent to unknown group", "group_id", msg.GroupID)
		default:
			return nil, fmt.Errorf("send message: %w", err)
		}
	}

	if err := s.messages.Create(ctx, msg, event); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	if event != nil {
		s.kicker.Kick()
	}
	channel := "group"
	if msg.GroupID == models.GlobalChannel {
		channel = models.GlobalChannel
	}
	s.metrics.IncMessagesSent(channel, msg.Poll != nil)
	return msg, nil
}

func (s *MessagingService) buildMessage(p session.Principal, in SendMessageInput) (*models.Message, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.ActivityID == "" && in.Poll == nil {
		return nil, apperrors.Invalid("a message needs text, an activity or a poll")
	}
	msg := &models.Message{
		SenderID:   p.UserID,
		SenderName: p.Name,
		Text:       text,
		ActivityID: in.ActivityID,
		GroupID:    models.ChannelOf(in.GroupID),
		CreatedAt:  s.now().UTC(),
	}
	if in.Poll != nil {
		poll, err := models.PollFromInput(*in.Poll)
		if err != nil {
			return nil, err
		}
		msg.Poll = poll
	}
	return msg, nil
}

// SubscribeToMessages streams a channel's messages oldest first until ctx is cancelled.
func (s *MessagingService) SubscribeToMessages(ctx context.Context, channel string) (<-chan []models.Message, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	return s.messages.WatchChannel(ctx, models.ChannelOf(channel))
}

// SubscribeToGroups streams the groups the caller belongs to until ctx is cancelled.
func (s *MessagingService) SubscribeToGroups(ctx context.Context) (<-chan []models.ChatGroup, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.groups.WatchForMember(ctx, p.UserID)
}
