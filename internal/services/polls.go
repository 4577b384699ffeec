package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/session"
)

// PollService handles voting and the views derived from polls.
type PollService struct {
	messages   repositories.MessageRepository
	activities repositories.ActivityRepository
	messaging  *MessagingService
	options
}

func NewPollService(messages repositories.MessageRepository, activities repositories.ActivityRepository, messaging *MessagingService, opts ...Option) *PollService {
	return &PollService{messages: messages, activities: activities, messaging: messaging, options: newOptions(opts)}
}

// PollView is a poll with its tally
type PollView struct {
	MessageID string               `json:"messageId"`
	Poll      *models.Poll         `json:"poll"`
	Tally     []models.OptionTally `json:"tally"`
	MyVote    *int                 `json:"myVote,omitempty"`
}

// Vote records the caller's choice. A previous vote by the caller on the same poll is replaced.
func (s *PollService) Vote(ctx context.Context, messageID string, option int) (*PollView, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	poll, err := s.messages.Vote(ctx, messageID, p.UserID, option)
	if err != nil {
		return nil, err
	}
	s.metrics.IncVotesCast(string(poll.Kind))
	return s.view(messageID, poll, p.UserID), nil
}

// Poll returns the current state of a message's poll.
func (s *PollService) Poll(ctx context.Context, messageID string) (*PollView, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Poll == nil {
		return nil, apperrors.Invalid("message %s has no poll", messageID)
	}
	return s.view(messageID, msg.Poll, p.UserID), nil
}

func (s *PollService) view(messageID string, poll *models.Poll, userID string) *PollView {
	v := &PollView{MessageID: messageID, Poll: poll, Tally: poll.Tally()}
	if i, ok := poll.VoteOf(userID); ok {
		v.MyVote = &i
	}
	return v
}

// ConfirmedEvents lists the shared activities the caller answered YES to, newest first.
func (s *PollService) ConfirmedEvents(ctx context.Context) ([]models.ConfirmedEvent, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch, err := s.SubscribeConfirmedEvents(ctx)
	if err != nil {
		return nil, err
	}
	events, ok := <-ch
	if !ok {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return []models.ConfirmedEvent{}, nil
	}
	return events, nil
}

// SubscribeConfirmedEvents streams ConfirmedEvents until ctx is cancelled.
func (s *PollService) SubscribeConfirmedEvents(ctx context.Context) (<-chan []models.ConfirmedEvent, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return nil, err
	}
	polls, err := s.messages.WatchPolls(ctx, models.PollAttendance)
	if err != nil {
		return nil, err
	}
	out := make(chan []models.ConfirmedEvent, 1)
	go func() {
		defer close(out)
		for msgs := range polls {
			select {
			case out <- s.confirmed(ctx, p.UserID, msgs):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *PollService) confirmed(ctx context.Context, userID string, msgs []models.Message) []models.ConfirmedEvent {
	events := []models.ConfirmedEvent{}
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.ActivityID == "" || m.Poll == nil || !m.Poll.Attending(userID) {
			continue
		}
		ev := models.ConfirmedEvent{
			MessageID: m.ID,
			GroupID:   m.GroupID,
			Question:  m.Poll.Question,
			Attendees: m.Poll.Attendees(),
			CreatedAt: m.CreatedAt,
		}
		activity, err := s.activities.Get(ctx, m.ActivityID)
		switch {
		case err == nil:
			a := activity.Normalized()
			ev.Activity = &a
		case errors.Is(err, apperrors.ErrNotFound):
			// shared activities may since have been removed from the catalogue
		default:
			s.logger.WarnContext(ctx, "loading confirmed activity", "activity_id", m.ActivityID, "error", err)
		}
		events = append(events, ev)
	}
	return events
}

// ShareActivity posts an activity to a group with an attendance poll.
func (s *PollService) ShareActivity(ctx context.Context, activityID, groupID string) (*models.Message, error) {
	if _, err := session.Require(ctx); err != nil {
		return nil, err
	}
	if groupID == "" {
		return nil, apperrors.Invalid("group is required")
	}
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("share activity: %w", err)
	}
	attendance := models.NewAttendancePoll(activity.Name)
	return s.messaging.SendMessage(ctx, SendMessageInput{
		Text:       "Check out " + activity.Name + "!",
		ActivityID: activity.ID,
		GroupID:    groupID,
		Poll: &models.PollInput{
			Question: attendance.Question,
			Kind:     models.PollAttendance,
			Options:  []string{attendance.Options[0].Text, attendance.Options[1].Text},
		},
	})
}
