//go:build integration

package repositories

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcfirestore "github.com/testcontainers/testcontainers-go/modules/gcloud/firestore"
	"golang.org/x/sync/errgroup"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

type FirestoreRepositoriesSuite struct {
	suite.Suite
	container *tcfirestore.Container
	client    *firestore.Client
	groups    *FirestoreGroupRepository
	messages  *FirestoreMessageRepository
	outbox    *FirestoreOutboxRepository
}

func TestFirestoreRepositoriesSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(FirestoreRepositoriesSuite))
}

func (s *FirestoreRepositoriesSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcfirestore.Run(ctx,
		"gcr.io/google.com/cloudsdktool/cloud-sdk:513.0.0-emulators",
		tcfirestore.WithProjectID("minglr-test"),
	)
	s.Require().NoError(err)
	s.container = container

	// the client dials the emulator without credentials when this is set
	s.Require().NoError(os.Setenv("FIRESTORE_EMULATOR_HOST", container.URI()))
	client, err := firestore.NewClient(ctx, container.ProjectID())
	s.Require().NoError(err)
	s.client = client

	s.groups = NewFirestoreGroupRepository(client, nil)
	s.messages = NewFirestoreMessageRepository(client, nil)
	s.outbox = NewFirestoreOutboxRepository(client)
}

func (s *FirestoreRepositoriesSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	_ = os.Unsetenv("FIRESTORE_EMULATOR_HOST")
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *FirestoreRepositoriesSuite) pollMessage(channel string) *models.Message {
	poll, err := models.NewPoll("Beach?", []string{"YES", "NO"})
	s.Require().NoError(err)
	msg := &models.Message{SenderID: "A", SenderName: "Ann", GroupID: channel, Poll: poll}
	s.Require().NoError(s.messages.Create(context.Background(), msg, nil))
	s.Require().NotEmpty(msg.ID)
	return msg
}

func (s *FirestoreRepositoriesSuite) TestVoteMovesTheUsersVote() {
	ctx := context.Background()
	msg := s.pollMessage(uuid.NewString())

	poll, err := s.messages.Vote(ctx, msg.ID, "B", 0)
	s.Require().NoError(err)
	s.Equal([]string{"B"}, poll.Options[0].Votes)

	poll, err = s.messages.Vote(ctx, msg.ID, "B", 1)
	s.Require().NoError(err)
	s.Empty(poll.Options[0].Votes)
	s.Equal([]string{"B"}, poll.Options[1].Votes)

	stored, err := s.messages.Get(ctx, msg.ID)
	s.Require().NoError(err)
	choice, ok := stored.Poll.VoteOf("B")
	s.True(ok)
	s.Equal(1, choice)
	s.Equal(1, stored.Poll.TotalVotes())
	s.Equal(models.PollGeneral, stored.Poll.Kind)
}

func (s *FirestoreRepositoriesSuite) TestConcurrentVotesBySameUserCountOnce() {
	ctx := context.Background()
	msg := s.pollMessage(uuid.NewString())

	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := s.messages.Vote(ctx, msg.ID, "B", i%2)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	stored, err := s.messages.Get(ctx, msg.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.Poll.TotalVotes())
}

func (s *FirestoreRepositoriesSuite) TestVoteRejections() {
	ctx := context.Background()
	msg := s.pollMessage(uuid.NewString())

	_, err := s.messages.Vote(ctx, msg.ID, "B", 2)
	s.ErrorIs(err, apperrors.ErrInvalidInput)

	plain := &models.Message{SenderID: "A", Text: "hi", GroupID: uuid.NewString()}
	s.Require().NoError(s.messages.Create(ctx, plain, nil))
	_, err = s.messages.Vote(ctx, plain.ID, "B", 0)
	s.ErrorIs(err, apperrors.ErrInvalidInput)

	_, err = s.messages.Vote(ctx, "missing-"+uuid.NewString(), "B", 0)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *FirestoreRepositoriesSuite) TestWatchChannelOrdersByTimestamp() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel := uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i, offset := range []int{2, 0, 1} {
		msg := &models.Message{
			SenderID:  "A",
			Text:      fmt.Sprintf("at+%d", offset),
			GroupID:   channel,
			CreatedAt: base.Add(time.Duration(offset) * time.Second),
		}
		s.Require().NoError(s.messages.Create(ctx, msg, nil), "message %d", i)
	}
	other := &models.Message{SenderID: "A", Text: "elsewhere", GroupID: uuid.NewString()}
	s.Require().NoError(s.messages.Create(ctx, other, nil))

	stream, err := s.messages.WatchChannel(ctx, channel)
	s.Require().NoError(err)
	msgs := awaitSnapshot(s.T(), stream, func(m []models.Message) bool { return len(m) == 3 })

	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Text
	}
	s.Equal([]string{"at+0", "at+1", "at+2"}, texts)

	cancel()
	awaitClosed(s.T(), stream)
}

func (s *FirestoreRepositoriesSuite) TestWatchPollsByKind() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	channel := uuid.NewString()

	attendance := &models.Message{SenderID: "A", GroupID: channel, Poll: models.NewAttendancePoll("Kayaking")}
	s.Require().NoError(s.messages.Create(ctx, attendance, nil))
	s.pollMessage(channel)

	stream, err := s.messages.WatchPolls(ctx, models.PollAttendance)
	s.Require().NoError(err)
	msgs := awaitSnapshot(s.T(), stream, func(m []models.Message) bool {
		for _, msg := range m {
			if msg.ID == attendance.ID {
				return true
			}
		}
		return false
	})
	for _, m := range msgs {
		s.Equal(models.PollAttendance, m.Poll.Kind)
	}
}

func (s *FirestoreRepositoriesSuite) TestLeaveDropsGroupFromMemberStream() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a, b := "a-"+uuid.NewString(), "b-"+uuid.NewString()

	event := &models.OutboxEvent{Type: models.NotificationMessage, ActorID: a, Recipients: []string{b}, CreatedAt: time.Now().UTC()}
	group := &models.ChatGroup{Name: "Foodies", Members: []string{a, b}}
	s.Require().NoError(s.groups.Create(ctx, group, event))
	s.Equal(group.ID, event.RelatedID)

	stream, err := s.groups.WatchForMember(ctx, b)
	s.Require().NoError(err)
	awaitSnapshot(s.T(), stream, func(g []models.ChatGroup) bool { return len(g) == 1 && g[0].ID == group.ID })

	s.Require().NoError(s.groups.RemoveMember(ctx, group.ID, b))
	awaitSnapshot(s.T(), stream, func(g []models.ChatGroup) bool { return len(g) == 0 })

	stored, err := s.groups.Get(ctx, group.ID)
	s.Require().NoError(err)
	s.Equal([]string{a}, stored.Members)

	s.Require().NoError(s.groups.AddMembers(ctx, group.ID, []string{a, b}, nil))
	stored, err = s.groups.Get(ctx, group.ID)
	s.Require().NoError(err)
	s.ElementsMatch([]string{a, b}, stored.Members)

	s.ErrorIs(s.groups.RemoveMember(ctx, "missing-"+uuid.NewString(), a), apperrors.ErrNotFound)
}

func (s *FirestoreRepositoriesSuite) TestOutboxWrittenWithMessage() {
	ctx := context.Background()
	relatedChannel := uuid.NewString()
	event := &models.OutboxEvent{
		Type:       models.NotificationMessage,
		ActorID:    "A",
		Recipients: []string{"B"},
		RelatedID:  relatedChannel,
		CreatedAt:  time.Now().UTC(),
	}
	msg := &models.Message{SenderID: "A", Text: "hi", GroupID: relatedChannel}
	s.Require().NoError(s.messages.Create(ctx, msg, event))
	s.Require().NotEmpty(event.ID)

	pending, err := s.outbox.Pending(ctx, 500)
	s.Require().NoError(err)
	s.True(containsEvent(pending, event.ID))

	s.Require().NoError(s.outbox.MarkDelivered(ctx, event.ID, time.Now().UTC()))
	pending, err = s.outbox.Pending(ctx, 500)
	s.Require().NoError(err)
	s.False(containsEvent(pending, event.ID))
}
