package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/fanout"
	"github.com/anonto42/minglr/backend/internal/geo"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/ranking"
	"github.com/anonto42/minglr/backend/internal/repositories/memory"
	"github.com/anonto42/minglr/backend/internal/session"
)

type fakeIdentity struct {
	uid string
	err error
}

func (f fakeIdentity) CreateUser(context.Context, string, string, string) (string, error) {
	return f.uid, f.err
}

type ServicesSuite struct {
	suite.Suite
	db            *memory.DB
	relay         *fanout.Relay
	users         *UserService
	messaging     *MessagingService
	polls         *PollService
	notifications *NotificationService
	posts         *PostService
	activities    *ActivityService

	clock time.Time
	mu    sync.Mutex
}

func TestServicesSuite(t *testing.T) {
	suite.Run(t, new(ServicesSuite))
}

func (s *ServicesSuite) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *ServicesSuite) SetupTest() {
	s.clock = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	s.db = memory.NewDB()

	userRepo := memory.NewUserRepository(s.db)
	notificationRepo := memory.NewNotificationRepository(s.db)
	messageRepo := memory.NewMessageRepository(s.db)
	activityRepo := memory.NewActivityRepository(s.db)
	outbox := memory.NewOutboxRepository(s.db)

	s.relay = fanout.NewRelay(notificationRepo, []fanout.Source{{Name: "memory", Outbox: outbox}})
	opts := []Option{WithClock(s.now)}

	s.users = NewUserService(userRepo, memory.NewFollowRepository(s.db), fakeIdentity{uid: "new-uid"}, opts...)
	s.messaging = NewMessagingService(memory.NewGroupRepository(s.db), messageRepo, opts...)
	s.polls = NewPollService(messageRepo, activityRepo, s.messaging, opts...)
	s.notifications = NewNotificationService(notificationRepo, opts...)
	s.posts = NewPostService(memory.NewPostRepository(s.db), userRepo, opts...)
	s.activities = NewActivityService(activityRepo, userRepo, ranking.New(nil, nil), opts...)

	s.Require().NoError(s.activities.Seed(context.Background()))
	for _, u := range []session.Principal{
		{UserID: "A", Name: "Ann"},
		{UserID: "B", Name: "Ben"},
		{UserID: "C", Name: "Cat"},
	} {
		_, err := s.users.EnsureProfile(context.Background(), u)
		s.Require().NoError(err)
	}
}

func as(id, name string) context.Context {
	return session.WithPrincipal(context.Background(), session.Principal{UserID: id, Name: name})
}

func (s *ServicesSuite) drain() {
	_, err := s.relay.Drain(context.Background())
	s.Require().NoError(err)
}

func (s *ServicesSuite) TestWeekendTripPoll() {
	a, b := as("A", "Ann"), as("B", "Ben")

	group, err := s.messaging.CreateGroup(a, "Weekend Trip", []string{"B"})
	require.NoError(s.T(), err)
	assert.ElementsMatch(s.T(), []string{"A", "B"}, group.Members)

	msg, err := s.messaging.SendMessage(a, SendMessageInput{
		Text:    "Beach?",
		GroupID: group.ID,
		Poll:    &models.PollInput{Question: "Beach?", Options: []string{"YES", "NO"}},
	})
	require.NoError(s.T(), err)

	_, err = s.polls.Vote(b, msg.ID, 0)
	require.NoError(s.T(), err)

	view, err := s.polls.Poll(a, msg.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"B"}, view.Poll.Options[0].Votes)
	assert.Empty(s.T(), view.Poll.Options[1].Votes)
	assert.Equal(s.T(), 100, view.Tally[0].Percentage)
	assert.Equal(s.T(), 0, view.Tally[1].Percentage)
	assert.Nil(s.T(), view.MyVote)
}

func (s *ServicesSuite) TestFollowNotifiesTarget() {
	a, b := as("A", "Ann"), as("B", "Ben")
	require.NoError(s.T(), s.users.Follow(a, "B"))

	followers, err := s.users.Followers(b, "B")
	require.NoError(s.T(), err)
	require.Len(s.T(), followers, 1)
	assert.Equal(s.T(), "A", followers[0].ID)

	ctx, cancel := context.WithCancel(b)
	defer cancel()
	stream, err := s.notifications.Subscribe(ctx)
	require.NoError(s.T(), err)
	got := <-stream
	require.Len(s.T(), got, 1)
	assert.Equal(s.T(), models.NotificationFollow, got[0].Type)
	assert.Equal(s.T(), "A", got[0].RelatedID)
	assert.False(s.T(), got[0].Read)

	assert.ErrorIs(s.T(), s.users.Follow(a, "B"), apperrors.ErrConflict)
	assert.ErrorIs(s.T(), s.users.Follow(a, "A"), apperrors.ErrInvalidInput)
	assert.ErrorIs(s.T(), s.users.Follow(a, "nobody"), apperrors.ErrNotFound)
}

func (s *ServicesSuite) TestFriendsAreMutualFollows() {
	a, b := as("A", "Ann"), as("B", "Ben")
	require.NoError(s.T(), s.users.Follow(a, "B"))
	require.NoError(s.T(), s.users.Follow(a, "C"))

	friends, err := s.users.Friends(a)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), friends)

	require.NoError(s.T(), s.users.Follow(b, "A"))
	friends, err = s.users.Friends(a)
	require.NoError(s.T(), err)
	require.Len(s.T(), friends, 1)
	assert.Equal(s.T(), "B", friends[0].ID)
}

func (s *ServicesSuite) TestWritesRequireASignedInUser() {
	anon := context.Background()

	_, err := s.messaging.CreateGroup(anon, "Nope", nil)
	assert.ErrorIs(s.T(), err, apperrors.ErrUnauthenticated)
	_, err = s.messaging.SendMessage(anon, SendMessageInput{Text: "hi"})
	assert.ErrorIs(s.T(), err, apperrors.ErrUnauthenticated)
	_, err = s.polls.Vote(anon, "m", 0)
	assert.ErrorIs(s.T(), err, apperrors.ErrUnauthenticated)
	assert.ErrorIs(s.T(), s.users.Follow(anon, "B"), apperrors.ErrUnauthenticated)
	_, err = s.notifications.MarkAllRead(anon)
	assert.ErrorIs(s.T(), err, apperrors.ErrUnauthenticated)

	pending, err := memory.NewOutboxRepository(s.db).Pending(context.Background(), 10)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), pending)
}

func (s *ServicesSuite) TestGroupMessageNotifiesOtherMembers() {
	a, b, c := as("A", "Ann"), as("B", "Ben"), as("C", "Cat")
	group, err := s.messaging.CreateGroup(a, "Climbers", []string{"B", "C"})
	require.NoError(s.T(), err)
	s.drain()

	_, err = s.messaging.SendMessage(b, SendMessageInput{Text: "Saturday?", GroupID: group.ID})
	require.NoError(s.T(), err)
	s.drain()

	for _, ctx := range []context.Context{a, c} {
		page, err := s.notifications.List(ctx, 1, 10)
		require.NoError(s.T(), err)
		require.NotEmpty(s.T(), page.Notifications)
		latest := page.Notifications[0]
		assert.Equal(s.T(), models.NotificationMessage, latest.Type)
		assert.Equal(s.T(), "Saturday?", latest.Text)
		assert.Equal(s.T(), group.ID, latest.RelatedID)
		assert.Equal(s.T(), "Ben", latest.UserName)
	}

	own, err := s.notifications.List(b, 1, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), own.Notifications, 1)
	assert.Equal(s.T(), "added you to Climbers", own.Notifications[0].Text)
	assert.Equal(s.T(), group.ID, own.Notifications[0].RelatedID)
}

func (s *ServicesSuite) TestGlobalAndUnknownGroupMessagesDoNotNotify() {
	a := as("A", "Ann")
	msg, err := s.messaging.SendMessage(a, SendMessageInput{Text: "hello world"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.GlobalChannel, msg.GroupID)

	_, err = s.messaging.SendMessage(a, SendMessageInput{Text: "anyone?", GroupID: "ghost"})
	require.NoError(s.T(), err)
	s.drain()

	for _, id := range []string{"B", "C"} {
		count, err := s.notifications.UnreadCount(as(id, ""))
		require.NoError(s.T(), err)
		assert.Zero(s.T(), count)
	}
}

func (s *ServicesSuite) TestSendMessageValidation() {
	a := as("A", "Ann")
	tests := []struct {
		name string
		in   SendMessageInput
	}{
		{"empty", SendMessageInput{Text: "   "}},
		{"poll without question", SendMessageInput{Poll: &models.PollInput{Options: []string{"a", "b"}}}},
		{"poll with one option", SendMessageInput{Poll: &models.PollInput{Question: "q", Options: []string{"a", " "}}}},
		{"attendance poll with custom options", SendMessageInput{Poll: &models.PollInput{Question: "q", Kind: models.PollAttendance, Options: []string{"Sure", "Nope"}}}},
		{"attendance poll with options reversed", SendMessageInput{Poll: &models.PollInput{Question: "q", Kind: models.PollAttendance, Options: []string{"NO", "YES"}}}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.messaging.SendMessage(a, tt.in)
			s.ErrorIs(err, apperrors.ErrInvalidInput)
		})
	}

	ctx, cancel := context.WithCancel(a)
	defer cancel()
	stream, err := s.messaging.SubscribeToMessages(ctx, "")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), <-stream)
}

func (s *ServicesSuite) TestMessagesStreamInTimestampOrder() {
	a := as("A", "Ann")
	ctx, cancel := context.WithCancel(a)
	defer cancel()

	for _, text := range []string{"one", "two", "three"} {
		_, err := s.messaging.SendMessage(a, SendMessageInput{Text: text, GroupID: "g"})
		require.NoError(s.T(), err)
	}
	stream, err := s.messaging.SubscribeToMessages(ctx, "g")
	require.NoError(s.T(), err)
	msgs := <-stream
	require.Len(s.T(), msgs, 3)
	assert.Equal(s.T(), "one", msgs[0].Text)
	assert.Equal(s.T(), "three", msgs[2].Text)
	assert.True(s.T(), msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
}

func (s *ServicesSuite) TestLeaveGroupRemovesItFromStream() {
	a, b := as("A", "Ann"), as("B", "Ben")
	group, err := s.messaging.CreateGroup(a, "Runners", []string{"B"})
	require.NoError(s.T(), err)

	ctx, cancel := context.WithCancel(b)
	defer cancel()
	stream, err := s.messaging.SubscribeToGroups(ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), <-stream, 1)

	require.NoError(s.T(), s.messaging.LeaveGroup(b, group.ID))
	select {
	case groups := <-stream:
		assert.Empty(s.T(), groups)
	case <-time.After(2 * time.Second):
		s.T().Fatal("group stream did not update")
	}
}

func (s *ServicesSuite) TestAddMembers() {
	a, c := as("A", "Ann"), as("C", "Cat")
	group, err := s.messaging.CreateGroup(a, "Chess", nil)
	require.NoError(s.T(), err)

	_, err = s.messaging.AddMembers(c, group.ID, []string{"C"})
	assert.ErrorIs(s.T(), err, apperrors.ErrPermissionDenied)

	updated, err := s.messaging.AddMembers(a, group.ID, []string{"B", "A", "B"})
	require.NoError(s.T(), err)
	assert.ElementsMatch(s.T(), []string{"A", "B"}, updated.Members)
	s.drain()

	count, err := s.notifications.UnreadCount(as("B", "Ben"))
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, count)
}

func (s *ServicesSuite) TestRevoteMovesTheVote() {
	a, b := as("A", "Ann"), as("B", "Ben")
	msg, err := s.messaging.SendMessage(a, SendMessageInput{
		GroupID: "g",
		Poll:    &models.PollInput{Question: "Where?", Options: []string{"Park", "Lake", "Bar"}},
	})
	require.NoError(s.T(), err)

	_, err = s.polls.Vote(b, msg.ID, 0)
	require.NoError(s.T(), err)
	view, err := s.polls.Vote(b, msg.ID, 2)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), view.Poll.Options[0].Votes)
	assert.Equal(s.T(), []string{"B"}, view.Poll.Options[2].Votes)
	require.NotNil(s.T(), view.MyVote)
	assert.Equal(s.T(), 2, *view.MyVote)

	view, err = s.polls.Vote(a, msg.ID, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, view.Poll.TotalVotes())

	_, err = s.polls.Vote(a, msg.ID, 3)
	assert.ErrorIs(s.T(), err, apperrors.ErrInvalidInput)
}

func (s *ServicesSuite) TestSameUserConcurrentVotesLeaveOneVote() {
	a := as("A", "Ann")
	msg, err := s.messaging.SendMessage(a, SendMessageInput{
		GroupID: "g",
		Poll:    &models.PollInput{Question: "Q", Options: []string{"x", "y"}},
	})
	require.NoError(s.T(), err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.polls.Vote(a, msg.ID, i%2)
		}(i)
	}
	wg.Wait()

	view, err := s.polls.Poll(a, msg.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 1, view.Poll.TotalVotes())
}

func (s *ServicesSuite) TestShareActivityAndConfirmedEvents() {
	a, b := as("A", "Ann"), as("B", "Ben")
	group, err := s.messaging.CreateGroup(a, "Foodies", []string{"B"})
	require.NoError(s.T(), err)

	msg, err := s.polls.ShareActivity(a, "2", group.ID)
	require.NoError(s.T(), err)
	activity, err := s.activities.Get(a, "2")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Check out "+activity.Name+"!", msg.Text)
	require.NotNil(s.T(), msg.Poll)
	assert.Equal(s.T(), models.PollAttendance, msg.Poll.Kind)
	assert.Equal(s.T(), "Who's down for "+activity.Name+"?", msg.Poll.Question)

	events, err := s.polls.ConfirmedEvents(b)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), events)

	_, err = s.polls.Vote(b, msg.ID, 0)
	require.NoError(s.T(), err)
	events, err = s.polls.ConfirmedEvents(b)
	require.NoError(s.T(), err)
	require.Len(s.T(), events, 1)
	assert.Equal(s.T(), "2", events[0].Activity.ID)
	assert.Equal(s.T(), []string{"B"}, events[0].Attendees)

	_, err = s.polls.Vote(b, msg.ID, 1)
	require.NoError(s.T(), err)
	events, err = s.polls.ConfirmedEvents(b)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), events)

	_, err = s.polls.ShareActivity(a, "missing", group.ID)
	assert.ErrorIs(s.T(), err, apperrors.ErrNotFound)
}

func (s *ServicesSuite) TestMarkAllReadLeavesLaterNotificationsUnread() {
	a, b, c := as("A", "Ann"), as("B", "Ben"), as("C", "Cat")
	require.NoError(s.T(), s.users.Follow(a, "C"))
	require.NoError(s.T(), s.users.Follow(b, "C"))

	n, err := s.notifications.MarkAllRead(c)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 2, n)

	require.NoError(s.T(), s.users.Unfollow(a, "C"))
	require.NoError(s.T(), s.users.Follow(a, "C"))

	count, err := s.notifications.UnreadCount(c)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, count)

	page, err := s.notifications.List(c, 1, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), page.Notifications, 3)
	assert.False(s.T(), page.Notifications[0].Read)
	assert.True(s.T(), page.Notifications[1].Read)

	assert.ErrorIs(s.T(), s.notifications.MarkRead(a, page.Notifications[0].ID), apperrors.ErrNotFound)
	require.NoError(s.T(), s.notifications.MarkRead(c, page.Notifications[0].ID))
}

func (s *ServicesSuite) TestLikesAndComments() {
	a, b := as("A", "Ann"), as("B", "Ben")
	post, err := s.posts.Create(a, models.CreatePostRequest{ImageURL: "https://img.example.com/1.jpg", Caption: " sunset "})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "sunset", post.Caption)
	assert.Equal(s.T(), "Ann", post.UserName)

	liked, err := s.posts.ToggleLike(a, post.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), liked)
	liked, err = s.posts.ToggleLike(b, post.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), liked)
	liked, err = s.posts.ToggleLike(b, post.ID)
	require.NoError(s.T(), err)
	assert.False(s.T(), liked)

	_, err = s.posts.AddComment(b, post.ID, "wow")
	require.NoError(s.T(), err)
	_, err = s.posts.AddComment(a, post.ID, "thanks")
	require.NoError(s.T(), err)
	_, err = s.posts.AddComment(b, post.ID, "  ")
	assert.ErrorIs(s.T(), err, apperrors.ErrInvalidInput)
	s.drain()

	page, err := s.notifications.List(a, 1, 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), page.Notifications, 2)
	assert.Equal(s.T(), models.NotificationComment, page.Notifications[0].Type)
	assert.Equal(s.T(), "wow", page.Notifications[0].Text)
	assert.Equal(s.T(), models.NotificationLike, page.Notifications[1].Type)
	assert.Equal(s.T(), post.ID, page.Notifications[1].RelatedID)

	posts, err := s.posts.List(a)
	require.NoError(s.T(), err)
	require.Len(s.T(), posts, 1)
	assert.Equal(s.T(), 1, posts[0].Likes)
	assert.Len(s.T(), posts[0].Comments, 2)
}

func (s *ServicesSuite) TestProfilesAndSearch() {
	a := as("A", "Ann")
	p, err := s.users.Me(a)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.DefaultAvatarURL("A"), p.Avatar)

	name := "  Annika "
	p, err = s.users.UpdateProfile(a, models.ProfileUpdate{Name: &name, Preferences: []string{"Food", "Food", "Art"}})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Annika", p.Name)
	assert.Equal(s.T(), []string{"Food", "Art"}, p.Preferences)

	blank := " "
	_, err = s.users.UpdateProfile(a, models.ProfileUpdate{Name: &blank})
	assert.ErrorIs(s.T(), err, apperrors.ErrInvalidInput)

	found, err := s.users.Search(as("B", "Ben"), "an")
	require.NoError(s.T(), err)
	require.Len(s.T(), found, 1)
	assert.Equal(s.T(), "A", found[0].ID)

	found, err = s.users.Search(a, "an")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), found)

	require.NoError(s.T(), s.users.AddToWishlist(a, "3"))
	p, err = s.users.Me(a)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"3"}, p.Wishlist)
}

func (s *ServicesSuite) TestEnsureProfileDefaultsAndSignup() {
	p, err := s.users.EnsureProfile(context.Background(), session.Principal{UserID: "D"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.DefaultUserName, p.Name)

	again, err := s.users.EnsureProfile(context.Background(), session.Principal{UserID: "D", Name: "Dora"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), models.DefaultUserName, again.Name)

	created, err := s.users.Signup(context.Background(), models.SignupRequest{Email: "e@example.com", Password: "secret1", DisplayName: "Eve"})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "new-uid", created.ID)
	assert.Equal(s.T(), "Eve", created.Name)

	failing := NewUserService(memory.NewUserRepository(s.db), memory.NewFollowRepository(s.db), fakeIdentity{err: errors.New("email exists")})
	_, err = failing.Signup(context.Background(), models.SignupRequest{Email: "e@example.com", Password: "secret1"})
	assert.Error(s.T(), err)
}

func (s *ServicesSuite) TestActivities() {
	a := as("A", "Ann")
	all := s.activities.List(a)
	require.Len(s.T(), all, 5)
	for _, act := range all {
		assert.NotEmpty(s.T(), act.Location, fmt.Sprintf("activity %s", act.ID))
	}

	nearby := s.activities.Nearby(a, geo.Point{Lat: 48.1374, Lng: 11.5755})
	require.NotEmpty(s.T(), nearby)
	for i := 1; i < len(nearby); i++ {
		assert.LessOrEqual(s.T(), nearby[i-1].DistanceKm, nearby[i].DistanceKm)
	}
	assert.NotEmpty(s.T(), nearby[0].Distance)

	ranked, err := s.activities.Ranked(a)
	require.NoError(s.T(), err)
	require.Len(s.T(), ranked, 4)
	assert.Equal(s.T(), "1", ranked[0].ID)

	_, err = s.activities.Ranked(context.Background())
	assert.ErrorIs(s.T(), err, apperrors.ErrUnauthenticated)
}
