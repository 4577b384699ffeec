package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
)

// The gorm repositories run against in-memory SQLite here; every query they issue is portable.
type GormRepositoriesSuite struct {
	suite.Suite
	ctx           context.Context
	db            *gorm.DB
	bus           *realtime.MemoryBus
	users         *PostgresUserRepository
	follows       *PostgresFollowRepository
	notifications *PostgresNotificationRepository
}

func TestGormRepositoriesSuite(t *testing.T) {
	suite.Run(t, new(GormRepositoriesSuite))
}

func (s *GormRepositoriesSuite) SetupTest() {
	s.ctx = context.Background()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(s.T().Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.Require().NoError(Migrate(db))
	s.db = db
	s.bus = realtime.NewMemoryBus()
	s.users = NewPostgresUserRepository(db)
	s.follows = NewPostgresFollowRepository(db, s.bus, nil)
	s.notifications = NewPostgresNotificationRepository(db, s.bus, nil)
}

func (s *GormRepositoriesSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	if err == nil {
		_ = sqlDB.Close()
	}
}

func (s *GormRepositoriesSuite) createUser(id, name string) {
	s.Require().NoError(s.users.CreateProfile(s.ctx, models.NewProfile(id, name, "", id+"@example.com")))
}

func (s *GormRepositoriesSuite) TestCreateAndGetProfile() {
	s.createUser("u1", "Alice")

	p, err := s.users.GetProfile(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Alice", p.Name)
	assert.Equal(s.T(), models.DefaultAvatarURL("u1"), p.Avatar)
	assert.Empty(s.T(), p.Following)
	assert.NotNil(s.T(), p.Wishlist)

	err = s.users.CreateProfile(s.ctx, models.NewProfile("u1", "Again", "", ""))
	assert.ErrorIs(s.T(), err, apperrors.ErrConflict)

	_, err = s.users.GetProfile(s.ctx, "nobody")
	assert.ErrorIs(s.T(), err, apperrors.ErrNotFound)
}

func (s *GormRepositoriesSuite) TestUpdateProfileAndWishlist() {
	s.createUser("u1", "Alice")
	name := "Alicia"
	p, err := s.users.UpdateProfile(s.ctx, "u1", models.ProfileUpdate{Name: &name, Preferences: []string{"hiking"}})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Alicia", p.Name)
	assert.Equal(s.T(), []string{"hiking"}, p.Preferences)

	require.NoError(s.T(), s.users.AddToWishlist(s.ctx, "u1", "3"))
	require.NoError(s.T(), s.users.AddToWishlist(s.ctx, "u1", "3"))
	require.NoError(s.T(), s.users.AddToWishlist(s.ctx, "u1", "5"))
	require.NoError(s.T(), s.users.RemoveFromWishlist(s.ctx, "u1", "3"))

	p, err = s.users.GetProfile(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"5"}, p.Wishlist)
}

func (s *GormRepositoriesSuite) TestSearchByNamePrefixEscapesWildcards() {
	s.createUser("u1", "Alice")
	s.createUser("u2", "alfred")
	s.createUser("u3", "Bob")
	s.createUser("u4", "100%_real")

	got, err := s.users.SearchByNamePrefix(s.ctx, "AL", "u2", 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 1)
	assert.Equal(s.T(), "u1", got[0].ID)

	got, err = s.users.SearchByNamePrefix(s.ctx, "100%", "", 10)
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 1)

	got, err = s.users.SearchByNamePrefix(s.ctx, "%", "", 10)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), got)
}

func (s *GormRepositoriesSuite) TestFollowIsAsymmetricAndNotifies() {
	s.createUser("a", "Ann")
	s.createUser("b", "Bob")

	n := &models.Notification{ID: "follow-a-b", UserID: "b", ActorID: "a", UserName: "Ann", Type: models.NotificationFollow, Text: "started following you"}
	require.NoError(s.T(), s.follows.Follow(s.ctx, "a", "b", n))
	assert.ErrorIs(s.T(), s.follows.Follow(s.ctx, "a", "b", nil), apperrors.ErrConflict)

	ab, err := s.follows.IsFollowing(s.ctx, "a", "b")
	require.NoError(s.T(), err)
	ba, err := s.follows.IsFollowing(s.ctx, "b", "a")
	require.NoError(s.T(), err)
	assert.True(s.T(), ab)
	assert.False(s.T(), ba)

	a, err := s.users.GetProfile(s.ctx, "a")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"b"}, a.Following)

	followers, err := s.follows.FollowerIDs(s.ctx, "b")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"a"}, followers)

	count, err := s.notifications.UnreadCount(s.ctx, "b")
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 1, count)

	require.NoError(s.T(), s.follows.Unfollow(s.ctx, "a", "b"))
	assert.ErrorIs(s.T(), s.follows.Unfollow(s.ctx, "a", "b"), apperrors.ErrNotFound)
}

func (s *GormRepositoriesSuite) TestNotificationLifecycle() {
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		created, err := s.notifications.CreateIfAbsent(s.ctx, &models.Notification{
			ID: fmt.Sprintf("n%d", i), UserID: "u", Type: models.NotificationMessage, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(s.T(), err)
		assert.True(s.T(), created)
	}
	created, err := s.notifications.CreateIfAbsent(s.ctx, &models.Notification{ID: "n1", UserID: "u"})
	require.NoError(s.T(), err)
	assert.False(s.T(), created)

	page, total, err := s.notifications.ListByRecipient(s.ctx, "u", 1, 2)
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 3, total)
	require.Len(s.T(), page, 2)
	assert.Equal(s.T(), "n2", page[0].ID)

	assert.ErrorIs(s.T(), s.notifications.MarkRead(s.ctx, "n0", "intruder"), apperrors.ErrNotFound)
	require.NoError(s.T(), s.notifications.MarkRead(s.ctx, "n0", "u"))

	changed, err := s.notifications.MarkAllRead(s.ctx, "u")
	require.NoError(s.T(), err)
	assert.EqualValues(s.T(), 2, changed)

	count, err := s.notifications.UnreadCount(s.ctx, "u")
	require.NoError(s.T(), err)
	assert.Zero(s.T(), count)
}

func (s *GormRepositoriesSuite) TestWatchReloadsAfterInsert() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	stream, err := s.notifications.Watch(ctx, "u")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), <-stream)

	_, err = s.notifications.CreateIfAbsent(s.ctx, &models.Notification{ID: "live", UserID: "u", Type: models.NotificationLike})
	require.NoError(s.T(), err)

	select {
	case got := <-stream:
		require.Len(s.T(), got, 1)
		assert.Equal(s.T(), "live", got[0].ID)
	case <-time.After(2 * time.Second):
		s.T().Fatal("watch did not reload")
	}
}
