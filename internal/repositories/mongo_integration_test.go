//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
)

// Transactions and change streams need a replica set, so the container runs as a single-node one.
type MongoRepositoriesSuite struct {
	suite.Suite
	container  *tcmongodb.MongoDBContainer
	client     *mongo.Client
	db         *mongo.Database
	posts      *MongoPostRepository
	activities *MongoActivityRepository
	outbox     *MongoOutboxRepository
}

func TestMongoRepositoriesSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(MongoRepositoriesSuite))
}

func (s *MongoRepositoriesSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcmongodb.Run(ctx, "mongo:7", tcmongodb.WithReplicaSet("rs0"))
	s.Require().NoError(err)
	s.container = container

	uri, err := container.ConnectionString(ctx)
	s.Require().NoError(err)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetDirect(true))
	s.Require().NoError(err)
	s.Require().NoError(client.Ping(ctx, nil))
	s.client = client

	s.db = client.Database("minglr_test")
	s.Require().NoError(EnsureIndexes(ctx, s.db))
	s.posts = NewMongoPostRepository(s.db, nil)
	s.activities = NewMongoActivityRepository(s.db)
	s.outbox = NewMongoOutboxRepository(s.db)
}

func (s *MongoRepositoriesSuite) TearDownSuite() {
	ctx := context.Background()
	if s.client != nil {
		_ = s.db.Drop(ctx)
		_ = s.client.Disconnect(ctx)
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *MongoRepositoriesSuite) newPost() *models.Post {
	post := &models.Post{UserID: "A", UserName: "Ann", ImageURL: "https://example.com/p.png", Caption: "sunset"}
	s.Require().NoError(s.posts.Create(context.Background(), post))
	return post
}

func likeEvent(postID, actorID string) *models.OutboxEvent {
	return &models.OutboxEvent{
		ID:         uuid.NewString(),
		Type:       models.NotificationLike,
		ActorID:    actorID,
		Recipients: []string{"A"},
		RelatedID:  postID,
		CreatedAt:  time.Now().UTC(),
	}
}

func (s *MongoRepositoriesSuite) pendingFor(postID string) []models.OutboxEvent {
	pending, err := s.outbox.Pending(context.Background(), 1000)
	s.Require().NoError(err)
	out := []models.OutboxEvent{}
	for _, ev := range pending {
		if ev.RelatedID == postID {
			out = append(out, ev)
		}
	}
	return out
}

func (s *MongoRepositoriesSuite) TestToggleLikeStoresEventOnlyWhenLiking() {
	ctx := context.Background()
	post := s.newPost()

	liked, err := s.posts.ToggleLike(ctx, post.ID, "B", likeEvent(post.ID, "B"))
	s.Require().NoError(err)
	s.True(liked)

	stored, err := s.posts.Get(ctx, post.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.Likes)
	s.Equal([]string{"B"}, stored.LikedBy)
	s.Len(s.pendingFor(post.ID), 1)

	liked, err = s.posts.ToggleLike(ctx, post.ID, "B", likeEvent(post.ID, "B"))
	s.Require().NoError(err)
	s.False(liked)

	stored, err = s.posts.Get(ctx, post.ID)
	s.Require().NoError(err)
	s.Zero(stored.Likes)
	s.Empty(stored.LikedBy)
	s.Len(s.pendingFor(post.ID), 1, "unliking writes no event")

	_, err = s.posts.ToggleLike(ctx, "missing-"+uuid.NewString(), "B", nil)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *MongoRepositoriesSuite) TestConcurrentLikesKeepCountInStep() {
	ctx := context.Background()
	post := s.newPost()

	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			user := fmt.Sprintf("u%d", i)
			_, err := s.posts.ToggleLike(ctx, post.ID, user, likeEvent(post.ID, user))
			return err
		})
	}
	s.Require().NoError(g.Wait())

	stored, err := s.posts.Get(ctx, post.ID)
	s.Require().NoError(err)
	s.Equal(10, stored.Likes)
	s.Len(stored.LikedBy, 10)
	s.Len(s.pendingFor(post.ID), 10)
}

func (s *MongoRepositoriesSuite) TestAddCommentWithEvent() {
	ctx := context.Background()
	post := s.newPost()
	comment := models.Comment{ID: uuid.NewString(), UserID: "B", UserName: "Ben", Text: "wow", CreatedAt: time.Now().UTC()}
	event := &models.OutboxEvent{
		Type:       models.NotificationComment,
		ActorID:    "B",
		Recipients: []string{"A"},
		Text:       "wow",
		RelatedID:  post.ID,
		CreatedAt:  time.Now().UTC(),
	}

	s.Require().NoError(s.posts.AddComment(ctx, post.ID, comment, event))
	stored, err := s.posts.Get(ctx, post.ID)
	s.Require().NoError(err)
	s.Require().Len(stored.Comments, 1)
	s.Equal("wow", stored.Comments[0].Text)

	pending := s.pendingFor(post.ID)
	s.Require().Len(pending, 1)
	s.Equal(models.NotificationComment, pending[0].Type)

	s.Require().NoError(s.outbox.MarkDelivered(ctx, pending[0].ID, time.Now().UTC()))
	s.Empty(s.pendingFor(post.ID))
	s.ErrorIs(s.outbox.MarkDelivered(ctx, "missing-"+uuid.NewString(), time.Now().UTC()), apperrors.ErrNotFound)

	err = s.posts.AddComment(ctx, "missing-"+uuid.NewString(), comment, nil)
	s.ErrorIs(err, apperrors.ErrNotFound)
}

func (s *MongoRepositoriesSuite) TestWatchReloadsOnInsert() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := s.posts.Watch(ctx, 100)
	s.Require().NoError(err)
	awaitSnapshot(s.T(), stream, func([]models.Post) bool { return true })

	post := s.newPost()
	got := awaitSnapshot(s.T(), stream, func(posts []models.Post) bool {
		return len(posts) > 0 && posts[0].ID == post.ID
	})
	s.Equal("sunset", got[0].Caption)

	cancel()
	awaitClosed(s.T(), stream)
}

func (s *MongoRepositoriesSuite) TestActivityUpsert() {
	ctx := context.Background()
	id := "act-" + uuid.NewString()
	s.Require().NoError(s.activities.Upsert(ctx, models.Activity{ID: id, Name: "Kayaking"}))
	s.Require().NoError(s.activities.Upsert(ctx, models.Activity{ID: id, Name: "Kayak tour"}))

	got, err := s.activities.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("Kayak tour", got.Name)

	_, err = s.activities.Get(ctx, "missing-"+uuid.NewString())
	s.ErrorIs(err, apperrors.ErrNotFound)
}
