package main

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/minglr/backend/internal/fanout"
	"github.com/anonto42/minglr/backend/internal/handlers"
	"github.com/anonto42/minglr/backend/internal/media"
	"github.com/anonto42/minglr/backend/internal/middleware"
	"github.com/anonto42/minglr/backend/internal/realtime"
	"github.com/anonto42/minglr/backend/internal/repositories"
	"github.com/anonto42/minglr/backend/internal/repositories/memory"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/anonto42/minglr/backend/pkg/config"
	"github.com/anonto42/minglr/backend/pkg/firebase"
)

// stores is the repository set the services run on.
type stores struct {
	users         repositories.UserRepository
	follows       repositories.FollowRepository
	notifications repositories.NotificationRepository
	activities    repositories.ActivityRepository
	posts         repositories.PostRepository
	groups        repositories.GroupRepository
	messages      repositories.MessageRepository
	outboxes      []fanout.Source

	blobs    media.BlobStore
	identity services.IdentityProvider
	verifier middleware.TokenVerifier
	checks   map[string]handlers.Pinger
	closers  []func()
}

func (s *stores) uploader(logger *slog.Logger) *media.Uploader {
	if s.blobs == nil {
		return nil
	}
	return media.NewUploader(s.blobs, media.WithLogger(logger))
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newCloudStores wires Firestore (chat), MongoDB (feed) and PostgreSQL (people and notifications).
func newCloudStores(ctx context.Context, cfg *config.Config, bus realtime.Bus, logger *slog.Logger) (*stores, error) {
	db, err := config.InitDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st := &stores{checks: map[string]handlers.Pinger{"databases": db.Ping}}
	st.closers = append(st.closers, func() {
		if err := db.CloseDB(); err != nil {
			logger.Warn("closing databases", "error", err)
		}
	})

	if err := repositories.Migrate(db.Postgres); err != nil {
		st.close()
		return nil, fmt.Errorf("migrate postgres: %w", err)
	}
	mongoDB := db.Mongo.Database(cfg.MongoDatabase)
	if err := repositories.EnsureIndexes(ctx, mongoDB); err != nil {
		st.close()
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	fb, err := firebase.InitFirebase(ctx, firebase.Settings{
		CredentialsPath: cfg.FirebaseCredentialsPath,
		ProjectID:       cfg.FirebaseProjectID,
		StorageBucket:   cfg.FirebaseStorageBucket,
	})
	if err != nil {
		st.close()
		return nil, err
	}
	st.closers = append(st.closers, func() {
		if err := fb.Close(); err != nil {
			logger.Warn("closing firestore", "error", err)
		}
	})

	st.users = repositories.NewPostgresUserRepository(db.Postgres)
	st.follows = repositories.NewPostgresFollowRepository(db.Postgres, bus, logger)
	st.notifications = repositories.NewPostgresNotificationRepository(db.Postgres, bus, logger)
	st.activities = repositories.NewMongoActivityRepository(mongoDB)
	st.posts = repositories.NewMongoPostRepository(mongoDB, logger)
	st.groups = repositories.NewFirestoreGroupRepository(fb.Firestore, logger)
	st.messages = repositories.NewFirestoreMessageRepository(fb.Firestore, logger)
	st.outboxes = []fanout.Source{
		{Name: "firestore", Outbox: repositories.NewFirestoreOutboxRepository(fb.Firestore)},
		{Name: "mongo", Outbox: repositories.NewMongoOutboxRepository(mongoDB)},
	}
	st.identity = firebase.NewIdentityProvider(fb.AuthClient)
	st.verifier = fb.AuthClient
	if fb.Bucket != nil {
		st.blobs = media.NewGCSStore(fb.Bucket, fb.BucketName)
	}
	return st, nil
}

// newMemoryStores keeps everything in process. Sessions still need a Firebase ID token
// verifier, so only pre-issued JWTs work unless credentials are available.
func newMemoryStores(bus realtime.Bus, logger *slog.Logger) *stores {
	db := memory.NewDB(memory.WithBus(bus), memory.WithLogger(logger))
	logger.Warn("running with in-memory stores; data is lost on restart")
	return &stores{
		users:         memory.NewUserRepository(db),
		follows:       memory.NewFollowRepository(db),
		notifications: memory.NewNotificationRepository(db),
		activities:    memory.NewActivityRepository(db),
		posts:         memory.NewPostRepository(db),
		groups:        memory.NewGroupRepository(db),
		messages:      memory.NewMessageRepository(db),
		outboxes:      []fanout.Source{{Name: "memory", Outbox: memory.NewOutboxRepository(db)}},
		blobs:         media.NewMemoryStore("minglr-local"),
		verifier:      rejectingVerifier{},
		checks:        map[string]handlers.Pinger{},
	}
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return nil, fmt.Errorf("firebase is not configured")
}
