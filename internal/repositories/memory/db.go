// Package memory implements every repository over a single mutex-guarded in-process database.
// Writes that span several collections happen under one lock, which gives them the same
// all-or-nothing behaviour as the transactional stores.
package memory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/realtime"
)

// DB holds all collections.
type DB struct {
	mu            sync.RWMutex
	users         map[string]*models.UserProfile
	relations     map[relationKey]models.Relation
	notifications map[string]*models.Notification
	activities    map[string]models.Activity
	posts         map[string]*models.Post
	groups        map[string]*models.ChatGroup
	messages      map[string]*models.Message
	outbox        map[string]*models.OutboxEvent

	bus    realtime.Bus
	logger *slog.Logger
	newID  func() string
}

type relationKey struct {
	from, to string
	kind     models.RelationKind
}

// Option configures a DB
type Option func(*DB)

// WithBus publishes change signals on bus instead of a private in-process bus
func WithBus(bus realtime.Bus) Option {
	return func(db *DB) { db.bus = bus }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(db *DB) { db.logger = logger }
}

// WithIDGenerator overrides how document ids are made
func WithIDGenerator(fn func() string) Option {
	return func(db *DB) { db.newID = fn }
}

// NewDB creates an empty database.
func NewDB(opts ...Option) *DB {
	db := &DB{
		users:         make(map[string]*models.UserProfile),
		relations:     make(map[relationKey]models.Relation),
		notifications: make(map[string]*models.Notification),
		activities:    make(map[string]models.Activity),
		posts:         make(map[string]*models.Post),
		groups:        make(map[string]*models.ChatGroup),
		messages:      make(map[string]*models.Message),
		outbox:        make(map[string]*models.OutboxEvent),
		logger:        slog.Default(),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(db)
	}
	if db.bus == nil {
		db.bus = realtime.NewMemoryBus()
	}
	return db
}

// Bus returns the bus change signals are published on.
func (db *DB) Bus() realtime.Bus {
	return db.bus
}

func (db *DB) publish(topics ...string) {
	for _, t := range topics {
		if err := db.bus.Publish(context.Background(), t); err != nil {
			db.logger.Warn("publishing change signal", "topic", t, "error", err)
		}
	}
}

// addOutbox stores ev. Callers hold db.mu.
func (db *DB) addOutbox(ev *models.OutboxEvent) {
	if ev == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = db.newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.Delivered = false
	stored := *ev
	stored.Recipients = append([]string(nil), ev.Recipients...)
	db.outbox[ev.ID] = &stored
}

func cloneStrings(s []string) []string {
	return append([]string{}, s...)
}

func cloneProfile(p *models.UserProfile) models.UserProfile {
	c := *p
	c.Preferences = cloneStrings(p.Preferences)
	c.Wishlist = cloneStrings(p.Wishlist)
	c.Following = []string{}
	c.Followers = []string{}
	return c
}

func cloneGroup(g *models.ChatGroup) models.ChatGroup {
	c := *g
	c.Members = cloneStrings(g.Members)
	return c
}

func cloneMessage(m *models.Message) models.Message {
	c := *m
	c.Poll = m.Poll.Clone()
	return c
}

func clonePost(p *models.Post) models.Post {
	c := *p
	c.LikedBy = cloneStrings(p.LikedBy)
	c.Comments = append([]models.Comment{}, p.Comments...)
	return c
}

func sortEvents(evs []models.OutboxEvent) {
	sort.Slice(evs, func(i, j int) bool {
		if evs[i].CreatedAt.Equal(evs[j].CreatedAt) {
			return evs[i].ID < evs[j].ID
		}
		return evs[i].CreatedAt.Before(evs[j].CreatedAt)
	})
}
