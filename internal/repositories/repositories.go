package repositories

import (
	"context"
	"time"

	"github.com/anonto42/minglr/backend/internal/models"
)

// UserRepository stores profiles (PostgreSQL).
type UserRepository interface {
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) (*models.UserProfile, error)
	AddToWishlist(ctx context.Context, id, activityID string) error
	RemoveFromWishlist(ctx context.Context, id, activityID string) error
	SearchByNamePrefix(ctx context.Context, prefix, excludeID string, limit int) ([]models.UserProfile, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.UserProfile, error)
}

// FollowRepository stores the follow relation (PostgreSQL).
type FollowRepository interface {
	// Follow writes the edge and the notification for the followed user in one transaction.
	Follow(ctx context.Context, followerID, followingID string, notification *models.Notification) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	FollowingIDs(ctx context.Context, userID string) ([]string, error)
	FollowerIDs(ctx context.Context, userID string) ([]string, error)
}

// NotificationRepository stores notifications (PostgreSQL).
type NotificationRepository interface {
	// CreateIfAbsent inserts n unless a notification with the same id exists.
	CreateIfAbsent(ctx context.Context, n *models.Notification) (bool, error)
	ListByRecipient(ctx context.Context, userID string, page, limit int) ([]models.Notification, int64, error)
	ListAll(ctx context.Context, userID string) ([]models.Notification, error)
	GetGrouped(ctx context.Context, userID string, now time.Time) (*models.GroupedNotifications, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	// Watch streams the user's notifications, newest first.
	Watch(ctx context.Context, userID string) (<-chan []models.Notification, error)
}

// ActivityRepository stores the activity catalogue (MongoDB).
type ActivityRepository interface {
	List(ctx context.Context) ([]models.Activity, error)
	Get(ctx context.Context, id string) (*models.Activity, error)
	Count(ctx context.Context) (int64, error)
	Upsert(ctx context.Context, activity models.Activity) error
}

// PostRepository stores feed posts (MongoDB).
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Get(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, limit int64) ([]models.Post, error)
	// ToggleLike likes or unlikes the post for userID and reports whether it is now liked.
	// event is stored with the change only when the post becomes liked.
	ToggleLike(ctx context.Context, postID, userID string, event *models.OutboxEvent) (bool, error)
	// AddComment appends the comment and stores event, if any, with it.
	AddComment(ctx context.Context, postID string, comment models.Comment, event *models.OutboxEvent) error
	// Watch streams all posts, newest first.
	Watch(ctx context.Context, limit int64) (<-chan []models.Post, error)
}

// GroupRepository stores chat groups (Firestore).
type GroupRepository interface {
	Create(ctx context.Context, group *models.ChatGroup, event *models.OutboxEvent) error
	Get(ctx context.Context, id string) (*models.ChatGroup, error)
	AddMembers(ctx context.Context, groupID string, memberIDs []string, event *models.OutboxEvent) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	// WatchForMember streams the groups userID belongs to.
	WatchForMember(ctx context.Context, userID string) (<-chan []models.ChatGroup, error)
}

// MessageRepository stores chat messages (Firestore).
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message, event *models.OutboxEvent) error
	Get(ctx context.Context, id string) (*models.Message, error)
	// Vote applies a vote to the message's poll atomically and returns the updated poll.
	Vote(ctx context.Context, messageID, userID string, option int) (*models.Poll, error)
	// WatchChannel streams a channel's messages sorted by creation time ascending.
	WatchChannel(ctx context.Context, channel string) (<-chan []models.Message, error)
	// WatchPolls streams every message carrying a poll of the given kind.
	WatchPolls(ctx context.Context, kind models.PollKind) (<-chan []models.Message, error)
}

// OutboxRepository is read by the fan-out relay.
type OutboxRepository interface {
	Pending(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, id string, at time.Time) error
}
