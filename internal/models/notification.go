package models

import "time"

// NotificationType tags what triggered a notification
type NotificationType string

const (
	NotificationLike          NotificationType = "like"
	NotificationComment       NotificationType = "comment"
	NotificationMessage       NotificationType = "message"
	NotificationFriendRequest NotificationType = "friend_request"
	NotificationEvent         NotificationType = "event"
	NotificationFollow        NotificationType = "follow"
)

// Notification is one recipient's record of something that happened (PostgreSQL).
// The only state change is Read going from false to true.
type Notification struct {
	ID        string           `json:"id" gorm:"primaryKey;size:64"`
	UserID    string           `json:"userId" gorm:"size:128;index:idx_notifications_user_read"`
	ActorID   string           `json:"actorId,omitempty" gorm:"size:128"`
	UserName  string           `json:"userName"` // actor display name
	Type      NotificationType `json:"type" gorm:"size:30;index"`
	Text      string           `json:"text,omitempty"`
	RelatedID string           `json:"relatedId,omitempty" gorm:"size:128"`
	Read      bool             `json:"read" gorm:"column:is_read;default:false;index:idx_notifications_user_read"`
	CreatedAt time.Time        `json:"timestamp" gorm:"index"`
}

// GroupedNotifications buckets a user's notifications by age
type GroupedNotifications struct {
	Today     []Notification `json:"today"`
	Yesterday []Notification `json:"yesterday"`
	ThisWeek  []Notification `json:"thisWeek"`
	Older     []Notification `json:"older"`
}
