package repositories

import (
	"sort"

	"github.com/anonto42/minglr/backend/internal/models"
)

// SortMessages orders messages by creation time, breaking ties by id so every reader sees the same order.
func SortMessages(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}

// SortGroups orders groups by creation time, newest first
func SortGroups(groups []models.ChatGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
}

// SortPostsNewestFirst orders posts by creation time, newest first
func SortPostsNewestFirst(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}

// SortNotificationsNewestFirst orders notifications by creation time, newest first
func SortNotificationsNewestFirst(ns []models.Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].CreatedAt.Equal(ns[j].CreatedAt) {
			return ns[i].ID > ns[j].ID
		}
		return ns[i].CreatedAt.After(ns[j].CreatedAt)
	})
}
