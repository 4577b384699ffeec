package models

import "time"

// Post is a photo shared to the feed (MongoDB). Comments are embedded and append-only.
type Post struct {
	ID         string    `json:"id" bson:"_id"`
	UserID     string    `json:"userId" bson:"user_id"`
	UserName   string    `json:"userName" bson:"user_name"`
	UserAvatar string    `json:"userAvatar" bson:"user_avatar"`
	ImageURL   string    `json:"imageUrl" bson:"image_url"`
	ActivityID string    `json:"activityId,omitempty" bson:"activity_id,omitempty"`
	Caption    string    `json:"caption" bson:"caption"`
	Likes      int       `json:"likes" bson:"likes"`
	LikedBy    []string  `json:"likedBy" bson:"liked_by"`
	Comments   []Comment `json:"comments" bson:"comments"`
	CreatedAt  time.Time `json:"timestamp" bson:"created_at"`
}

// LikedByUser reports whether userID has liked the post
func (p *Post) LikedByUser(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	ImageURL   string `json:"imageUrl" validate:"required,url"`
	ActivityID string `json:"activityId,omitempty" validate:"omitempty,max=128"`
	Caption    string `json:"caption" validate:"max=2200"`
}
