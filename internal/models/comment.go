package models

import "time"

// Comment is embedded in a post
type Comment struct {
	ID         string    `json:"id" bson:"id"`
	UserID     string    `json:"userId" bson:"user_id"`
	UserName   string    `json:"userName" bson:"user_name"`
	UserAvatar string    `json:"userAvatar" bson:"user_avatar"`
	Text       string    `json:"text" bson:"text"`
	CreatedAt  time.Time `json:"timestamp" bson:"created_at"`
}

// CreateCommentRequest defines the request body for commenting on a post
type CreateCommentRequest struct {
	Text string `json:"text" validate:"required,min=1,max=1000"`
}
