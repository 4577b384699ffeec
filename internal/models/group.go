package models

import "time"

// ChatGroup is a private channel. Members is an unordered set of user IDs.
type ChatGroup struct {
	ID        string    `json:"id" firestore:"-"`
	Name      string    `json:"name" firestore:"name"`
	Members   []string  `json:"members" firestore:"members"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

// HasMember reports whether userID belongs to the group
func (g *ChatGroup) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// CreateGroupRequest defines the request body for creating a group
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,min=1,max=80"`
	MemberIDs []string `json:"memberIds" validate:"omitempty,max=100,dive,required"`
}

// AddMembersRequest defines the request body for inviting users into a group
type AddMembersRequest struct {
	MemberIDs []string `json:"memberIds" validate:"required,min=1,max=100,dive,required"`
}
