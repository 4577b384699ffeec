package models

import "time"

// GlobalChannel is the public channel every user can read and post to.
const GlobalChannel = "global"

// Message is a chat line on a channel. Only the embedded poll's votes change after creation.
type Message struct {
	ID         string    `json:"id" firestore:"-"`
	SenderID   string    `json:"userId" firestore:"userId"`
	SenderName string    `json:"userName" firestore:"userName"`
	Text       string    `json:"text" firestore:"text"`
	ActivityID string    `json:"activityId,omitempty" firestore:"activityId,omitempty"`
	GroupID    string    `json:"groupId" firestore:"groupId"`
	Poll       *Poll     `json:"poll,omitempty" firestore:"poll,omitempty"`
	CreatedAt  time.Time `json:"timestamp" firestore:"timestamp"`
}

// ChannelOf maps an optional group id to the channel a message is posted on
func ChannelOf(groupID string) string {
	if groupID == "" {
		return GlobalChannel
	}
	return groupID
}

// PollInput is the client shape of a poll attached to a new message
type PollInput struct {
	Question string   `json:"question" validate:"required,max=200"`
	Kind     PollKind `json:"kind,omitempty" validate:"omitempty,oneof=general attendance"`
	Options  []string `json:"options" validate:"required,min=2,max=10"`
}

// SendMessageRequest defines the request body for posting a message
type SendMessageRequest struct {
	Text       string     `json:"text" validate:"max=2000"`
	ActivityID string     `json:"activityId,omitempty"`
	GroupID    string     `json:"groupId,omitempty"`
	Poll       *PollInput `json:"poll,omitempty"`
}

// VoteRequest defines the request body for voting on a poll
type VoteRequest struct {
	Option *int `json:"option" validate:"required,min=0"`
}

// ConfirmedEvent is an activity the user said YES to in an attendance poll
type ConfirmedEvent struct {
	MessageID string    `json:"messageId"`
	GroupID   string    `json:"groupId"`
	Activity  *Activity `json:"activity,omitempty"`
	Question  string    `json:"question"`
	Attendees []string  `json:"attendees"`
	CreatedAt time.Time `json:"timestamp"`
}
