package models

import "time"

// RelationKind tags an edge of the social graph.
type RelationKind string

// RelationFollow is a one-way follow. Two follow edges in opposite directions make a friendship.
const RelationFollow RelationKind = "follow"

// Relation is a directed edge FromID -> ToID.
type Relation struct {
	FromID    string       `json:"fromId" gorm:"primaryKey;size:128"`
	ToID      string       `json:"toId" gorm:"primaryKey;size:128;index"`
	Kind      RelationKind `json:"kind" gorm:"primaryKey;size:20"`
	CreatedAt time.Time    `json:"createdAt"`
}

// TableName keeps every relation kind in one table
func (Relation) TableName() string {
	return "relations"
}
