package models

import "gorm.io/gorm"

// Reaction represents an emoji reaction on a message
type Reaction struct {
	gorm.Model
	MessageID string `json:"message_id" gorm:"index"` // ID of the reacted message (MongoDB ObjectID as string)
	UserID    uint   `json:"user_id" gorm:"index"`    // ID of the user who reacted
	Emoji     string `json:"emoji" gorm:"size:16"`
}

// CreateReactionRequest defines the request body for reacting to a message
type CreateReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,min=1,max=16"`
}
