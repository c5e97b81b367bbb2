package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message represents a direct chat message stored in MongoDB
type Message struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	SenderID       uint               `json:"sender_id" bson:"sender_id"`
	RecipientID    uint               `json:"recipient_id" bson:"recipient_id"`
	Content        string             `json:"content" bson:"content"`
	ReactionsCount int                `json:"reactions_count" bson:"reactions_count"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// CreateMessageRequest defines the request body for sending a message
type CreateMessageRequest struct {
	RecipientID uint   `json:"recipient_id" validate:"required"`
	Content     string `json:"content" validate:"required,min=1,max=2000"`
}
