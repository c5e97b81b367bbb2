package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SubscriptionKeys are the client credential pair for web push encryption
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" bson:"p256dh"`
	Auth   string `json:"auth" bson:"auth"`
}

// PushSubscription is a registered web push endpoint for a user, stored in
// MongoDB. The endpoint is globally unique; re-registration under another
// user re-parents the record (last writer wins).
type PushSubscription struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID         uint               `json:"user_id" bson:"user_id"`
	Endpoint       string             `json:"endpoint" bson:"endpoint"`
	ExpirationTime *int64             `json:"expiration_time,omitempty" bson:"expiration_time,omitempty"`
	Keys           SubscriptionKeys   `json:"keys" bson:"keys"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// StoreSubscriptionRequest defines the request body for registering a push endpoint
type StoreSubscriptionRequest struct {
	Endpoint       string `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64 `json:"expiration_time,omitempty"`
	Keys           struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys" validate:"required"`
}

// RemoveSubscriptionRequest defines the request body for unregistering a push endpoint
type RemoveSubscriptionRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}
