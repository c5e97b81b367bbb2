package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Profile is the per-user liveness document stored in MongoDB. LastSeen is
// monotonically non-decreasing under normal operation; IsOnline only
// reflects the two-state heartbeat signal, display status is derived.
type Profile struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    uint               `json:"user_id" bson:"user_id"`
	IsOnline  bool               `json:"is_online" bson:"is_online"`
	LastSeen  *time.Time         `json:"last_seen,omitempty" bson:"last_seen,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// HeartbeatRequest defines the request body for presence heartbeats
type HeartbeatRequest struct {
	Status string `json:"status" validate:"required,oneof=online away offline"`
}
