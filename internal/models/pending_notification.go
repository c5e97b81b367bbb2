package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryStatus is the lifecycle state of a pending push notification.
type DeliveryStatus string

const (
	DeliveryPending          DeliveryStatus = "pending"
	DeliveryDelivered        DeliveryStatus = "delivered"
	DeliveryFailed           DeliveryStatus = "failed"
	DeliveryNoSubscriptions  DeliveryStatus = "no_subscriptions"
	DeliveryPermanentFailure DeliveryStatus = "permanent_failure"
)

// Terminal reports whether no further state transition is allowed.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryDelivered, DeliveryNoSubscriptions, DeliveryPermanentFailure:
		return true
	}
	return false
}

// NotificationPriority is an optional delivery hint.
type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// DeliveryResults summarizes per-endpoint outcomes of one dispatch attempt.
type DeliveryResults struct {
	SuccessCount int `json:"success_count" bson:"success_count"`
	FailedCount  int `json:"failed_count" bson:"failed_count"`
	ExpiredCount int `json:"expired_count" bson:"expired_count"`
}

// PendingNotification is one unit of outbound push work stored in MongoDB.
// Attempts only ever grow; the dispatcher owns status/attempts and the
// retry pass owns the failed->pending reset.
type PendingNotification struct {
	ID          primitive.ObjectID   `json:"id,omitempty" bson:"_id,omitempty"`
	UserID      uint                 `json:"user_id" bson:"user_id"`
	Title       string               `json:"title" bson:"title"`
	Body        string               `json:"body" bson:"body"`
	Icon        string               `json:"icon,omitempty" bson:"icon,omitempty"`
	Tag         string               `json:"tag,omitempty" bson:"tag,omitempty"`
	URL         string               `json:"url,omitempty" bson:"url,omitempty"`
	Data        map[string]any       `json:"data,omitempty" bson:"data,omitempty"`
	Priority    NotificationPriority `json:"priority,omitempty" bson:"priority,omitempty"`
	Status      DeliveryStatus       `json:"status" bson:"status"`
	Attempts    int                  `json:"attempts" bson:"attempts"`
	LastError   string               `json:"last_error,omitempty" bson:"last_error,omitempty"`
	Results     *DeliveryResults     `json:"results,omitempty" bson:"results,omitempty"`
	CreatedAt   time.Time            `json:"created_at" bson:"created_at"`
	LastAttempt *time.Time           `json:"last_attempt,omitempty" bson:"last_attempt,omitempty"`
	ProcessedAt *time.Time           `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// EnqueueNotificationRequest defines the request body for the admin test send
type EnqueueNotificationRequest struct {
	UserID uint           `json:"user_id" validate:"required"`
	Title  string         `json:"title" validate:"required,min=1,max=120"`
	Body   string         `json:"body" validate:"required,min=1,max=500"`
	Icon   string         `json:"icon,omitempty" validate:"omitempty,url"`
	Tag    string         `json:"tag,omitempty" validate:"omitempty,max=60"`
	URL    string         `json:"url,omitempty" validate:"omitempty,url"`
	Data   map[string]any `json:"data,omitempty"`
}
