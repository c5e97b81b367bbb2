package models

import "time"

// CacheEntry is one row of the shared expiring key/value collection in
// MongoDB. Each key maps to at most one live entry; readers must treat
// entries past ExpiresAt as absent.
type CacheEntry struct {
	Key       string    `json:"key" bson:"_id"`
	Value     any       `json:"value" bson:"value"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}
