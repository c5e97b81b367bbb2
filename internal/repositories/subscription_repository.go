package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrSubscriptionNotFound is returned when no subscription matches an endpoint.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// SubscriptionRepository defines the interface for push subscription storage
type SubscriptionRepository interface {
	Upsert(ctx context.Context, subscription *models.PushSubscription) error
	GetByEndpoint(ctx context.Context, endpoint string) (*models.PushSubscription, error)
	ListByUser(ctx context.Context, userID uint) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) error
}

// MongoSubscriptionRepository implements SubscriptionRepository for MongoDB
type MongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new MongoSubscriptionRepository
func NewMongoSubscriptionRepository(db *mongo.Database) *MongoSubscriptionRepository {
	return &MongoSubscriptionRepository{collection: db.Collection("push_subscriptions")}
}

// Upsert stores a subscription keyed by endpoint. Re-registration under a
// different user re-parents the record rather than duplicating it.
func (r *MongoSubscriptionRepository) Upsert(ctx context.Context, subscription *models.PushSubscription) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"user_id":         subscription.UserID,
			"expiration_time": subscription.ExpirationTime,
			"keys":            subscription.Keys,
			"updated_at":      now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"endpoint": subscription.Endpoint}, update, opts)
	return err
}

// GetByEndpoint retrieves a subscription by its unique endpoint
func (r *MongoSubscriptionRepository) GetByEndpoint(ctx context.Context, endpoint string) (*models.PushSubscription, error) {
	var subscription models.PushSubscription
	err := r.collection.FindOne(ctx, bson.M{"endpoint": endpoint}).Decode(&subscription)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &subscription, nil
}

// ListByUser retrieves all registered endpoints for a user
func (r *MongoSubscriptionRepository) ListByUser(ctx context.Context, userID uint) ([]models.PushSubscription, error) {
	var subscriptions []models.PushSubscription
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &subscriptions); err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// DeleteByEndpoint removes a subscription by its unique endpoint
func (r *MongoSubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"endpoint": endpoint})
	return err
}
