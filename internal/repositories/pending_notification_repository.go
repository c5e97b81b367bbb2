package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PendingNotificationRepository defines the interface for the push outbox.
// The dispatcher is the only writer of status/attempts; the retry pass is
// the only path that moves failed records back to pending.
type PendingNotificationRepository interface {
	Create(ctx context.Context, notification *models.PendingNotification) error
	GetByID(ctx context.Context, id string) (*models.PendingNotification, error)
	FetchPending(ctx context.Context, limit int64, maxAttempts int) ([]models.PendingNotification, error)
	FetchFailed(ctx context.Context, limit int64, maxAttempts int) ([]models.PendingNotification, error)
	ApplyAttempt(ctx context.Context, id string, status models.DeliveryStatus, deliveryErr string, results *models.DeliveryResults, at time.Time) (*models.PendingNotification, error)
	ForcePermanentFailure(ctx context.Context, id string, reason string) error
	ResetToPending(ctx context.Context, id string, at time.Time) error
	DeletePermanentFailures(ctx context.Context) (int64, error)
}

// MongoPendingNotificationRepository implements PendingNotificationRepository for MongoDB
type MongoPendingNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoPendingNotificationRepository creates a new MongoPendingNotificationRepository
func NewMongoPendingNotificationRepository(db *mongo.Database) *MongoPendingNotificationRepository {
	return &MongoPendingNotificationRepository{collection: db.Collection("pending_notifications")}
}

// Create inserts a new pending notification with zero attempts
func (r *MongoPendingNotificationRepository) Create(ctx context.Context, notification *models.PendingNotification) error {
	notification.ID = primitive.NewObjectID()
	notification.Status = models.DeliveryPending
	notification.Attempts = 0
	notification.CreatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, notification)
	return err
}

// GetByID retrieves a pending notification by ID
func (r *MongoPendingNotificationRepository) GetByID(ctx context.Context, id string) (*models.PendingNotification, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid notification ID format: %w", err)
	}

	var notification models.PendingNotification
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&notification)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("notification not found")
		}
		return nil, err
	}
	return &notification, nil
}

// FetchPending returns up to limit dispatchable records, oldest first
func (r *MongoPendingNotificationRepository) FetchPending(ctx context.Context, limit int64, maxAttempts int) ([]models.PendingNotification, error) {
	return r.fetchByStatus(ctx, models.DeliveryPending, limit, maxAttempts)
}

// FetchFailed returns up to limit retryable records, oldest first
func (r *MongoPendingNotificationRepository) FetchFailed(ctx context.Context, limit int64, maxAttempts int) ([]models.PendingNotification, error) {
	return r.fetchByStatus(ctx, models.DeliveryFailed, limit, maxAttempts)
}

func (r *MongoPendingNotificationRepository) fetchByStatus(ctx context.Context, status models.DeliveryStatus, limit int64, maxAttempts int) ([]models.PendingNotification, error) {
	var notifications []models.PendingNotification
	filter := bson.M{
		"status":   status,
		"attempts": bson.M{"$lt": maxAttempts},
	}
	findOptions := options.Find().SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// ApplyAttempt records one delivery attempt: increments attempts, sets the
// requested status and lastAttempt, stamps processedAt only on delivered.
// Returns the updated document.
func (r *MongoPendingNotificationRepository) ApplyAttempt(ctx context.Context, id string, status models.DeliveryStatus, deliveryErr string, results *models.DeliveryResults, at time.Time) (*models.PendingNotification, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid notification ID format: %w", err)
	}

	set := bson.M{
		"status":       status,
		"last_attempt": at,
	}
	if deliveryErr != "" {
		set["last_error"] = deliveryErr
	}
	if results != nil {
		set["results"] = results
	}
	if status == models.DeliveryDelivered {
		set["processed_at"] = at
	}

	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": set,
	}

	var updated models.PendingNotification
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = r.collection.FindOneAndUpdate(ctx, bson.M{"_id": objID}, update, opts).Decode(&updated)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("notification not found")
		}
		return nil, err
	}
	return &updated, nil
}

// ForcePermanentFailure freezes a record in its terminal failed state
func (r *MongoPendingNotificationRepository) ForcePermanentFailure(ctx context.Context, id string, reason string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid notification ID format: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"status":     models.DeliveryPermanentFailure,
		"last_error": reason,
	}}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	return err
}

// ResetToPending moves a failed record back to pending without touching attempts
func (r *MongoPendingNotificationRepository) ResetToPending(ctx context.Context, id string, at time.Time) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid notification ID format: %w", err)
	}

	update := bson.M{"$set": bson.M{
		"status":       models.DeliveryPending,
		"last_attempt": at,
	}}
	// Guard on status so a concurrent dispatch outcome is never overwritten
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID, "status": models.DeliveryFailed}, update)
	return err
}

// DeletePermanentFailures removes all terminally failed records
func (r *MongoPendingNotificationRepository) DeletePermanentFailures(ctx context.Context) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"status": models.DeliveryPermanentFailure})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
