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

// ErrProfileNotFound is returned when a user has no presence document yet.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository defines the interface for presence profile documents
type ProfileRepository interface {
	EnsureProfile(ctx context.Context, userID uint) error
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	UpdatePresence(ctx context.Context, userID uint, online bool, at time.Time) error
	FindStaleOnline(ctx context.Context, olderThan time.Time, limit int64) ([]models.Profile, error)
	MarkOffline(ctx context.Context, userIDs []uint) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time, cap int64) (int64, bool, error)
}

// MongoProfileRepository implements ProfileRepository for MongoDB
type MongoProfileRepository struct {
	collection *mongo.Collection
}

// NewMongoProfileRepository creates a new MongoProfileRepository
func NewMongoProfileRepository(db *mongo.Database) *MongoProfileRepository {
	return &MongoProfileRepository{collection: db.Collection("profiles")}
}

// EnsureProfile creates the presence document for a user if it does not exist
func (r *MongoProfileRepository) EnsureProfile(ctx context.Context, userID uint) error {
	now := time.Now()
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"is_online":  false,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts)
	return err
}

// GetByUserID retrieves a user's presence profile
func (r *MongoProfileRepository) GetByUserID(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return &profile, nil
}

// UpdatePresence patches the online flag and lastSeen together
func (r *MongoProfileRepository) UpdatePresence(ctx context.Context, userID uint, online bool, at time.Time) error {
	update := bson.M{
		"$set": bson.M{
			"is_online":  online,
			"last_seen":  at,
			"updated_at": at,
		},
		"$setOnInsert": bson.M{
			"user_id":    userID,
			"created_at": at,
		},
	}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"user_id": userID}, update, opts)
	return err
}

// FindStaleOnline returns profiles still flagged online whose lastSeen is
// older than the cutoff, limited for chunked sweeping
func (r *MongoProfileRepository) FindStaleOnline(ctx context.Context, olderThan time.Time, limit int64) ([]models.Profile, error) {
	var profiles []models.Profile
	filter := bson.M{
		"is_online": true,
		"last_seen": bson.M{"$lt": olderThan},
	}
	findOptions := options.Find().SetLimit(limit)
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// MarkOffline flips the online flag for the given users, leaving lastSeen
// untouched so the last-known-active time survives for display
func (r *MongoProfileRepository) MarkOffline(ctx context.Context, userIDs []uint) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	filter := bson.M{"user_id": bson.M{"$in": userIDs}}
	update := bson.M{"$set": bson.M{"is_online": false, "updated_at": time.Now()}}
	res, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountActiveSince counts profiles with a heartbeat at or after the cutoff.
// The count is capped; the second return value reports whether the cap was
// hit, meaning the true count may be higher.
func (r *MongoProfileRepository) CountActiveSince(ctx context.Context, since time.Time, cap int64) (int64, bool, error) {
	filter := bson.M{"last_seen": bson.M{"$gte": since}}
	countOptions := options.Count()
	if cap > 0 {
		countOptions.SetLimit(cap)
	}
	count, err := r.collection.CountDocuments(ctx, filter, countOptions)
	if err != nil {
		return 0, false, err
	}
	return count, cap > 0 && count >= cap, nil
}
