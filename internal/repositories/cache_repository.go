package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CacheRepository is the shared expiring key/value collection. It backs both
// health pings (ping:*) and CCU snapshots (ccu:*); consumers wrap it with
// typed payloads per namespace.
type CacheRepository interface {
	Upsert(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, out any) (bool, error)
}

// MongoCacheRepository implements CacheRepository for MongoDB
type MongoCacheRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoCacheRepository creates a new MongoCacheRepository
func NewMongoCacheRepository(db *mongo.Database) *MongoCacheRepository {
	return &MongoCacheRepository{collection: db.Collection("system_cache"), now: time.Now}
}

// Upsert writes the value under the key, replacing any previous entry, so
// each key maps to at most one live entry
func (r *MongoCacheRepository) Upsert(ctx context.Context, key string, value any, ttl time.Duration) error {
	now := r.now()
	update := bson.M{"$set": bson.M{
		"value":      value,
		"expires_at": now.Add(ttl),
		"updated_at": now,
	}}
	opts := options.Update().SetUpsert(true)
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": key}, update, opts)
	return err
}

// Get decodes the live value for the key into out. Entries past their
// expiry are treated as absent.
func (r *MongoCacheRepository) Get(ctx context.Context, key string, out any) (bool, error) {
	filter := bson.M{
		"_id":        key,
		"expires_at": bson.M{"$gt": r.now()},
	}
	var doc struct {
		Value bson.RawValue `bson:"value"`
	}
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, err
	}
	if err := doc.Value.Unmarshal(out); err != nil {
		return false, err
	}
	return true, nil
}
