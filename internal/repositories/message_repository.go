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

// MessageRepository defines the interface for chat message operations
type MessageRepository interface {
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
	GetConversation(ctx context.Context, userA, userB uint, skip, limit int64) ([]models.Message, error)
	IncrementReactionsCount(ctx context.Context, messageID string) error
	DecrementReactionsCount(ctx context.Context, messageID string) error
}

// MongoMessageRepository implements MessageRepository for MongoDB
type MongoMessageRepository struct {
	collection *mongo.Collection
}

// NewMongoMessageRepository creates a new MongoMessageRepository
func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection("messages")}
}

// CreateMessage creates a new message in MongoDB
func (r *MongoMessageRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()
	message.UpdatedAt = time.Now()
	_, err := r.collection.InsertOne(ctx, message)
	return err
}

// GetMessageByID retrieves a message by ID from MongoDB
func (r *MongoMessageRepository) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid message ID format: %w", err)
	}

	var message models.Message
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("message not found")
		}
		return nil, err
	}
	return &message, nil
}

// GetConversation retrieves the messages exchanged between two users,
// newest first, with pagination
func (r *MongoMessageRepository) GetConversation(ctx context.Context, userA, userB uint, skip, limit int64) ([]models.Message, error) {
	var messages []models.Message
	filter := bson.M{
		"$or": []bson.M{
			{"sender_id": userA, "recipient_id": userB},
			{"sender_id": userB, "recipient_id": userA},
		},
	}
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// IncrementReactionsCount increments the reaction counter on a message
func (r *MongoMessageRepository) IncrementReactionsCount(ctx context.Context, messageID string) error {
	return r.adjustReactionsCount(ctx, messageID, 1)
}

// DecrementReactionsCount decrements the reaction counter on a message
func (r *MongoMessageRepository) DecrementReactionsCount(ctx context.Context, messageID string) error {
	return r.adjustReactionsCount(ctx, messageID, -1)
}

func (r *MongoMessageRepository) adjustReactionsCount(ctx context.Context, messageID string, delta int) error {
	objID, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("invalid message ID format: %w", err)
	}
	update := bson.M{
		"$inc": bson.M{"reactions_count": delta},
		"$set": bson.M{"updated_at": time.Now()},
	}
	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	return err
}
