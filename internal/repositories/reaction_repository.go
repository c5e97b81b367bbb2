package repositories

import (
	"fmt"

	"github.com/nexa-labs/wavechat-backend/internal/models"
	"gorm.io/gorm"
)

// ReactionRepository defines the interface for message reaction operations
type ReactionRepository interface {
	CreateReaction(reaction *models.Reaction) error
	DeleteReaction(messageID string, userID uint) error
	HasUserReacted(messageID string, userID uint) (bool, error)
	GetReactionsCountByMessageID(messageID string) (int64, error)
}

// PostgresReactionRepository implements ReactionRepository for PostgreSQL
type PostgresReactionRepository struct {
	db *gorm.DB
}

// NewPostgresReactionRepository creates a new PostgresReactionRepository
func NewPostgresReactionRepository(db *gorm.DB) *PostgresReactionRepository {
	return &PostgresReactionRepository{db: db}
}

// CreateReaction creates a new reaction in PostgreSQL
func (r *PostgresReactionRepository) CreateReaction(reaction *models.Reaction) error {
	return r.db.Create(reaction).Error
}

// DeleteReaction removes a user's reaction from a message
func (r *PostgresReactionRepository) DeleteReaction(messageID string, userID uint) error {
	res := r.db.Where("message_id = ? AND user_id = ?", messageID, userID).Delete(&models.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reaction not found")
	}
	return nil
}

// HasUserReacted checks whether a user already reacted to a message
func (r *PostgresReactionRepository) HasUserReacted(messageID string, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.Reaction{}).Where("message_id = ? AND user_id = ?", messageID, userID).Count(&count).Error
	return count > 0, err
}

// GetReactionsCountByMessageID retrieves the total number of reactions for a message
func (r *PostgresReactionRepository) GetReactionsCountByMessageID(messageID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Reaction{}).Where("message_id = ?", messageID).Count(&count).Error
	return count, err
}
