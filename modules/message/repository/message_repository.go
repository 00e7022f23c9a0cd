package repository

import (
	"context"

	"coach-sync-api/core/database"
	"coach-sync-api/core/logger"
	"coach-sync-api/modules/message/entity"

	"github.com/google/uuid"
)

type MessageRepository struct {
	db database.IDatabase
}

func NewMessageRepository(db database.IDatabase) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *entity.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content, message_type)
		VALUES (:sender_id, :receiver_id, :content, :message_type)
		RETURNING id, created_at
	`
	rows, err := r.db.NamedQueryContext(ctx, query, msg)
	if err != nil {
		logger.Error("MessageRepository:Create:Error:", err)
		return err
	}
	defer rows.Close()

	if rows.Next() {
		return rows.Scan(&msg.ID, &msg.CreatedAt)
	}
	return rows.Err()
}

// CountBetween counts messages exchanged in either direction between two users.
func (r *MessageRepository) CountBetween(ctx context.Context, a, b uuid.UUID) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		OR (sender_id = $2 AND receiver_id = $1)
	`
	if err := r.db.GetContext(ctx, &count, query, a, b); err != nil {
		logger.Error("MessageRepository:CountBetween:Error:", err)
		return 0, err
	}
	return count, nil
}

// GetThread returns the most recent messages between two users, newest first.
func (r *MessageRepository) GetThread(ctx context.Context, a, b uuid.UUID, limit, offset int) ([]entity.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, message_type, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	var messages []entity.Message
	if err := r.db.SelectContext(ctx, &messages, query, a, b, limit, offset); err != nil {
		logger.Error("MessageRepository:GetThread:Error:", err)
		return nil, err
	}
	return messages, nil
}
