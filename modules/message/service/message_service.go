package service

import (
	"context"
	"fmt"
	"strings"

	"coach-sync-api/core/logger"
	"coach-sync-api/modules/message/entity"
	"coach-sync-api/modules/message/repository"

	"github.com/google/uuid"
)

type MessageService struct {
	repo *repository.MessageRepository
}

func NewMessageService(repo *repository.MessageRepository) *MessageService {
	return &MessageService{repo: repo}
}

// SendSystemMessage inserts a system-tagged message from sender to receiver.
// Whether this opens a new conversation is only logged.
func (s *MessageService) SendSystemMessage(ctx context.Context, senderID, receiverID uuid.UUID, content string) (*entity.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("message content is empty")
	}

	existing, err := s.repo.CountBetween(ctx, senderID, receiverID)
	if err != nil {
		logger.Warn("MessageService:SendSystemMessage:CountFailed", "error", err)
	} else if existing == 0 {
		logger.Info("MessageService:SendSystemMessage:FirstMessage", "sender_id", senderID, "receiver_id", receiverID)
	}

	msg := &entity.Message{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Content:     content,
		MessageType: entity.TypeSystem,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert system message: %w", err)
	}
	return msg, nil
}

func (s *MessageService) GetThread(ctx context.Context, userID, otherID uuid.UUID, page, pageSize int) ([]entity.Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.GetThread(ctx, userID, otherID, pageSize, (page-1)*pageSize)
}
