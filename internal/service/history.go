package service

import (
	"context"

	"chatguard/internal/models"

	"github.com/sirupsen/logrus"
)

// HistoryService is the thin read/delete surface over the message store
// consumed by the UI.
type HistoryService struct {
	store  MessageStore
	logger *logrus.Logger
}

func NewHistoryService(store MessageStore, logger *logrus.Logger) *HistoryService {
	if logger == nil {
		logger = logrus.New()
	}
	return &HistoryService{store: store, logger: logger}
}

// List returns all persisted messages in ascending timestamp order for
// initial state hydration.
func (h *HistoryService) List(ctx context.Context) ([]models.ChatMessage, error) {
	return h.store.ListMessages(ctx)
}

// Clear removes the entire history. Destructive and unconditional; the
// caller is responsible for confirming intent.
func (h *HistoryService) Clear(ctx context.Context) (int64, error) {
	cleared, err := h.store.ClearMessages(ctx)
	if err != nil {
		return 0, err
	}

	h.logger.WithField(LogFieldCount, cleared).Info("Chat history cleared")
	return cleared, nil
}
