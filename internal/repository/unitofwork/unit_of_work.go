package unitofwork

import (
	"context"

	"agro-assistant-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() contract.UserRepository
	ChatSessionRepository() contract.ChatSessionRepository
	ChatMessageRepository() contract.ChatMessageRepository
	DocumentRepository() contract.DocumentRepository
	SubscriptionRepository() contract.SubscriptionRepository
	AgrofitRepository() contract.AgrofitRepository
	NotificationRepository() contract.NotificationRepository
}
