package contract

import (
	"context"

	"agro-assistant-be/internal/model"

	"github.com/google/uuid"
)

// Notifications skip the entity/mapper split: the model is the API shape.
type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	FindByUser(ctx context.Context, userId uuid.UUID, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, userId uuid.UUID) error
}
