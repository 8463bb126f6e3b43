package service

import (
	"context"
	"encoding/json"
	"time"

	"agro-assistant-be/internal/model"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/repository/contract"
	"agro-assistant-be/pkg/events"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// NotificationDelivery pushes a notification to connected clients.
// Implemented by the websocket hub.
type NotificationDelivery interface {
	Send(userID uuid.UUID, notification model.Notification)
	Broadcast(notification model.Notification)
}

// notificationTemplate maps an event code to user-facing text.
type notificationTemplate struct {
	Title   string
	Message string
}

var notificationTemplates = map[string]notificationTemplate{
	events.TypeChatMessageFailed: {
		Title:   "Falha no assistente",
		Message: "Não foi possível processar sua mensagem. Por favor, tente novamente.",
	},
	events.TypeSubscriptionActivated: {
		Title:   "Assinatura ativada",
		Message: "Sua assinatura está ativa. O assistente agronômico já está liberado.",
	},
	events.TypeSubscriptionExpired: {
		Title:   "Assinatura encerrada",
		Message: "Sua assinatura não está mais ativa. Renove para continuar usando o assistente.",
	},
	events.TypeSubscriptionCanceled: {
		Title:   "Assinatura cancelada",
		Message: "Sua assinatura foi cancelada. Reative quando quiser para voltar a usar o assistente.",
	},
}

// NotificationService turns bus events into stored notifications and
// pushes them to connected clients.
type NotificationService struct {
	repo     contract.NotificationRepository
	delivery NotificationDelivery
	logger   logger.ILogger
}

func NewNotificationService(repo contract.NotificationRepository, delivery NotificationDelivery, log logger.ILogger) *NotificationService {
	return &NotificationService{
		repo:     repo,
		delivery: delivery,
		logger:   log,
	}
}

// HandleEvent is the bus consumer: it persists a notification for the
// event's user and pushes it over the hub. Events without a template or
// a user id are acked and dropped.
func (s *NotificationService) HandleEvent(ctx context.Context, event events.Event) error {
	template, ok := notificationTemplates[event.EventType()]
	if !ok {
		s.logger.Debug("notification", "ignoring event without template", map[string]interface{}{
			"type": event.EventType(),
		})
		return nil
	}

	payload := event.Payload()
	userIdStr, _ := payload["user_id"].(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		s.logger.Warn("notification", "event has no usable user_id", map[string]interface{}{
			"type": event.EventType(),
		})
		return nil
	}

	metadata, err := json.Marshal(payload)
	if err != nil {
		metadata = []byte("{}")
	}

	notification := model.Notification{
		ID:        uuid.New(),
		UserID:    userId,
		TypeCode:  event.EventType(),
		Title:     template.Title,
		Message:   template.Message,
		Metadata:  datatypes.JSON(metadata),
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, &notification); err != nil {
		// Returning the error naks the message so the bus redelivers.
		return err
	}

	if s.delivery != nil {
		s.delivery.Send(userId, notification)
	}
	return nil
}

func (s *NotificationService) GetNotifications(ctx context.Context, userId uuid.UUID, limit int) ([]*model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.FindByUser(ctx, userId, limit)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, id, userId uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, userId)
}
