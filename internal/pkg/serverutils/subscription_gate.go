package serverutils

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"agro-assistant-be/internal/pkg/logger"
)

const subscriptionRequiredMessage = "Assinatura ativa necessária."

// SubscriptionChecker reports whether a user currently has access to
// the assistant pipeline.
type SubscriptionChecker interface {
	HasAccess(ctx context.Context, userId uuid.UUID) (bool, error)
}

// SubscriptionGate blocks chat routes for users without an active
// subscription. Admins pass unconditionally. Lookup failures are
// treated as "not subscribed" so the gate fails closed.
func SubscriptionGate(checker SubscriptionChecker, log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if role, _ := ctx.Locals("role").(string); role == "admin" {
			return ctx.Next()
		}

		userIdStr, _ := ctx.Locals("user_id").(string)
		userId, err := uuid.Parse(userIdStr)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(401, "Invalid user identity"))
		}

		granted, err := checker.HasAccess(ctx.UserContext(), userId)
		if err != nil {
			log.Warn("subscription_gate", "state lookup failed, denying access", map[string]interface{}{
				"user_id": userId.String(),
				"error":   err.Error(),
			})
			granted = false
		}
		if !granted {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(403, subscriptionRequiredMessage))
		}
		return ctx.Next()
	}
}
