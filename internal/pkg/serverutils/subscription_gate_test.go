package serverutils

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateLogger struct{}

func (gateLogger) Debug(module, message string, details map[string]interface{}) {}
func (gateLogger) Info(module, message string, details map[string]interface{})  {}
func (gateLogger) Warn(module, message string, details map[string]interface{})  {}
func (gateLogger) Error(module, message string, details map[string]interface{}) {}
func (gateLogger) Sync() error                                                  { return nil }

type stubChecker struct {
	granted bool
	err     error
	calls   int
}

func (c *stubChecker) HasAccess(ctx context.Context, userId uuid.UUID) (bool, error) {
	c.calls++
	return c.granted, c.err
}

func gateApp(checker SubscriptionChecker, role string, userId string) *fiber.App {
	app := fiber.New()
	app.Use(func(ctx *fiber.Ctx) error {
		ctx.Locals("role", role)
		ctx.Locals("user_id", userId)
		return ctx.Next()
	})
	app.Get("/chat", SubscriptionGate(checker, gateLogger{}), func(ctx *fiber.Ctx) error {
		return ctx.SendString("ok")
	})
	return app
}

func TestSubscriptionGateAllowsSubscriber(t *testing.T) {
	checker := &stubChecker{granted: true}
	app := gateApp(checker, "user", uuid.NewString())

	res, err := app.Test(httptest.NewRequest("GET", "/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, 1, checker.calls)
}

func TestSubscriptionGateDeniesWithoutSubscription(t *testing.T) {
	checker := &stubChecker{granted: false}
	app := gateApp(checker, "user", uuid.NewString())

	res, err := app.Test(httptest.NewRequest("GET", "/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Assinatura ativa necessária.")
}

func TestSubscriptionGateAdminBypassesChecker(t *testing.T) {
	checker := &stubChecker{granted: false}
	app := gateApp(checker, "admin", uuid.NewString())

	res, err := app.Test(httptest.NewRequest("GET", "/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Zero(t, checker.calls)
}

func TestSubscriptionGateFailsClosedOnLookupError(t *testing.T) {
	checker := &stubChecker{granted: true, err: errors.New("db down")}
	app := gateApp(checker, "user", uuid.NewString())

	res, err := app.Test(httptest.NewRequest("GET", "/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, res.StatusCode)
}

func TestSubscriptionGateRejectsBrokenIdentity(t *testing.T) {
	checker := &stubChecker{granted: true}
	app := gateApp(checker, "user", "not-a-uuid")

	res, err := app.Test(httptest.NewRequest("GET", "/chat", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	assert.Zero(t, checker.calls)
}
