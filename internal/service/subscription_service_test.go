package service

import (
	"testing"
	"time"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSubscription(t *testing.T, factory unitofwork.RepositoryFactory, userId uuid.UUID, status entity.SubscriptionStatus, periodEnd time.Time) *entity.UserSubscription {
	t.Helper()
	uow := factory.NewUnitOfWork(t.Context())

	sub := &entity.UserSubscription{
		Id:                 uuid.New(),
		UserId:             userId,
		PlanId:             uuid.New(),
		Status:             status,
		PaymentStatus:      entity.PaymentStatusPaid,
		CurrentPeriodStart: time.Now().Add(-24 * time.Hour),
		CurrentPeriodEnd:   periodEnd,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	require.NoError(t, uow.SubscriptionRepository().CreateSubscription(t.Context(), sub))
	return sub
}

func TestHasAccessWithActiveSubscription(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewSubscriptionService(factory, nopLogger{})

	user := seedUser(t, factory, entity.UserRoleUser)
	seedSubscription(t, factory, user.Id, entity.SubscriptionStatusActive, time.Now().Add(30*24*time.Hour))

	granted, err := svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestHasAccessDeniesWithoutSubscription(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewSubscriptionService(factory, nopLogger{})

	user := seedUser(t, factory, entity.UserRoleUser)

	granted, err := svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestHasAccessDeniesExpiredPeriod(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewSubscriptionService(factory, nopLogger{})

	user := seedUser(t, factory, entity.UserRoleUser)
	seedSubscription(t, factory, user.Id, entity.SubscriptionStatusActive, time.Now().Add(-time.Hour))

	granted, err := svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	assert.False(t, granted)
}

func TestHasAccessGrantsAuthorizedNotYetCaptured(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewSubscriptionService(factory, nopLogger{})

	user := seedUser(t, factory, entity.UserRoleUser)
	seedSubscription(t, factory, user.Id, entity.SubscriptionStatusAuthorized, time.Now().Add(time.Hour))

	granted, err := svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestHasAccessAdminNeedsNoSubscription(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewSubscriptionService(factory, nopLogger{})

	admin := seedUser(t, factory, entity.UserRoleAdmin)

	granted, err := svc.HasAccess(t.Context(), admin.Id)
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestHasAccessCachesVerdictUntilInvalidated(t *testing.T) {
	factory := unitofwork.NewRepositoryFactory(newTestDB(t))
	svc := NewSubscriptionService(factory, nopLogger{})

	user := seedUser(t, factory, entity.UserRoleUser)

	granted, err := svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	require.False(t, granted)

	// The subscription appears, but the denial is still cached.
	seedSubscription(t, factory, user.Id, entity.SubscriptionStatusActive, time.Now().Add(time.Hour))

	granted, err = svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	assert.False(t, granted)

	svc.Invalidate(user.Id)

	granted, err = svc.HasAccess(t.Context(), user.Id)
	require.NoError(t, err)
	assert.True(t, granted)
}
