package service

import (
	"context"
	"time"

	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const accessCacheTTL = 2 * time.Minute

type ISubscriptionService interface {
	// HasAccess reports whether the user may reach the assistant
	// pipeline right now.
	HasAccess(ctx context.Context, userId uuid.UUID) (bool, error)

	// Invalidate drops the cached verdict, e.g. after a webhook flips
	// subscription state.
	Invalidate(userId uuid.UUID)
}

type subscriptionService struct {
	uowFactory unitofwork.RepositoryFactory
	verdicts   *cache.Cache
	logger     logger.ILogger
}

func NewSubscriptionService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) ISubscriptionService {
	return &subscriptionService{
		uowFactory: uowFactory,
		verdicts:   cache.New(accessCacheTTL, 5*time.Minute),
		logger:     log,
	}
}

func (s *subscriptionService) HasAccess(ctx context.Context, userId uuid.UUID) (bool, error) {
	key := userId.String()
	if cached, found := s.verdicts.Get(key); found {
		return cached.(bool), nil
	}

	granted, err := s.lookup(ctx, userId)
	if err != nil {
		// No caching of failures: the next request retries the lookup.
		return false, err
	}

	s.verdicts.SetDefault(key, granted)
	return granted, nil
}

func (s *subscriptionService) lookup(ctx context.Context, userId uuid.UUID) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return false, err
	}
	if user == nil {
		return false, nil
	}
	if user.Role == entity.UserRoleAdmin {
		return true, nil
	}

	subs, err := uow.SubscriptionRepository().FindAllSubscriptions(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return false, err
	}

	now := time.Now()
	for _, sub := range subs {
		if sub.Grants(now) {
			return true, nil
		}
	}
	return false, nil
}

func (s *subscriptionService) Invalidate(userId uuid.UUID) {
	s.verdicts.Delete(userId.String())
}
