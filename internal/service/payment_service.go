package service

import (
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"time"

	"agro-assistant-be/internal/config"
	"agro-assistant-be/internal/dto"
	"agro-assistant-be/internal/entity"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/pkg/mailer"
	"agro-assistant-be/internal/repository/specification"
	"agro-assistant-be/internal/repository/unitofwork"

	"agro-assistant-be/pkg/events"
	pktNats "agro-assistant-be/pkg/nats"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

type IPaymentService interface {
	GetPlans(ctx context.Context) ([]*dto.PlanResponse, error)
	CreateSubscription(ctx context.Context, userId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	HandleNotification(ctx context.Context, req *dto.MidtransWebhookRequest) error
	GetSubscriptionStatus(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionStatusResponse, error)
	CancelSubscription(ctx context.Context, userId uuid.UUID) error
}

type paymentService struct {
	uowFactory     unitofwork.RepositoryFactory
	subscriptions  ISubscriptionService
	emailService   mailer.IEmailService
	eventPublisher *pktNats.Publisher
	cfg            config.PaymentConfig
	clientURL      string
	logger         logger.ILogger
}

func NewPaymentService(
	uowFactory unitofwork.RepositoryFactory,
	subscriptions ISubscriptionService,
	emailService mailer.IEmailService,
	eventPublisher *pktNats.Publisher,
	cfg config.PaymentConfig,
	clientURL string,
	log logger.ILogger,
) IPaymentService {
	return &paymentService{
		uowFactory:     uowFactory,
		subscriptions:  subscriptions,
		emailService:   emailService,
		eventPublisher: eventPublisher,
		cfg:            cfg,
		clientURL:      clientURL,
		logger:         log,
	}
}

func (s *paymentService) GetPlans(ctx context.Context) ([]*dto.PlanResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	plans, err := uow.SubscriptionRepository().FindAllPlans(ctx,
		specification.Filter("is_active", true),
		specification.OrderBy{Field: "sort_order"},
	)
	if err != nil {
		return nil, err
	}

	var res []*dto.PlanResponse
	for _, p := range plans {
		res = append(res, &dto.PlanResponse{
			Id:            p.Id,
			Name:          p.Name,
			Slug:          p.Slug,
			Price:         p.Price,
			BillingPeriod: string(p.BillingPeriod),
			Description:   p.Description,
		})
	}
	return res, nil
}

func (s *paymentService) CreateSubscription(ctx context.Context, userId uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: req.PlanId})
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, errors.New("plan not found")
	}

	user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	subId := uuid.New()
	orderId := subId.String()
	sub := &entity.UserSubscription{
		Id:                 subId,
		UserId:             userId,
		PlanId:             plan.Id,
		Status:             entity.SubscriptionStatusInactive,
		PaymentStatus:      entity.PaymentStatusPending,
		ProviderOrderId:    &orderId,
		CurrentPeriodStart: time.Now(),
		CurrentPeriodEnd:   time.Now().AddDate(0, 1, 0),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	if plan.BillingPeriod == entity.BillingPeriodYearly {
		sub.CurrentPeriodEnd = time.Now().AddDate(1, 0, 0)
	}

	if err := uow.SubscriptionRepository().CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	// External call stays outside any DB transaction.
	var sClient snap.Client
	env := midtrans.Sandbox
	if s.cfg.MidtransEnv == "production" {
		env = midtrans.Production
	}
	sClient.New(s.cfg.MidtransServerKey, env)

	taxRate := plan.TaxRate
	finalAmount := int64(plan.Price + (plan.Price * taxRate))

	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderId,
			GrossAmt: finalAmount,
		},
		CreditCard: &snap.CreditCardDetails{
			Secure: true,
		},
		Callbacks: &snap.Callbacks{
			Finish: fmt.Sprintf("%s/app?payment=success", s.clientURL),
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.FirstName,
			LName: req.LastName,
			Email: req.Email,
			Phone: req.Phone,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    plan.Id.String(),
				Price: int64(plan.Price),
				Qty:   1,
				Name:  plan.Name,
			},
		},
		EnabledPayments: snap.AllSnapPaymentType,
	}

	snapResp, midErr := sClient.CreateTransaction(snapReq)
	if midErr != nil {
		return nil, fmt.Errorf("midtrans error: %v", midErr.GetMessage())
	}

	return &dto.CheckoutResponse{
		SubscriptionId:  subId,
		SnapToken:       snapResp.Token,
		SnapRedirectUrl: snapResp.RedirectURL,
	}, nil
}

func (s *paymentService) HandleNotification(ctx context.Context, req *dto.MidtransWebhookRequest) error {
	s.logger.Info("payment", "processing webhook notification", map[string]interface{}{
		"order_id": req.OrderId,
		"status":   req.TransactionStatus,
	})

	if s.cfg.MidtransServerKey == "" {
		return errors.New("payment provider not configured")
	}

	// Midtrans signature = SHA512(order_id + status_code + gross_amount + server_key)
	signatureInput := req.OrderId + req.StatusCode + req.GrossAmount + s.cfg.MidtransServerKey
	expectedSignature := fmt.Sprintf("%x", sha512.Sum512([]byte(signatureInput)))
	if req.SignatureKey != expectedSignature {
		s.logger.Warn("payment", "webhook signature mismatch", map[string]interface{}{
			"order_id": req.OrderId,
		})
		return errors.New("invalid signature")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	sub, err := uow.SubscriptionRepository().FindOneSubscription(ctx,
		specification.ByProviderOrderID{OrderID: req.OrderId})
	if err != nil {
		return err
	}
	if sub == nil {
		return errors.New("subscription not found")
	}

	var newStatus entity.SubscriptionStatus
	var newPaymentStatus entity.PaymentStatus

	switch req.TransactionStatus {
	case "capture":
		if req.FraudStatus == "challenge" {
			// Keep pending until the provider resolves the challenge.
			return nil
		}
		newStatus = entity.SubscriptionStatusAuthorized
		newPaymentStatus = entity.PaymentStatusPaid
	case "settlement":
		newStatus = entity.SubscriptionStatusActive
		newPaymentStatus = entity.PaymentStatusPaid
	case "deny", "cancel", "expire":
		newStatus = entity.SubscriptionStatusInactive
		newPaymentStatus = entity.PaymentStatusFailed
	case "pending":
		return nil
	default:
		s.logger.Warn("payment", "unknown transaction status, ignoring", map[string]interface{}{
			"status": req.TransactionStatus,
		})
		return nil
	}

	if sub.Status == newStatus && sub.PaymentStatus == newPaymentStatus {
		return nil
	}

	wasGranted := sub.Grants(time.Now())
	sub.Status = newStatus
	sub.PaymentStatus = newPaymentStatus
	sub.UpdatedAt = time.Now()

	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	// The gate caches verdicts; a state flip has to evict the old one.
	s.subscriptions.Invalidate(sub.UserId)

	nowGranted := sub.Grants(time.Now())
	if !wasGranted && nowGranted {
		s.onActivated(ctx, sub)
	} else if wasGranted && !nowGranted {
		s.publishEvent(ctx, events.TypeSubscriptionExpired, sub)
	}

	return nil
}

func (s *paymentService) onActivated(ctx context.Context, sub *entity.UserSubscription) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	planName := ""
	if plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: sub.PlanId}); err == nil && plan != nil {
		planName = plan.Name
	}

	if user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: sub.UserId}); err == nil && user != nil {
		go func() {
			_ = s.emailService.SendSubscriptionActivated(user.Email, planName)
		}()
	}

	s.publishEvent(ctx, events.TypeSubscriptionActivated, sub)
}

func (s *paymentService) publishEvent(ctx context.Context, eventType string, sub *entity.UserSubscription) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.NewEvent(eventType, map[string]interface{}{
		"user_id":         sub.UserId.String(),
		"subscription_id": sub.Id.String(),
		"plan_id":         sub.PlanId.String(),
		"status":          string(sub.Status),
	})
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("payment", "failed to publish subscription event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

func (s *paymentService) GetSubscriptionStatus(ctx context.Context, userId uuid.UUID) (*dto.SubscriptionStatusResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	subs, err := uow.SubscriptionRepository().FindAllSubscriptions(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	if len(subs) == 0 {
		return &dto.SubscriptionStatusResponse{
			Status:    "none",
			HasAccess: false,
		}, nil
	}

	now := time.Now()
	current := subs[0]
	for _, sub := range subs {
		if sub.Grants(now) {
			current = sub
			break
		}
	}

	planName := ""
	if plan, err := uow.SubscriptionRepository().FindOnePlan(ctx, specification.ByID{ID: current.PlanId}); err == nil && plan != nil {
		planName = plan.Name
	}

	periodEnd := current.CurrentPeriodEnd
	return &dto.SubscriptionStatusResponse{
		Status:           string(current.Status),
		PaymentStatus:    string(current.PaymentStatus),
		PlanName:         planName,
		CurrentPeriodEnd: &periodEnd,
		HasAccess:        current.Grants(now),
	}, nil
}

func (s *paymentService) CancelSubscription(ctx context.Context, userId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	subs, err := uow.SubscriptionRepository().FindAllSubscriptions(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return err
	}

	now := time.Now()
	var active *entity.UserSubscription
	for _, sub := range subs {
		if sub.Grants(now) {
			active = sub
			break
		}
	}
	if active == nil {
		return errors.New("no active subscription found")
	}

	active.Status = entity.SubscriptionStatusCanceled
	active.UpdatedAt = time.Now()
	if err := uow.SubscriptionRepository().UpdateSubscription(ctx, active); err != nil {
		return err
	}

	s.subscriptions.Invalidate(userId)
	s.publishEvent(ctx, events.TypeSubscriptionCanceled, active)
	return nil
}
