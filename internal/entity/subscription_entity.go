package entity

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionStatus string
type PaymentStatus string
type BillingPeriod string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
	// Authorized means the payment was authorized but not yet captured.
	// Access is already granted in this state.
	SubscriptionStatusAuthorized SubscriptionStatus = "authorized"
	SubscriptionStatusInactive   SubscriptionStatus = "inactive"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"

	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"

	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

type SubscriptionPlan struct {
	Id            uuid.UUID
	Name          string
	Slug          string
	Description   string
	Price         float64
	TaxRate       float64
	BillingPeriod BillingPeriod
	IsActive      bool
	SortOrder     int
}

type UserSubscription struct {
	Id                 uuid.UUID
	UserId             uuid.UUID
	PlanId             uuid.UUID
	Status             SubscriptionStatus
	PaymentStatus      PaymentStatus
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	ProviderOrderId    *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Grants reports whether this subscription currently grants access to
// the assistant pipeline.
func (s *UserSubscription) Grants(now time.Time) bool {
	if s.Status != SubscriptionStatusActive && s.Status != SubscriptionStatusAuthorized {
		return false
	}
	return s.CurrentPeriodEnd.After(now)
}
