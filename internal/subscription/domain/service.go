package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
)

type InitiateUpgradeRequest struct {
	PlanName string
	Interval string
}

// CurrentSubscription pairs the record with its resolved plan.
type CurrentSubscription struct {
	Subscription
	Plan plandomain.Plan `json:"plan"`
}

type Service interface {
	EnsureDefault(ctx context.Context) (Subscription, error)
	GetCurrent(ctx context.Context) (CurrentSubscription, error)
	// Lookup is read-only and returns nil when the tenant has no row yet.
	Lookup(ctx context.Context) (*Subscription, error)
	GetForTenant(ctx context.Context, id string) (Subscription, error)
	InitiateUpgrade(ctx context.Context, req InitiateUpgradeRequest) (CurrentSubscription, error)
	ConfirmPayment(ctx context.Context, conf Confirmation) (ConfirmResult, error)
	Cancel(ctx context.Context) (Subscription, error)
	ListInvoices(ctx context.Context) ([]SubscriptionInvoice, error)
	GetInvoice(ctx context.Context, id string) (SubscriptionInvoice, error)
}

// ParseID accepts the string form used in URLs and gateway metadata.
func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(value)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSubscription
	}
	return id, nil
}

var (
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidSubscription  = errors.New("invalid_subscription")
	ErrInvalidReference     = errors.New("invalid_reference")
	ErrInvalidPaidAt        = errors.New("invalid_paid_at")
	ErrInvalidTransition    = errors.New("invalid_transition")
	ErrPlanNotPurchasable   = errors.New("plan_not_purchasable")
	ErrFreePlanMissing      = errors.New("free_plan_missing")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrInvoiceNotFound      = errors.New("subscription_invoice_not_found")
	ErrAmountMismatch       = errors.New("payment_amount_mismatch")
	ErrPlanMismatch         = errors.New("payment_plan_mismatch")
)
