package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"gorm.io/gorm"
)

// ActivationUpdate is applied by the conditional confirmation update.
type ActivationUpdate struct {
	SubscriptionID    snowflake.ID
	PeriodStart       time.Time
	PeriodEnd         time.Time
	AuthorizationCode string
	CustomerCode      string
	UpdatedAt         time.Time
}

type Repository interface {
	// InsertIfAbsent returns false when the user already has a subscription.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, subscription *Subscription) (bool, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*Subscription, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUser(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Subscription, error)
	MarkPending(ctx context.Context, db *gorm.DB, userID string, planID snowflake.ID, interval plandomain.Interval, at time.Time) (int64, error)
	// Activate only moves a subscription forward: it matches pending rows
	// or rows whose period ends before the new end.
	Activate(ctx context.Context, db *gorm.DB, update ActivationUpdate) (int64, error)
	MarkCancelAtPeriodEnd(ctx context.Context, db *gorm.DB, userID string, at time.Time) (int64, error)

	// InsertInvoice returns false when the reference is already recorded.
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *SubscriptionInvoice) (bool, error)
	ListInvoices(ctx context.Context, db *gorm.DB, userID string) ([]SubscriptionInvoice, error)
	FindInvoice(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*SubscriptionInvoice, error)
	CountInvoicesByReference(ctx context.Context, db *gorm.DB, reference string) (int64, error)
}
