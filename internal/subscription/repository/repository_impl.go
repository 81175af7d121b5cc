package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(subscription)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID string) (*subscriptiondomain.Subscription, error) {
	return r.first(ctx, db.Where("user_id = ?", userID))
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.first(ctx, db.Where("id = ?", id))
}

func (r *repo) FindByIDForUser(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.first(ctx, db.Where("id = ? AND user_id = ?", id, userID))
}

func (r *repo) first(ctx context.Context, db *gorm.DB) (*subscriptiondomain.Subscription, error) {
	var item subscriptiondomain.Subscription
	err := db.WithContext(ctx).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) MarkPending(ctx context.Context, db *gorm.DB, userID string, planID snowflake.ID, interval plandomain.Interval, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		SET status = ?, plan_id = ?, billing_interval = ?, updated_at = ?
		WHERE user_id = ?`,
		subscriptiondomain.SubscriptionStatusPending,
		planID,
		interval,
		at,
		userID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Activate(ctx context.Context, db *gorm.DB, update subscriptiondomain.ActivationUpdate) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		SET status = ?,
			authorization_code = COALESCE(?, authorization_code),
			customer_code = COALESCE(?, customer_code),
			current_period_start = ?,
			current_period_end = ?,
			cancel_at_period_end = ?,
			canceled_at = NULL,
			updated_at = ?
		WHERE id = ?
			AND (status = ? OR current_period_end IS NULL OR current_period_end < ?)`,
		subscriptiondomain.SubscriptionStatusActive,
		nullable(update.AuthorizationCode),
		nullable(update.CustomerCode),
		update.PeriodStart,
		update.PeriodEnd,
		false,
		update.UpdatedAt,
		update.SubscriptionID,
		subscriptiondomain.SubscriptionStatusPending,
		update.PeriodEnd,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkCancelAtPeriodEnd(ctx context.Context, db *gorm.DB, userID string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		SET cancel_at_period_end = ?, canceled_at = ?, updated_at = ?
		WHERE user_id = ? AND status = ?`,
		true,
		at,
		at,
		userID,
		subscriptiondomain.SubscriptionStatusActive,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *subscriptiondomain.SubscriptionInvoice) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "reference"}},
			DoNothing: true,
		}).
		Create(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListInvoices(ctx context.Context, db *gorm.DB, userID string) ([]subscriptiondomain.SubscriptionInvoice, error) {
	var items []subscriptiondomain.SubscriptionInvoice
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("paid_at DESC").
		Find(&items).Error
	return items, err
}

func (r *repo) FindInvoice(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*subscriptiondomain.SubscriptionInvoice, error) {
	var item subscriptiondomain.SubscriptionInvoice
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) CountInvoicesByReference(ctx context.Context, db *gorm.DB, reference string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&subscriptiondomain.SubscriptionInvoice{}).
		Where("reference = ?", reference).
		Count(&count).Error
	return count, err
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
