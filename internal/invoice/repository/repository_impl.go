package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) FindOwned(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*invoicedomain.Invoice, error) {
	var item invoicedomain.Invoice
	err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) CountByKind(ctx context.Context, db *gorm.DB, userID string, kind invoicedomain.Kind) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("user_id = ? AND kind = ?", userID, kind).
		Count(&count).Error
	return count, err
}

// UpdateStatus never moves a paid invoice.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, userID string, businessID snowflake.ID, id snowflake.ID, kind invoicedomain.Kind, status invoicedomain.Status, at time.Time) (int64, error) {
	var paidAt *time.Time
	if status == invoicedomain.StatusPaid {
		paidAt = &at
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET status = ?, paid_at = COALESCE(?, paid_at), updated_at = ?
		WHERE id = ? AND user_id = ? AND business_id = ? AND kind = ? AND status <> ?`,
		status,
		paidAt,
		at,
		id,
		userID,
		businessID,
		kind,
		invoicedomain.StatusPaid,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE invoices
		SET status = ?, paid_at = COALESCE(paid_at, ?), updated_at = ?
		WHERE id = ? AND user_id = ? AND kind = ?`,
		invoicedomain.StatusPaid,
		at,
		at,
		id,
		userID,
		invoicedomain.KindInvoice,
	)
	return result.RowsAffected, result.Error
}
