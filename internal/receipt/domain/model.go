package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
)

// NoInvoice is sent by clients for a receipt that settles nothing.
const NoInvoice = "no-invoice"

type Receipt struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	UserID        string        `json:"-" gorm:"type:text;not null;index;uniqueIndex:ux_receipts_user_number,priority:1"`
	BusinessID    snowflake.ID  `json:"business_id" gorm:"not null;index"`
	ClientID      *snowflake.ID `json:"client_id,omitempty" gorm:"index"`
	InvoiceID     *snowflake.ID `json:"invoice_id,omitempty" gorm:"index"`
	Number        string        `json:"number" gorm:"type:text;not null;uniqueIndex:ux_receipts_user_number,priority:2"`
	AmountMinor   int64         `json:"amount" gorm:"not null"`
	Currency      string        `json:"currency" gorm:"type:text;not null"`
	PaymentMethod string        `json:"payment_method" gorm:"type:text;not null"`
	PaidOn        time.Time     `json:"paid_on" gorm:"not null"`
	Notes         string        `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt     time.Time     `json:"created_at" gorm:"not null"`
}

func (Receipt) TableName() string { return "receipts" }

type CreateRequest struct {
	InvoiceID     string     `json:"invoice_id"`
	ClientID      string     `json:"client_id"`
	Number        string     `json:"number"`
	AmountMinor   int64      `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"payment_method"`
	PaidOn        *time.Time `json:"paid_on"`
	Notes         string     `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	InvoiceID string `form:"invoice_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Receipts []Receipt `json:"receipts"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Receipt, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (Receipt, error)
}

var (
	ErrInvalidAmount   = errors.New("invalid_receipt_amount")
	ErrInvalidInvoice  = errors.New("invalid_invoice")
	ErrInvalidClient   = errors.New("invalid_client")
	ErrDuplicateNumber = errors.New("duplicate_receipt_number")
	ErrNotFound        = errors.New("receipt_not_found")
)
