package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
	"gorm.io/gorm"
)

type LineItemInput struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price"`
}

type CreateRequest struct {
	Kind      Kind            `json:"-"`
	ClientID  string          `json:"client_id"`
	Number    string          `json:"number"`
	Currency  string          `json:"currency"`
	Items     []LineItemInput `json:"items"`
	TaxMinor  int64           `json:"tax"`
	IssueDate *time.Time      `json:"issue_date"`
	DueDate   *time.Time      `json:"due_date"`
	Notes     string          `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	Kind     Kind   `form:"-"`
	Status   string `form:"status"`
	ClientID string `form:"client_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Invoice, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, kind Kind, id string) (Invoice, error)
	MarkStatus(ctx context.Context, kind Kind, id string, status Status) (Invoice, error)
}

// Repository holds the statements other packages run inside their own
// transactions.
type Repository interface {
	FindOwned(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID) (*Invoice, error)
	CountByKind(ctx context.Context, db *gorm.DB, userID string, kind Kind) (int64, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, userID string, businessID snowflake.ID, id snowflake.ID, kind Kind, status Status, at time.Time) (int64, error)
	MarkPaid(ctx context.Context, db *gorm.DB, userID string, id snowflake.ID, at time.Time) (int64, error)
}

var (
	ErrInvalidKind       = errors.New("invalid_invoice_kind")
	ErrInvalidStatus     = errors.New("invalid_invoice_status")
	ErrInvalidTransition = errors.New("invalid_invoice_transition")
	ErrInvalidItems      = errors.New("invalid_line_items")
	ErrInvalidClient     = errors.New("invalid_client")
	ErrDuplicateNumber   = errors.New("duplicate_invoice_number")
	ErrNotFound          = errors.New("invoice_not_found")
)
