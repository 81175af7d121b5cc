package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
)

type Expense struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID      string       `json:"-" gorm:"type:text;not null;index"`
	BusinessID  snowflake.ID `json:"business_id" gorm:"not null;index"`
	Category    string       `json:"category" gorm:"type:text;not null"`
	Vendor      string       `json:"vendor,omitempty" gorm:"type:text"`
	AmountMinor int64        `json:"amount" gorm:"not null"`
	Currency    string       `json:"currency" gorm:"type:text;not null"`
	SpentOn     time.Time    `json:"spent_on" gorm:"not null;index"`
	Notes       string       `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null"`
}

func (Expense) TableName() string { return "expenses" }

type CreateRequest struct {
	Category    string     `json:"category"`
	Vendor      string     `json:"vendor"`
	AmountMinor int64      `json:"amount"`
	Currency    string     `json:"currency"`
	SpentOn     *time.Time `json:"spent_on"`
	Notes       string     `json:"notes"`
}

type ListRequest struct {
	pagination.Pagination
	Category string `form:"category"`
	From     string `form:"from"`
	To       string `form:"to"`
}

type ListResponse struct {
	pagination.PageInfo
	Expenses []Expense `json:"expenses"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Expense, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (Expense, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidCategory = errors.New("invalid_expense_category")
	ErrInvalidAmount   = errors.New("invalid_expense_amount")
	ErrInvalidRange    = errors.New("invalid_date_range")
	ErrNotFound        = errors.New("expense_not_found")
)
