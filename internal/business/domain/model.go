// Package domain contains the business (tenant sub-account) model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
)

// Business is a trading identity owned by a tenant. Clients, invoices,
// receipts and expenses all belong to one.
type Business struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID    string       `json:"-" gorm:"type:text;not null;index;uniqueIndex:ux_businesses_user_slug,priority:1"`
	Name      string       `json:"name" gorm:"type:text;not null"`
	Slug      string       `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_businesses_user_slug,priority:2"`
	Email     string       `json:"email,omitempty" gorm:"type:text"`
	Phone     string       `json:"phone,omitempty" gorm:"type:text"`
	Address   string       `json:"address,omitempty" gorm:"type:text"`
	Currency  string       `json:"currency" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time    `json:"updated_at" gorm:"not null"`
}

func (Business) TableName() string { return "businesses" }

type CreateRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Currency string `json:"currency"`
}

type ListResponse struct {
	pagination.PageInfo
	Businesses []Business `json:"businesses"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Business, error)
	List(ctx context.Context, page pagination.Pagination) (ListResponse, error)
	// Get only returns businesses owned by the caller's tenant.
	Get(ctx context.Context, id string) (Business, error)
}

var (
	ErrInvalidName = errors.New("invalid_business_name")
	ErrNotFound    = errors.New("business_not_found")
)
