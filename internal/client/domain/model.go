package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
)

type Client struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID     string       `json:"-" gorm:"type:text;not null;index"`
	BusinessID snowflake.ID `json:"business_id" gorm:"not null;index"`
	Name       string       `json:"name" gorm:"type:text;not null"`
	Email      string       `json:"email,omitempty" gorm:"type:text"`
	Phone      string       `json:"phone,omitempty" gorm:"type:text"`
	Address    string       `json:"address,omitempty" gorm:"type:text"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
}

func (Client) TableName() string { return "clients" }

type CreateRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ListRequest struct {
	pagination.Pagination
	Search string `form:"q"`
}

type ListResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Client, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (Client, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidName = errors.New("invalid_client_name")
	ErrNotFound    = errors.New("client_not_found")
)
