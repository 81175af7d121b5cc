package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Plan, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, db *gorm.DB) ([]Plan, error)
	Upsert(ctx context.Context, db *gorm.DB, plan *Plan) error
}

type Service interface {
	List(ctx context.Context) ([]Plan, error)
	GetByName(ctx context.Context, name string) (Plan, error)
	GetByID(ctx context.Context, id snowflake.ID) (Plan, error)
	// Free never fails; it falls back to the built-in definition.
	Free(ctx context.Context) Plan
}
