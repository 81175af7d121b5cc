package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/internal/config"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo plandomain.Repository
}

type ServiceParam struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo plandomain.Repository
}

func NewService(p ServiceParam) plandomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("plan.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context) ([]plandomain.Plan, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) GetByName(ctx context.Context, name string) (plandomain.Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return plandomain.Plan{}, plandomain.ErrInvalidName
	}
	plan, err := s.repo.FindByName(ctx, s.db, name)
	if err != nil {
		return plandomain.Plan{}, err
	}
	if plan == nil {
		return plandomain.Plan{}, plandomain.ErrNotFound
	}
	return *plan, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (plandomain.Plan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return plandomain.Plan{}, err
	}
	if plan == nil {
		return plandomain.Plan{}, plandomain.ErrNotFound
	}
	return *plan, nil
}

func (s *Service) Free(ctx context.Context) plandomain.Plan {
	plan, err := s.repo.FindByName(ctx, s.db, config.FreePlanName)
	if err != nil {
		s.log.Warn("free plan lookup failed, using built-in limits", zap.Error(err))
		return plandomain.BuiltinFree()
	}
	if plan == nil {
		s.log.Warn("free plan missing from catalog, using built-in limits")
		return plandomain.BuiltinFree()
	}
	return *plan
}
