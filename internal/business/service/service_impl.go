package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	businessdomain "github.com/smallbiznis/invoicely/internal/business/domain"
	"github.com/smallbiznis/invoicely/internal/clock"
	"github.com/smallbiznis/invoicely/internal/config"
	"github.com/smallbiznis/invoicely/internal/limits"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"github.com/smallbiznis/invoicely/pkg/db/option"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
	"github.com/smallbiznis/invoicely/pkg/repository"
	"github.com/smallbiznis/invoicely/pkg/rls"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxSlugAttempts = 50

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Limits *limits.Evaluator
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	limits *limits.Evaluator

	currency string
	store    repository.Repository[businessdomain.Business]
}

func NewService(p ServiceParam) businessdomain.Service {
	currency := p.Config.Billing.DefaultCurrency
	if currency == "" {
		currency = "NGN"
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("business.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		limits: p.Limits,

		currency: currency,
		store:    repository.ProvideStore[businessdomain.Business](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req businessdomain.CreateRequest) (businessdomain.Business, error) {
	userID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return businessdomain.Business{}, tenantctx.ErrMissingTenant
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return businessdomain.Business{}, businessdomain.ErrInvalidName
	}

	guard, err := s.limits.Prepare(ctx, plandomain.ResourceBusinesses)
	if err != nil {
		return businessdomain.Business{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.currency
	}
	now := s.clock.Now().UTC()
	item := businessdomain.Business{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		Email:     strings.TrimSpace(req.Email),
		Phone:     strings.TrimSpace(req.Phone),
		Address:   strings.TrimSpace(req.Address),
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		if err := guard.Check(ctx, tx); err != nil {
			return err
		}
		store := s.store.WithTrx(tx)

		slugValue, err := s.uniqueSlug(ctx, store, userID, name)
		if err != nil {
			return err
		}
		item.Slug = slugValue
		return store.Create(ctx, &item)
	})
	if err != nil {
		return businessdomain.Business{}, err
	}

	s.log.Info("business created",
		zap.String("user_id", userID),
		zap.String("business_id", item.ID.String()),
	)
	return item, nil
}

// uniqueSlug suffixes the slug until it is free within the tenant.
func (s *Service) uniqueSlug(ctx context.Context, store repository.Repository[businessdomain.Business], userID, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "business"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts; i++ {
		existing, err := store.FindOne(ctx, &businessdomain.Business{UserID: userID, Slug: candidate})
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, strings.ToLower(s.genID.Generate().Base36())), nil
}

func (s *Service) List(ctx context.Context, page pagination.Pagination) (businessdomain.ListResponse, error) {
	userID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return businessdomain.ListResponse{}, tenantctx.ErrMissingTenant
	}

	items, err := s.store.Find(ctx,
		&businessdomain.Business{UserID: userID},
		option.ApplyPagination(page),
	)
	if err != nil {
		return businessdomain.ListResponse{}, err
	}

	rows, info := pagination.Page(items, page.Limit(), func(b *businessdomain.Business) int64 { return b.ID.Int64() })
	out := businessdomain.ListResponse{PageInfo: info, Businesses: make([]businessdomain.Business, 0, len(rows))}
	for _, item := range rows {
		out.Businesses = append(out.Businesses, *item)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (businessdomain.Business, error) {
	userID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return businessdomain.Business{}, tenantctx.ErrMissingTenant
	}
	businessID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || businessID <= 0 {
		return businessdomain.Business{}, businessdomain.ErrNotFound
	}

	item, err := s.store.FindOne(ctx, &businessdomain.Business{ID: businessID, UserID: userID})
	if err != nil {
		return businessdomain.Business{}, err
	}
	if item == nil {
		return businessdomain.Business{}, businessdomain.ErrNotFound
	}
	return *item, nil
}
