package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/invoicely/internal/client/domain"
	"github.com/smallbiznis/invoicely/internal/clock"
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

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Limits *limits.Evaluator
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	limits *limits.Evaluator
	store  repository.Repository[clientdomain.Client]
}

func NewService(p ServiceParam) clientdomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("client.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		limits: p.Limits,
		store:  repository.ProvideStore[clientdomain.Client](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req clientdomain.CreateRequest) (clientdomain.Client, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return clientdomain.Client{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return clientdomain.Client{}, clientdomain.ErrInvalidName
	}

	guard, err := s.limits.Prepare(ctx, plandomain.ResourceClients)
	if err != nil {
		return clientdomain.Client{}, err
	}

	now := s.clock.Now().UTC()
	item := clientdomain.Client{
		ID:         s.genID.Generate(),
		UserID:     userID,
		BusinessID: snowflake.ID(businessID),
		Name:       name,
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		if err := guard.Check(ctx, tx); err != nil {
			return err
		}
		return s.store.WithTrx(tx).Create(ctx, &item)
	})
	if err != nil {
		return clientdomain.Client{}, err
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req clientdomain.ListRequest) (clientdomain.ListResponse, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return clientdomain.ListResponse{}, err
	}

	opts := []option.QueryOption{option.ApplyPagination(req.Pagination)}
	if search := strings.TrimSpace(req.Search); search != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "LOWER(name)",
			Operator: option.LIKE,
			Value:    "%" + strings.ToLower(search) + "%",
		}))
	}

	items, err := s.store.Find(ctx, &clientdomain.Client{UserID: userID, BusinessID: snowflake.ID(businessID)}, opts...)
	if err != nil {
		return clientdomain.ListResponse{}, err
	}

	rows, info := pagination.Page(items, req.Limit(), func(c *clientdomain.Client) int64 { return c.ID.Int64() })
	out := clientdomain.ListResponse{PageInfo: info, Clients: make([]clientdomain.Client, 0, len(rows))}
	for _, item := range rows {
		out.Clients = append(out.Clients, *item)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (clientdomain.Client, error) {
	query, err := s.scoped(ctx, id)
	if err != nil {
		return clientdomain.Client{}, err
	}
	item, err := s.store.FindOne(ctx, query)
	if err != nil {
		return clientdomain.Client{}, err
	}
	if item == nil {
		return clientdomain.Client{}, clientdomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	query, err := s.scoped(ctx, id)
	if err != nil {
		return err
	}
	rows, err := s.store.Delete(ctx, query)
	if err != nil {
		return err
	}
	if rows == 0 {
		return clientdomain.ErrNotFound
	}
	s.log.Info("client deleted", zap.String("user_id", query.UserID), zap.String("client_id", query.ID.String()))
	return nil
}

func (s *Service) scoped(ctx context.Context, id string) (*clientdomain.Client, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}
	clientID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || clientID <= 0 {
		return nil, clientdomain.ErrNotFound
	}
	return &clientdomain.Client{ID: clientID, UserID: userID, BusinessID: snowflake.ID(businessID)}, nil
}
