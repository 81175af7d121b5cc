package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/internal/clock"
	expensedomain "github.com/smallbiznis/invoicely/internal/expense/domain"
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

const dateLayout = "2006-01-02"

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
	store  repository.Repository[expensedomain.Expense]
}

func NewService(p ServiceParam) expensedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("expense.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		limits: p.Limits,
		store:  repository.ProvideStore[expensedomain.Expense](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req expensedomain.CreateRequest) (expensedomain.Expense, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return expensedomain.Expense{}, err
	}
	category := strings.ToLower(strings.TrimSpace(req.Category))
	if category == "" {
		return expensedomain.Expense{}, expensedomain.ErrInvalidCategory
	}
	if req.AmountMinor <= 0 {
		return expensedomain.Expense{}, expensedomain.ErrInvalidAmount
	}

	guard, err := s.limits.Prepare(ctx, plandomain.ResourceExpenses)
	if err != nil {
		return expensedomain.Expense{}, err
	}

	now := s.clock.Now().UTC()
	spentOn := now
	if req.SpentOn != nil && !req.SpentOn.IsZero() {
		spentOn = req.SpentOn.UTC()
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "NGN"
	}

	item := expensedomain.Expense{
		ID:          s.genID.Generate(),
		UserID:      userID,
		BusinessID:  snowflake.ID(businessID),
		Category:    category,
		Vendor:      strings.TrimSpace(req.Vendor),
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		SpentOn:     spentOn,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		if err := guard.Check(ctx, tx); err != nil {
			return err
		}
		return s.store.WithTrx(tx).Create(ctx, &item)
	})
	if err != nil {
		return expensedomain.Expense{}, err
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req expensedomain.ListRequest) (expensedomain.ListResponse, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return expensedomain.ListResponse{}, err
	}

	opts := []option.QueryOption{option.ApplyPagination(req.Pagination)}
	if req.From != "" {
		from, err := time.Parse(dateLayout, req.From)
		if err != nil {
			return expensedomain.ListResponse{}, expensedomain.ErrInvalidRange
		}
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "spent_on", Operator: option.GTE, Value: from}))
	}
	if req.To != "" {
		to, err := time.Parse(dateLayout, req.To)
		if err != nil {
			return expensedomain.ListResponse{}, expensedomain.ErrInvalidRange
		}
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "spent_on", Operator: option.LT, Value: to.AddDate(0, 0, 1)}))
	}

	filter := &expensedomain.Expense{
		UserID:     userID,
		BusinessID: snowflake.ID(businessID),
		Category:   strings.ToLower(strings.TrimSpace(req.Category)),
	}
	items, err := s.store.Find(ctx, filter, opts...)
	if err != nil {
		return expensedomain.ListResponse{}, err
	}

	rows, info := pagination.Page(items, req.Limit(), func(e *expensedomain.Expense) int64 { return e.ID.Int64() })
	out := expensedomain.ListResponse{PageInfo: info, Expenses: make([]expensedomain.Expense, 0, len(rows))}
	for _, item := range rows {
		out.Expenses = append(out.Expenses, *item)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (expensedomain.Expense, error) {
	query, err := s.scoped(ctx, id)
	if err != nil {
		return expensedomain.Expense{}, err
	}
	item, err := s.store.FindOne(ctx, query)
	if err != nil {
		return expensedomain.Expense{}, err
	}
	if item == nil {
		return expensedomain.Expense{}, expensedomain.ErrNotFound
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
		return expensedomain.ErrNotFound
	}
	return nil
}

func (s *Service) scoped(ctx context.Context, id string) (*expensedomain.Expense, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}
	expenseID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || expenseID <= 0 {
		return nil, expensedomain.ErrNotFound
	}
	return &expensedomain.Expense{ID: expenseID, UserID: userID, BusinessID: snowflake.ID(businessID)}, nil
}
