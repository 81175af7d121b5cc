package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/invoicely/internal/client/domain"
	"github.com/smallbiznis/invoicely/internal/clock"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	"github.com/smallbiznis/invoicely/internal/invoice/format"
	"github.com/smallbiznis/invoicely/internal/limits"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"github.com/smallbiznis/invoicely/pkg/db"
	"github.com/smallbiznis/invoicely/pkg/db/option"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
	"github.com/smallbiznis/invoicely/pkg/repository"
	"github.com/smallbiznis/invoicely/pkg/rls"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Limits *limits.Evaluator
	Repo   invoicedomain.Repository
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	limits *limits.Evaluator
	repo   invoicedomain.Repository

	store   repository.Repository[invoicedomain.Invoice]
	clients repository.Repository[clientdomain.Client]
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("invoice.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		limits: p.Limits,
		repo:   p.Repo,

		store:   repository.ProvideStore[invoicedomain.Invoice](p.DB),
		clients: repository.ProvideStore[clientdomain.Client](p.DB),
	}
}

// Create stores an invoice or estimate. Both are gated by the invoices limit.
func (s *Service) Create(ctx context.Context, req invoicedomain.CreateRequest) (invoicedomain.Invoice, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !req.Kind.Valid() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidKind
	}
	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID <= 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidClient
	}
	items, subtotal, err := buildItems(req.Items)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if req.TaxMinor < 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidItems
	}

	guard, err := s.limits.Prepare(ctx, plandomain.ResourceInvoices)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now().UTC()
	issueDate := now
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = req.IssueDate.UTC()
	}

	item := invoicedomain.Invoice{
		ID:            s.genID.Generate(),
		UserID:        userID,
		BusinessID:    snowflake.ID(businessID),
		ClientID:      clientID,
		Kind:          req.Kind,
		Number:        strings.TrimSpace(req.Number),
		Status:        invoicedomain.StatusDraft,
		Items:         datatypes.NewJSONType(items),
		SubtotalMinor: subtotal,
		TaxMinor:      req.TaxMinor,
		TotalMinor:    subtotal + req.TaxMinor,
		IssueDate:     issueDate,
		DueDate:       req.DueDate,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		if err := guard.Check(ctx, tx); err != nil {
			return err
		}

		client, err := s.clients.WithTrx(tx).FindOne(ctx, &clientdomain.Client{
			ID:         clientID,
			UserID:     userID,
			BusinessID: snowflake.ID(businessID),
		})
		if err != nil {
			return err
		}
		if client == nil {
			return invoicedomain.ErrInvalidClient
		}

		item.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
		if item.Currency == "" {
			item.Currency, err = s.businessCurrency(ctx, tx, businessID)
			if err != nil {
				return err
			}
		}

		if item.Number == "" {
			count, err := s.repo.CountByKind(ctx, tx, userID, req.Kind)
			if err != nil {
				return err
			}
			item.Number, err = format.FormatNumber(numberTemplate(req.Kind), issueDate, count+1)
			if err != nil {
				return err
			}
		}

		if err := s.store.WithTrx(tx).Create(ctx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrDuplicateNumber
			}
			return err
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice created",
		zap.String("user_id", userID),
		zap.String("invoice_id", item.ID.String()),
		zap.String("kind", string(item.Kind)),
		zap.String("number", item.Number),
	)
	return item, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}
	if !req.Kind.Valid() {
		return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidKind
	}

	filter := &invoicedomain.Invoice{UserID: userID, BusinessID: snowflake.ID(businessID), Kind: req.Kind}
	if status := strings.TrimSpace(req.Status); status != "" {
		if !req.Kind.Allows(invoicedomain.Status(status)) {
			return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidStatus
		}
		filter.Status = invoicedomain.Status(status)
	}
	if req.ClientID != "" {
		clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
		if err != nil {
			return invoicedomain.ListResponse{}, invoicedomain.ErrInvalidClient
		}
		filter.ClientID = clientID
	}

	items, err := s.store.Find(ctx, filter, option.ApplyPagination(req.Pagination))
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}

	rows, info := pagination.Page(items, req.Limit(), func(i *invoicedomain.Invoice) int64 { return i.ID.Int64() })
	out := invoicedomain.ListResponse{PageInfo: info, Invoices: make([]invoicedomain.Invoice, 0, len(rows))}
	for _, item := range rows {
		out.Invoices = append(out.Invoices, *item)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, kind invoicedomain.Kind, id string) (invoicedomain.Invoice, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || invoiceID <= 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}

	item, err := s.store.FindOne(ctx, &invoicedomain.Invoice{
		ID:         invoiceID,
		UserID:     userID,
		BusinessID: snowflake.ID(businessID),
		Kind:       kind,
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if item == nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotFound
	}
	return *item, nil
}

// MarkStatus moves a document to status. Paid invoices are final.
func (s *Service) MarkStatus(ctx context.Context, kind invoicedomain.Kind, id string, status invoicedomain.Status) (invoicedomain.Invoice, error) {
	current, err := s.Get(ctx, kind, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !kind.Allows(status) {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}
	if current.Status == status {
		return current, nil
	}

	now := s.clock.Now().UTC()
	err = rls.Transaction(s.db.WithContext(ctx), current.UserID, func(tx *gorm.DB) error {
		rows, err := s.repo.UpdateStatus(ctx, tx, current.UserID, current.BusinessID, current.ID, kind, status, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return invoicedomain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	s.log.Info("invoice status changed",
		zap.String("invoice_id", current.ID.String()),
		zap.String("from", string(current.Status)),
		zap.String("to", string(status)),
	)
	return s.Get(ctx, kind, id)
}

func (s *Service) businessCurrency(ctx context.Context, tx *gorm.DB, businessID int64) (string, error) {
	var currency string
	err := tx.WithContext(ctx).Table("businesses").Select("currency").Where("id = ?", businessID).Scan(&currency).Error
	if err != nil {
		return "", err
	}
	if currency == "" {
		currency = "NGN"
	}
	return currency, nil
}

func buildItems(inputs []invoicedomain.LineItemInput) ([]invoicedomain.LineItem, int64, error) {
	if len(inputs) == 0 {
		return nil, 0, invoicedomain.ErrInvalidItems
	}
	items := make([]invoicedomain.LineItem, 0, len(inputs))
	var subtotal int64
	for _, in := range inputs {
		description := strings.TrimSpace(in.Description)
		if description == "" || in.Quantity <= 0 || in.UnitPriceMinor < 0 {
			return nil, 0, invoicedomain.ErrInvalidItems
		}
		amount := in.Quantity * in.UnitPriceMinor
		items = append(items, invoicedomain.LineItem{
			Description:    description,
			Quantity:       in.Quantity,
			UnitPriceMinor: in.UnitPriceMinor,
			AmountMinor:    amount,
		})
		subtotal += amount
	}
	return items, subtotal, nil
}

func numberTemplate(kind invoicedomain.Kind) string {
	if kind == invoicedomain.KindEstimate {
		return format.EstimateNumberTemplate
	}
	return format.InvoiceNumberTemplate
}

