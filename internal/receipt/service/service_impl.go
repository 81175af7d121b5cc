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
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
	"github.com/smallbiznis/invoicely/pkg/db"
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

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Limits   *limits.Evaluator
	Invoices invoicedomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	limits   *limits.Evaluator
	invoices invoicedomain.Repository

	store   repository.Repository[receiptdomain.Receipt]
	clients repository.Repository[clientdomain.Client]
}

func NewService(p ServiceParam) receiptdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("receipt.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		limits:   p.Limits,
		invoices: p.Invoices,

		store:   repository.ProvideStore[receiptdomain.Receipt](p.DB),
		clients: repository.ProvideStore[clientdomain.Client](p.DB),
	}
}

// Create records a payment. When the receipt settles an invoice, the invoice
// is marked paid in the same transaction, so a failed insert leaves it as it
// was.
func (s *Service) Create(ctx context.Context, req receiptdomain.CreateRequest) (receiptdomain.Receipt, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	if req.AmountMinor <= 0 {
		return receiptdomain.Receipt{}, receiptdomain.ErrInvalidAmount
	}
	invoiceID, err := parseOptionalID(req.InvoiceID, receiptdomain.ErrInvalidInvoice)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	clientID, err := parseOptionalID(req.ClientID, receiptdomain.ErrInvalidClient)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	guard, err := s.limits.Prepare(ctx, plandomain.ResourceReceipts)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	now := s.clock.Now().UTC()
	paidOn := now
	if req.PaidOn != nil && !req.PaidOn.IsZero() {
		paidOn = req.PaidOn.UTC()
	}
	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = "cash"
	}

	item := receiptdomain.Receipt{
		ID:            s.genID.Generate(),
		UserID:        userID,
		BusinessID:    snowflake.ID(businessID),
		ClientID:      clientID,
		InvoiceID:     invoiceID,
		Number:        strings.TrimSpace(req.Number),
		AmountMinor:   req.AmountMinor,
		Currency:      strings.ToUpper(strings.TrimSpace(req.Currency)),
		PaymentMethod: method,
		PaidOn:        paidOn,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
	}

	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		if err := guard.Check(ctx, tx); err != nil {
			return err
		}

		if invoiceID != nil {
			invoice, err := s.invoices.FindOwned(ctx, tx, userID, *invoiceID)
			if err != nil {
				return err
			}
			if invoice == nil || invoice.Kind != invoicedomain.KindInvoice {
				return receiptdomain.ErrInvalidInvoice
			}
			if item.ClientID == nil {
				item.ClientID = &invoice.ClientID
			}
			if item.Currency == "" {
				item.Currency = invoice.Currency
			}
		}

		if clientID != nil {
			client, err := s.clients.WithTrx(tx).FindOne(ctx, &clientdomain.Client{ID: *clientID, UserID: userID})
			if err != nil {
				return err
			}
			if client == nil {
				return receiptdomain.ErrInvalidClient
			}
		}

		if item.Currency == "" {
			if err := tx.WithContext(ctx).Table("businesses").Select("currency").Where("id = ?", businessID).Scan(&item.Currency).Error; err != nil {
				return err
			}
			if item.Currency == "" {
				item.Currency = "NGN"
			}
		}

		if item.Number == "" {
			count, err := s.store.WithTrx(tx).Count(ctx, &receiptdomain.Receipt{UserID: userID})
			if err != nil {
				return err
			}
			item.Number, err = format.FormatNumber(format.ReceiptNumberTemplate, paidOn, count+1)
			if err != nil {
				return err
			}
		}

		if err := s.store.WithTrx(tx).Create(ctx, &item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return receiptdomain.ErrDuplicateNumber
			}
			return err
		}

		if invoiceID != nil {
			if _, err := s.invoices.MarkPaid(ctx, tx, userID, *invoiceID, paidOn); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return receiptdomain.Receipt{}, err
	}

	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.String("receipt_id", item.ID.String()),
		zap.String("number", item.Number),
	}
	if invoiceID != nil {
		fields = append(fields, zap.String("invoice_id", invoiceID.String()))
	}
	s.log.Info("receipt created", fields...)
	return item, nil
}

func (s *Service) List(ctx context.Context, req receiptdomain.ListRequest) (receiptdomain.ListResponse, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return receiptdomain.ListResponse{}, err
	}

	filter := &receiptdomain.Receipt{UserID: userID, BusinessID: snowflake.ID(businessID)}
	invoiceID, err := parseOptionalID(req.InvoiceID, receiptdomain.ErrInvalidInvoice)
	if err != nil {
		return receiptdomain.ListResponse{}, err
	}
	filter.InvoiceID = invoiceID

	items, err := s.store.Find(ctx, filter, option.ApplyPagination(req.Pagination))
	if err != nil {
		return receiptdomain.ListResponse{}, err
	}

	rows, info := pagination.Page(items, req.Limit(), func(r *receiptdomain.Receipt) int64 { return r.ID.Int64() })
	out := receiptdomain.ListResponse{PageInfo: info, Receipts: make([]receiptdomain.Receipt, 0, len(rows))}
	for _, item := range rows {
		out.Receipts = append(out.Receipts, *item)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (receiptdomain.Receipt, error) {
	userID, businessID, err := tenantctx.Require(ctx)
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	receiptID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || receiptID <= 0 {
		return receiptdomain.Receipt{}, receiptdomain.ErrNotFound
	}

	item, err := s.store.FindOne(ctx, &receiptdomain.Receipt{ID: receiptID, UserID: userID, BusinessID: snowflake.ID(businessID)})
	if err != nil {
		return receiptdomain.Receipt{}, err
	}
	if item == nil {
		return receiptdomain.Receipt{}, receiptdomain.ErrNotFound
	}
	return *item, nil
}

// parseOptionalID maps "", "no-invoice" and "null" to nil.
func parseOptionalID(value string, invalid error) (*snowflake.ID, error) {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", receiptdomain.NoInvoice, "null":
		return nil, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id <= 0 {
		return nil, invalid
	}
	return &id, nil
}
