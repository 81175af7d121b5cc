package limits

import (
	"context"

	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"gorm.io/gorm"
)

// Counter counts a tenant's existing resources of one kind.
type Counter interface {
	Count(ctx context.Context, db *gorm.DB, userID string, kind plandomain.ResourceKind) (int64, error)
}

type tableCounter struct{}

func NewCounter() Counter {
	return tableCounter{}
}

// Estimates share the invoices table and count against the invoices limit.
func (tableCounter) Count(ctx context.Context, db *gorm.DB, userID string, kind plandomain.ResourceKind) (int64, error) {
	var table string
	switch kind {
	case plandomain.ResourceBusinesses:
		table = "businesses"
	case plandomain.ResourceClients:
		table = "clients"
	case plandomain.ResourceInvoices:
		table = "invoices"
	case plandomain.ResourceReceipts:
		table = "receipts"
	case plandomain.ResourceExpenses:
		table = "expenses"
	default:
		return 0, plandomain.ErrUnknownResourceKind
	}

	var count int64
	err := db.WithContext(ctx).Table(table).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

type UsageItem struct {
	Resource  plandomain.ResourceKind `json:"resource"`
	Used      int64                   `json:"used"`
	Limit     plandomain.Limit        `json:"limit"`
	Unbounded bool                    `json:"unbounded"`
	Remaining *int64                  `json:"remaining,omitempty"`
}

type Usage struct {
	Plan  string      `json:"plan"`
	Items []UsageItem `json:"items"`
}

// Usage summarises consumption against the applicable plan for every kind.
func (e *Evaluator) Usage(ctx context.Context, db *gorm.DB) (Usage, error) {
	userID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return Usage{}, ErrInvalidTenant
	}

	plan, err := e.ResolvePlan(ctx)
	if err != nil {
		return Usage{}, err
	}

	out := Usage{Plan: plan.Name, Items: make([]UsageItem, 0, len(plandomain.AllResourceKinds))}
	for _, kind := range plandomain.AllResourceKinds {
		used, err := e.counter.Count(ctx, db, userID, kind)
		if err != nil {
			return Usage{}, err
		}
		limit, err := plan.LimitFor(kind)
		if err != nil {
			return Usage{}, err
		}

		item := UsageItem{
			Resource:  kind,
			Used:      used,
			Limit:     limit,
			Unbounded: limit.IsUnbounded(),
		}
		if !limit.IsUnbounded() {
			remaining := int64(limit) - used
			if remaining < 0 {
				remaining = 0
			}
			item.Remaining = &remaining
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
