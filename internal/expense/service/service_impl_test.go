package service

import (
	"context"
	"testing"
	"time"

	expensedomain "github.com/smallbiznis/invoicely/internal/expense/domain"
	"github.com/smallbiznis/invoicely/internal/limits"
	"github.com/smallbiznis/invoicely/internal/limits/limitstest"
	"github.com/smallbiznis/invoicely/internal/testutil"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) expensedomain.Service {
	t.Helper()
	db := testutil.NewDB(t, limitstest.Models(&expensedomain.Expense{})...)
	stack := limitstest.New(t, db)
	return NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  stack.Node,
		Clock:  stack.Clock,
		Limits: stack.Evaluator,
	})
}

func scope(userID string) context.Context {
	return tenantctx.WithBusiness(tenantctx.WithTenant(context.Background(), userID), 100)
}

func day(value string) *time.Time {
	t, _ := time.Parse(dateLayout, value)
	return &t
}

func TestCreateStopsAtFreeExpenseLimit(t *testing.T) {
	svc := newService(t)
	ctx := scope("user-1")

	for i := 0; i < 20; i++ {
		_, err := svc.Create(ctx, expensedomain.CreateRequest{Category: "Fuel", AmountMinor: 1000})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, expensedomain.CreateRequest{Category: "Fuel", AmountMinor: 1000})
	require.ErrorIs(t, err, limits.ErrLimitExceeded)
	assert.Contains(t, err.Error(), "20 expenses")
}

func TestCreateValidates(t *testing.T) {
	svc := newService(t)

	created, err := svc.Create(scope("user-1"), expensedomain.CreateRequest{Category: " Rent ", AmountMinor: 250000, Currency: "ghs"})
	require.NoError(t, err)
	assert.Equal(t, "rent", created.Category)
	assert.Equal(t, "GHS", created.Currency)

	_, err = svc.Create(scope("user-1"), expensedomain.CreateRequest{AmountMinor: 1})
	assert.ErrorIs(t, err, expensedomain.ErrInvalidCategory)
	_, err = svc.Create(scope("user-1"), expensedomain.CreateRequest{Category: "rent", AmountMinor: -1})
	assert.ErrorIs(t, err, expensedomain.ErrInvalidAmount)
	_, err = svc.Create(tenantctx.WithTenant(context.Background(), "user-1"), expensedomain.CreateRequest{Category: "rent", AmountMinor: 1})
	assert.ErrorIs(t, err, tenantctx.ErrMissingBusiness)
}

func TestListFiltersByCategoryAndDate(t *testing.T) {
	svc := newService(t)
	ctx := scope("user-1")
	seed := []expensedomain.CreateRequest{
		{Category: "fuel", AmountMinor: 100, SpentOn: day("2026-01-31")},
		{Category: "fuel", AmountMinor: 200, SpentOn: day("2026-02-10")},
		{Category: "rent", AmountMinor: 300, SpentOn: day("2026-02-28")},
	}
	for _, req := range seed {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	fuel, err := svc.List(ctx, expensedomain.ListRequest{Category: "FUEL"})
	require.NoError(t, err)
	assert.Len(t, fuel.Expenses, 2)

	feb, err := svc.List(ctx, expensedomain.ListRequest{From: "2026-02-01", To: "2026-02-28"})
	require.NoError(t, err)
	require.Len(t, feb.Expenses, 2)
	assert.Equal(t, int64(300), feb.Expenses[0].AmountMinor)

	_, err = svc.List(ctx, expensedomain.ListRequest{From: "yesterday"})
	assert.ErrorIs(t, err, expensedomain.ErrInvalidRange)

	other, err := svc.List(scope("user-2"), expensedomain.ListRequest{})
	require.NoError(t, err)
	assert.Empty(t, other.Expenses)
}

func TestGetAndDeleteAreScoped(t *testing.T) {
	svc := newService(t)
	created, err := svc.Create(scope("user-1"), expensedomain.CreateRequest{Category: "rent", AmountMinor: 300})
	require.NoError(t, err)

	_, err = svc.Get(scope("user-2"), created.ID.String())
	assert.ErrorIs(t, err, expensedomain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(scope("user-2"), created.ID.String()), expensedomain.ErrNotFound)

	got, err := svc.Get(scope("user-1"), created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	require.NoError(t, svc.Delete(scope("user-1"), created.ID.String()))
	_, err = svc.Get(scope("user-1"), created.ID.String())
	assert.ErrorIs(t, err, expensedomain.ErrNotFound)
}
