package service

import (
	"context"
	"fmt"
	"testing"

	clientdomain "github.com/smallbiznis/invoicely/internal/client/domain"
	"github.com/smallbiznis/invoicely/internal/limits"
	"github.com/smallbiznis/invoicely/internal/limits/limitstest"
	"github.com/smallbiznis/invoicely/internal/testutil"
	"github.com/smallbiznis/invoicely/pkg/db/pagination"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (clientdomain.Service, limitstest.Stack, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t, limitstest.Models(&clientdomain.Client{})...)
	stack := limitstest.New(t, db)
	svc := NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  stack.Node,
		Clock:  stack.Clock,
		Limits: stack.Evaluator,
	})
	return svc, stack, db
}

func scope(userID string, businessID int64) context.Context {
	return tenantctx.WithBusiness(tenantctx.WithTenant(context.Background(), userID), businessID)
}

func TestCreateStopsAtFreeClientLimit(t *testing.T) {
	svc, _, db := newService(t)
	ctx := scope("user-1", 100)

	for i := 1; i <= 5; i++ {
		_, err := svc.Create(ctx, clientdomain.CreateRequest{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err, "client %d", i)
	}

	_, err := svc.Create(ctx, clientdomain.CreateRequest{Name: "Client 6"})
	require.ErrorIs(t, err, limits.ErrLimitExceeded)
	assert.Contains(t, err.Error(), "5 clients")
	assert.Equal(t, int64(5), testutil.Count(t, db, "clients", "user_id = ?", "user-1"))
}

func TestLimitCountsAcrossBusinesses(t *testing.T) {
	svc, _, _ := newService(t)

	for i := 1; i <= 5; i++ {
		_, err := svc.Create(scope("user-1", int64(100+i%2)), clientdomain.CreateRequest{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err)
	}
	_, err := svc.Create(scope("user-1", 102), clientdomain.CreateRequest{Name: "Client 6"})
	assert.ErrorIs(t, err, limits.ErrLimitExceeded)

	_, err = svc.Create(scope("user-2", 200), clientdomain.CreateRequest{Name: "Other tenant"})
	assert.NoError(t, err)
}

func TestDeleteFreesCapacity(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := scope("user-1", 100)

	var last clientdomain.Client
	for i := 1; i <= 5; i++ {
		created, err := svc.Create(ctx, clientdomain.CreateRequest{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err)
		last = created
	}
	require.NoError(t, svc.Delete(ctx, last.ID.String()))

	_, err := svc.Create(ctx, clientdomain.CreateRequest{Name: "Replacement"})
	assert.NoError(t, err)
}

func TestUnboundedPlanAllowsMoreClients(t *testing.T) {
	svc, stack, _ := newService(t)
	stack.Activate(t, "user-1", "Business")
	ctx := scope("user-1", 100)

	for i := 1; i <= 8; i++ {
		_, err := svc.Create(ctx, clientdomain.CreateRequest{Name: fmt.Sprintf("Client %d", i)})
		require.NoError(t, err)
	}
}

func TestScopingAndValidation(t *testing.T) {
	svc, _, _ := newService(t)
	created, err := svc.Create(scope("user-1", 100), clientdomain.CreateRequest{Name: "Ada", Email: " ADA@Example.com "})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)

	_, err = svc.Get(scope("user-1", 101), created.ID.String())
	assert.ErrorIs(t, err, clientdomain.ErrNotFound)
	_, err = svc.Get(scope("user-2", 100), created.ID.String())
	assert.ErrorIs(t, err, clientdomain.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(scope("user-2", 100), created.ID.String()), clientdomain.ErrNotFound)

	_, err = svc.Create(tenantctx.WithTenant(context.Background(), "user-1"), clientdomain.CreateRequest{Name: "No business"})
	assert.ErrorIs(t, err, tenantctx.ErrMissingBusiness)
	_, err = svc.Create(scope("user-1", 100), clientdomain.CreateRequest{})
	assert.ErrorIs(t, err, clientdomain.ErrInvalidName)
}

func TestListSearch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := scope("user-1", 100)
	for _, name := range []string{"Ada Lovelace", "Grace Hopper", "Adaeze Okafor"} {
		_, err := svc.Create(ctx, clientdomain.CreateRequest{Name: name})
		require.NoError(t, err)
	}

	res, err := svc.List(ctx, clientdomain.ListRequest{Search: "ada"})
	require.NoError(t, err)
	require.Len(t, res.Clients, 2)
	assert.Equal(t, "Adaeze Okafor", res.Clients[0].Name)

	all, err := svc.List(ctx, clientdomain.ListRequest{Pagination: pagination.Pagination{PageSize: 10}})
	require.NoError(t, err)
	assert.Len(t, all.Clients, 3)
	assert.False(t, all.HasMore)
}
