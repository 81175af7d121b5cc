// Package billingtest wires the subscription stack over an in-memory
// database for billing flow tests.
package billingtest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/invoicely/internal/billing/domain"
	"github.com/smallbiznis/invoicely/internal/clock"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	planrepo "github.com/smallbiznis/invoicely/internal/plan/repository"
	planservice "github.com/smallbiznis/invoicely/internal/plan/service"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/invoicely/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/invoicely/internal/subscription/service"
	"github.com/smallbiznis/invoicely/internal/testutil"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Fixture struct {
	DB            *gorm.DB
	Node          *snowflake.Node
	Clock         *clock.FakeClock
	Plans         map[string]plandomain.Plan
	Subscriptions subscriptiondomain.Service
}

func New(t *testing.T) Fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.SubscriptionInvoice{},
		&billingdomain.EventRecord{},
	)
	node := testutil.Node(t)
	plans := testutil.SeedPlans(t, db, node)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	planSvc := planservice.NewService(planservice.ServiceParam{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: planrepo.Provide(),
	})
	subs := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  subscriptionrepo.Provide(),
		Plans: planSvc,
	})
	return Fixture{DB: db, Node: node, Clock: fake, Plans: plans, Subscriptions: subs}
}

func Tenant(userID string) context.Context {
	ctx := tenantctx.WithTenant(context.Background(), userID)
	return tenantctx.WithEmail(ctx, userID+"@example.com")
}

// PendingUpgrade parks userID's subscription on planName awaiting payment.
func (f Fixture) PendingUpgrade(t *testing.T, userID, planName string) subscriptiondomain.Subscription {
	t.Helper()
	current, err := f.Subscriptions.InitiateUpgrade(Tenant(userID), subscriptiondomain.InitiateUpgradeRequest{PlanName: planName})
	require.NoError(t, err)
	require.Equal(t, subscriptiondomain.SubscriptionStatusPending, current.Status)
	return current.Subscription
}

func (f Fixture) Reload(t *testing.T, id snowflake.ID) subscriptiondomain.Subscription {
	t.Helper()
	var sub subscriptiondomain.Subscription
	require.NoError(t, f.DB.First(&sub, "id = ?", id).Error)
	return sub
}
