// Package limitstest builds a plan limit evaluator over a test database.
package limitstest

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/internal/clock"
	"github.com/smallbiznis/invoicely/internal/limits"
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

// Models returns the tables the evaluator reads plus extra.
func Models(extra ...any) []any {
	return append([]any{
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.SubscriptionInvoice{},
	}, extra...)
}

type Stack struct {
	Node          *snowflake.Node
	Clock         *clock.FakeClock
	Plans         map[string]plandomain.Plan
	Subscriptions subscriptiondomain.Service
	Evaluator     *limits.Evaluator
}

// New seeds the default catalog into db, which must already contain Models().
func New(t *testing.T, db *gorm.DB) Stack {
	t.Helper()
	node := testutil.Node(t)
	plans := testutil.SeedPlans(t, db, node)
	fake := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	planSvc := planservice.NewService(planservice.ServiceParam{DB: db, Log: zap.NewNop(), Repo: planrepo.Provide()})
	subs := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  subscriptionrepo.Provide(),
		Plans: planSvc,
	})
	evaluator := limits.NewEvaluator(limits.Params{
		Log:           zap.NewNop(),
		Subscriptions: subs,
		Plans:         planSvc,
		Counter:       limits.NewCounter(),
	})
	return Stack{Node: node, Clock: fake, Plans: plans, Subscriptions: subs, Evaluator: evaluator}
}

// Activate moves userID onto a paid plan as if its checkout had been paid.
func (s Stack) Activate(t *testing.T, userID, planName string) {
	t.Helper()
	ctx := tenantctx.WithTenant(context.Background(), userID)
	current, err := s.Subscriptions.InitiateUpgrade(ctx, subscriptiondomain.InitiateUpgradeRequest{PlanName: planName})
	require.NoError(t, err)

	_, err = s.Subscriptions.ConfirmPayment(ctx, subscriptiondomain.Confirmation{
		SubscriptionID: current.ID,
		Reference:      "ref_" + userID + "_" + planName,
		AmountMinor:    current.Plan.PriceMinor,
		PaidAt:         s.Clock.Now(),
		Source:         subscriptiondomain.SourceVerification,
	})
	require.NoError(t, err)
}
