package limits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/invoicely/internal/clock"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	planrepo "github.com/smallbiznis/invoicely/internal/plan/repository"
	planservice "github.com/smallbiznis/invoicely/internal/plan/service"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	subscriptionrepo "github.com/smallbiznis/invoicely/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/invoicely/internal/subscription/service"
	"github.com/smallbiznis/invoicely/internal/testutil"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	subs      subscriptiondomain.Service
	evaluator *Evaluator
	plans     map[string]plandomain.Plan
}

func newFixture(t *testing.T, seedPlans bool) fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.SubscriptionInvoice{},
	)
	require.NoError(t, db.Exec(`CREATE TABLE clients (id INTEGER PRIMARY KEY, user_id TEXT NOT NULL)`).Error)
	for _, table := range []string{"businesses", "invoices", "receipts", "expenses"} {
		require.NoError(t, db.Exec(`CREATE TABLE `+table+` (id INTEGER PRIMARY KEY, user_id TEXT NOT NULL)`).Error)
	}

	node := testutil.Node(t)
	var plans map[string]plandomain.Plan
	if seedPlans {
		plans = testutil.SeedPlans(t, db, node)
	}

	planSvc := planservice.NewService(planservice.ServiceParam{DB: db, Log: zap.NewNop(), Repo: planrepo.Provide()})
	subs := subscriptionservice.NewService(subscriptionservice.ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  subscriptionrepo.Provide(),
		Plans: planSvc,
	})
	evaluator := NewEvaluator(Params{
		Log:           zap.NewNop(),
		Subscriptions: subs,
		Plans:         planSvc,
		Counter:       NewCounter(),
	})
	return fixture{db: db, subs: subs, evaluator: evaluator, plans: plans}
}

func tenant(userID string) context.Context {
	return tenantctx.WithTenant(context.Background(), userID)
}

func (f fixture) activate(t *testing.T, ctx context.Context, planName string) {
	t.Helper()
	current, err := f.subs.InitiateUpgrade(ctx, subscriptiondomain.InitiateUpgradeRequest{PlanName: planName})
	require.NoError(t, err)
	_, err = f.subs.ConfirmPayment(context.Background(), subscriptiondomain.Confirmation{
		SubscriptionID: current.ID,
		Reference:      "ref_" + planName,
		AmountMinor:    current.Plan.PriceMinor,
		PaidAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Source:         subscriptiondomain.SourceWebhook,
	})
	require.NoError(t, err)
}

func TestCheckPlanLimitBoundary(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	_, err := f.subs.EnsureDefault(ctx)
	require.NoError(t, err)

	allowed, err := f.evaluator.CheckPlanLimit(ctx, plandomain.ResourceClients, 4)
	require.NoError(t, err)
	assert.True(t, allowed.Allowed)
	assert.Empty(t, allowed.Message)

	denied, err := f.evaluator.CheckPlanLimit(ctx, plandomain.ResourceClients, 5)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)
	assert.Equal(t, "You have reached your plan's limit of 5 clients. Upgrade your plan to add more.", denied.Message)
	assert.Equal(t, "Free", denied.Plan)
}

func TestCheckPlanLimitUnbounded(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	f.activate(t, ctx, "Business")

	for _, kind := range plandomain.AllResourceKinds {
		decision, err := f.evaluator.CheckPlanLimit(ctx, kind, 10000)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, kind)
		assert.True(t, decision.Limit.IsUnbounded())
	}
}

func TestCheckPlanLimitUsesActivePaidPlan(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	f.activate(t, ctx, "Pro")

	decision, err := f.evaluator.CheckPlanLimit(ctx, plandomain.ResourceClients, 50)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, "Pro", decision.Plan)
}

func TestCheckPlanLimitFailsClosedWithoutSubscription(t *testing.T) {
	f := newFixture(t, true)

	decision, err := f.evaluator.CheckPlanLimit(tenant("nobody"), plandomain.ResourceBusinesses, 1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, "Free", decision.Plan)
}

func TestCheckPlanLimitPendingUsesFreeLimits(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	_, err := f.subs.InitiateUpgrade(ctx, subscriptiondomain.InitiateUpgradeRequest{PlanName: "Pro"})
	require.NoError(t, err)

	decision, err := f.evaluator.CheckPlanLimit(ctx, plandomain.ResourceClients, 5)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

func TestCheckPlanLimitFailsClosedWithEmptyCatalog(t *testing.T) {
	f := newFixture(t, false)

	decision, err := f.evaluator.CheckPlanLimit(tenant("user-1"), plandomain.ResourceClients, 5)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Contains(t, decision.Message, "5 clients")
}

func TestCheckPlanLimitRejectsUnknownKind(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.evaluator.CheckPlanLimit(tenant("user-1"), plandomain.ResourceKind("projects"), 0)
	assert.ErrorIs(t, err, plandomain.ErrUnknownResourceKind)
}

func TestCheckPlanLimitRequiresTenant(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.evaluator.CheckPlanLimit(context.Background(), plandomain.ResourceClients, 0)
	assert.ErrorIs(t, err, ErrInvalidTenant)
}

func TestGuardCountsInsideTransaction(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	_, err := f.subs.EnsureDefault(ctx)
	require.NoError(t, err)

	guard, err := f.evaluator.Prepare(ctx, plandomain.ResourceClients)
	require.NoError(t, err)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		for i := 1; i <= 5; i++ {
			if err := guard.Check(ctx, tx); err != nil {
				return err
			}
			if err := tx.Exec(`INSERT INTO clients (id, user_id) VALUES (?, ?)`, i, "user-1").Error; err != nil {
				return err
			}
		}
		return guard.Check(ctx, tx)
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLimitExceeded))

	var exceeded *ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, plandomain.Limit(5), exceeded.Decision.Limit)
	assert.Equal(t, int64(0), testutil.Count(t, f.db, "clients", ""))
}

func TestGuardConcurrentCreatesStopAtLimit(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	_, err := f.subs.EnsureDefault(ctx)
	require.NoError(t, err)

	guard, err := f.evaluator.Prepare(ctx, plandomain.ResourceClients)
	require.NoError(t, err)

	const attempts = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, attempts)
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.db.Transaction(func(tx *gorm.DB) error {
				if err := guard.Check(ctx, tx); err != nil {
					return err
				}
				return tx.Exec(`INSERT INTO clients (id, user_id) VALUES (?, ?)`, i+1, "user-1").Error
			})
		}(i)
	}
	wg.Wait()

	denied := 0
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, ErrLimitExceeded)
			denied++
		}
	}
	assert.Equal(t, attempts-5, denied)
	assert.Equal(t, int64(5), testutil.Count(t, f.db, "clients", "user_id = ?", "user-1"))
}

func TestGuardIgnoresOtherTenants(t *testing.T) {
	f := newFixture(t, true)
	for i := 1; i <= 5; i++ {
		require.NoError(t, f.db.Exec(`INSERT INTO clients (id, user_id) VALUES (?, ?)`, i, "user-2").Error)
	}

	guard, err := f.evaluator.Prepare(tenant("user-1"), plandomain.ResourceClients)
	require.NoError(t, err)
	assert.NoError(t, guard.Check(tenant("user-1"), f.db))
}

func TestUsageSummary(t *testing.T) {
	f := newFixture(t, true)
	ctx := tenant("user-1")
	require.NoError(t, f.db.Exec(`INSERT INTO clients (id, user_id) VALUES (1, 'user-1'), (2, 'user-1')`).Error)

	usage, err := f.evaluator.Usage(ctx, f.db)
	require.NoError(t, err)
	assert.Equal(t, "Free", usage.Plan)
	require.Len(t, usage.Items, len(plandomain.AllResourceKinds))

	for _, item := range usage.Items {
		if item.Resource != plandomain.ResourceClients {
			continue
		}
		assert.Equal(t, int64(2), item.Used)
		require.NotNil(t, item.Remaining)
		assert.Equal(t, int64(3), *item.Remaining)
	}
}
