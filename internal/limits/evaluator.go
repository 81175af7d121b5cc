// Package limits decides whether a tenant may create another resource under
// its current plan.
package limits

import (
	"context"
	"errors"
	"fmt"

	obsmetrics "github.com/smallbiznis/invoicely/internal/observability/metrics"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"github.com/smallbiznis/invoicely/pkg/rls"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrLimitExceeded = errors.New("limit_exceeded")
	ErrInvalidTenant = errors.New("invalid_tenant")
)

// Decision is the evaluator outcome. Message is set only on denial.
type Decision struct {
	Allowed bool                    `json:"allowed"`
	Message string                  `json:"message,omitempty"`
	Kind    plandomain.ResourceKind `json:"resource"`
	Limit   plandomain.Limit        `json:"limit"`
	Plan    string                  `json:"plan"`
}

// ExceededError carries a denial back through a create call.
type ExceededError struct {
	Decision Decision
}

func (e *ExceededError) Error() string { return e.Decision.Message }

func (e *ExceededError) Unwrap() error { return ErrLimitExceeded }

// SubscriptionLookup is the read side of the subscription service.
type SubscriptionLookup interface {
	Lookup(ctx context.Context) (*subscriptiondomain.Subscription, error)
}

type Evaluator struct {
	log     *zap.Logger
	subs    SubscriptionLookup
	plans   plandomain.Service
	counter Counter
	metrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Subscriptions subscriptiondomain.Service
	Plans         plandomain.Service
	Counter       Counter
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

func NewEvaluator(p Params) *Evaluator {
	return &Evaluator{
		log:     p.Log.Named("limits"),
		subs:    p.Subscriptions,
		plans:   p.Plans,
		counter: p.Counter,
		metrics: p.Metrics,
	}
}

// ResolvePlan returns the plan whose limits apply to the tenant. Anything
// other than an active subscription with a readable plan resolves to Free.
func (e *Evaluator) ResolvePlan(ctx context.Context) (plandomain.Plan, error) {
	if _, ok := tenantctx.TenantID(ctx); !ok {
		return plandomain.Plan{}, ErrInvalidTenant
	}

	sub, err := e.subs.Lookup(ctx)
	if err != nil {
		e.log.Warn("subscription lookup failed, applying free limits", zap.Error(err))
		return e.plans.Free(ctx), nil
	}
	if sub == nil || !sub.IsActive() {
		return e.plans.Free(ctx), nil
	}

	plan, err := e.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		e.log.Warn("plan lookup failed, applying free limits",
			zap.String("plan_id", sub.PlanID.String()),
			zap.Error(err),
		)
		return e.plans.Free(ctx), nil
	}
	return plan, nil
}

// CheckPlanLimit decides whether one more resource of kind may be created
// when currentCount already exist. It has no side effects.
func (e *Evaluator) CheckPlanLimit(ctx context.Context, kind plandomain.ResourceKind, currentCount int64) (Decision, error) {
	if _, err := plandomain.ParseResourceKind(string(kind)); err != nil {
		return Decision{}, err
	}

	plan, err := e.ResolvePlan(ctx)
	if err != nil {
		return Decision{}, err
	}
	return decide(plan, kind, currentCount)
}

func decide(plan plandomain.Plan, kind plandomain.ResourceKind, currentCount int64) (Decision, error) {
	limit, err := plan.LimitFor(kind)
	if err != nil {
		return Decision{}, err
	}

	decision := Decision{
		Allowed: limit.Allows(currentCount),
		Kind:    kind,
		Limit:   limit,
		Plan:    plan.Name,
	}
	if !decision.Allowed {
		decision.Message = fmt.Sprintf("You have reached your plan's limit of %d %s. Upgrade your plan to add more.", int64(limit), kind)
	}
	return decision, nil
}

// Guard applies one resolved plan to a create operation. Resolve it before
// opening the write transaction, then Check inside it.
type Guard struct {
	e      *Evaluator
	userID string
	kind   plandomain.ResourceKind
	plan   plandomain.Plan
}

func (e *Evaluator) Prepare(ctx context.Context, kind plandomain.ResourceKind) (*Guard, error) {
	userID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return nil, ErrInvalidTenant
	}
	if _, err := plandomain.ParseResourceKind(string(kind)); err != nil {
		return nil, err
	}

	plan, err := e.ResolvePlan(ctx)
	if err != nil {
		return nil, err
	}
	return &Guard{e: e, userID: userID, kind: kind, plan: plan}, nil
}

// Check counts the tenant's rows on db and returns an *ExceededError when
// the plan does not allow another one. db must be the transaction that
// performs the insert; the tenant lock is held until it ends.
func (g *Guard) Check(ctx context.Context, db *gorm.DB) error {
	if err := rls.LockTenant(db.WithContext(ctx), g.userID); err != nil {
		return err
	}
	count, err := g.e.counter.Count(ctx, db, g.userID, g.kind)
	if err != nil {
		return err
	}

	decision, err := decide(g.plan, g.kind, count)
	if err != nil {
		return err
	}
	if decision.Allowed {
		return nil
	}

	g.e.metrics.RecordLimitDenied(ctx, string(g.kind), decision.Plan)
	g.e.log.Info("plan limit reached",
		zap.String("user_id", g.userID),
		zap.String("resource", string(g.kind)),
		zap.Int64("count", count),
		zap.Int64("limit", int64(decision.Limit)),
		zap.String("plan", decision.Plan),
	)
	return &ExceededError{Decision: decision}
}
