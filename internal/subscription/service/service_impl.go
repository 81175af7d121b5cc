package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/internal/clock"
	obsmetrics "github.com/smallbiznis/invoicely/internal/observability/metrics"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"github.com/smallbiznis/invoicely/pkg/db"
	"github.com/smallbiznis/invoicely/pkg/rls"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	plans   plandomain.Service
	metrics *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Plans   plandomain.Service
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		plans:   p.Plans,
		metrics: p.Metrics,
	}
}

func (s *Service) tenant(ctx context.Context) (string, error) {
	userID, ok := tenantctx.TenantID(ctx)
	if !ok {
		return "", subscriptiondomain.ErrInvalidTenant
	}
	return userID, nil
}

// EnsureDefault creates the Free subscription on first access. Concurrent
// callers converge on the single row guarded by the user_id unique index.
func (s *Service) EnsureDefault(ctx context.Context) (subscriptiondomain.Subscription, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if existing != nil {
		return *existing, nil
	}

	free := s.plans.Free(ctx)
	if free.ID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrFreePlanMissing
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	end := plandomain.IntervalMonthly.AddTo(now)
	sub := subscriptiondomain.Subscription{
		ID:                 s.genID.Generate(),
		UserID:             userID,
		PlanID:             free.ID,
		Status:             subscriptiondomain.SubscriptionStatusActive,
		Interval:           plandomain.IntervalMonthly,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		created, err := s.repo.InsertIfAbsent(ctx, tx, &sub)
		if err != nil {
			return err
		}
		if created {
			s.log.Info("created default subscription",
				zap.String("user_id", userID),
				zap.String("subscription_id", sub.ID.String()),
			)
		}
		return nil
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	current, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *current, nil
}

func (s *Service) GetCurrent(ctx context.Context) (subscriptiondomain.CurrentSubscription, error) {
	sub, err := s.EnsureDefault(ctx)
	if err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}
	return s.withPlan(ctx, sub)
}

func (s *Service) Lookup(ctx context.Context) (*subscriptiondomain.Subscription, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUserID(ctx, s.db, userID)
}

func (s *Service) GetForTenant(ctx context.Context, id string) (subscriptiondomain.Subscription, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	subID, err := subscriptiondomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	sub, err := s.repo.FindByIDForUser(ctx, s.db, userID, subID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *sub, nil
}

// InitiateUpgrade parks the subscription in pending on the selected plan
// until a payment confirmation arrives.
func (s *Service) InitiateUpgrade(ctx context.Context, req subscriptiondomain.InitiateUpgradeRequest) (subscriptiondomain.CurrentSubscription, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}

	plan, err := s.plans.GetByName(ctx, req.PlanName)
	if err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}
	if !plan.IsPaid() {
		return subscriptiondomain.CurrentSubscription{}, subscriptiondomain.ErrPlanNotPurchasable
	}

	interval := plan.Interval
	if strings.TrimSpace(req.Interval) != "" {
		parsed, err := plandomain.ParseInterval(req.Interval)
		if err != nil {
			return subscriptiondomain.CurrentSubscription{}, err
		}
		if parsed != plan.Interval {
			return subscriptiondomain.CurrentSubscription{}, plandomain.ErrInvalidInterval
		}
	}

	if _, err := s.EnsureDefault(ctx); err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}

	now := s.clock.Now().UTC()
	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		rows, err := s.repo.MarkPending(ctx, tx, userID, plan.ID, interval, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		return nil
	})
	if err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}

	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}
	if sub == nil {
		return subscriptiondomain.CurrentSubscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}

	s.log.Info("subscription upgrade initiated",
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.ID.String()),
		zap.String("plan", plan.Name),
	)
	return subscriptiondomain.CurrentSubscription{Subscription: *sub, Plan: plan}, nil
}

// ConfirmPayment is the single transition shared by the webhook and the
// verification flow. The ledger row keyed by the gateway reference is the
// idempotency guard; the subscription update is conditional and never moves
// current_period_end backwards.
func (s *Service) ConfirmPayment(ctx context.Context, conf subscriptiondomain.Confirmation) (subscriptiondomain.ConfirmResult, error) {
	conf.Reference = strings.TrimSpace(conf.Reference)
	if conf.Reference == "" {
		return subscriptiondomain.ConfirmResult{}, subscriptiondomain.ErrInvalidReference
	}
	if conf.SubscriptionID == 0 {
		return subscriptiondomain.ConfirmResult{}, subscriptiondomain.ErrInvalidSubscription
	}
	if conf.PaidAt.IsZero() {
		conf.PaidAt = s.clock.Now()
	}

	sub, err := s.repo.FindByID(ctx, s.db, conf.SubscriptionID)
	if err != nil {
		return subscriptiondomain.ConfirmResult{}, err
	}
	if sub == nil {
		return subscriptiondomain.ConfirmResult{}, subscriptiondomain.ErrSubscriptionNotFound
	}

	log := s.log.With(
		zap.String("subscription_id", sub.ID.String()),
		zap.String("reference", conf.Reference),
		zap.String("source", conf.Source),
	)

	// A replayed reference is answered from the ledger before the charge is
	// matched against the plan the subscription is on now.
	seen, err := s.repo.CountInvoicesByReference(ctx, s.db, conf.Reference)
	if err != nil {
		log.Warn("ledger lookup failed", zap.Error(err))
	}
	if seen > 0 {
		log.Info("payment already applied")
		s.metrics.RecordPaymentConfirmation(ctx, conf.Source, false)
		return subscriptiondomain.ConfirmResult{Applied: false, Subscription: *sub}, nil
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return subscriptiondomain.ConfirmResult{}, err
	}
	if err := matchCharge(plan, *sub, conf); err != nil {
		log.Warn("charge does not pay for the subscription plan",
			zap.String("plan", plan.Name),
			zap.Int64("amount_minor", conf.AmountMinor),
			zap.Int64("price_minor", plan.PriceMinor),
			zap.String("currency", conf.Currency),
			zap.String("metadata_plan", conf.PlanName),
			zap.String("metadata_interval", conf.Interval),
			zap.Error(err),
		)
		return subscriptiondomain.ConfirmResult{}, err
	}

	periodStart := conf.PaidAt.UTC().Truncate(time.Second)
	periodEnd := sub.Interval.AddTo(periodStart)
	now := s.clock.Now().UTC()

	currency := strings.ToUpper(strings.TrimSpace(conf.Currency))
	if currency == "" {
		currency = plan.Currency
	}

	entry := subscriptiondomain.SubscriptionInvoice{
		ID:             s.genID.Generate(),
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Reference:      conf.Reference,
		Amount:         subscriptiondomain.MinorToMajor(conf.AmountMinor),
		Currency:       currency,
		Status:         subscriptiondomain.InvoiceStatusPaid,
		Source:         conf.Source,
		PaidAt:         periodStart,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		Metadata:       encodeMetadata(conf.Metadata),
		CreatedAt:      now,
	}
	update := subscriptiondomain.ActivationUpdate{
		SubscriptionID:    sub.ID,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		AuthorizationCode: strings.TrimSpace(conf.AuthorizationCode),
		CustomerCode:      strings.TrimSpace(conf.CustomerCode),
		UpdatedAt:         now,
	}

	var (
		duplicate bool
		ledgerErr error
		updated   int64
	)
	err = rls.Transaction(s.db.WithContext(ctx), sub.UserID, func(tx *gorm.DB) error {
		inserted, err := s.repo.InsertInvoice(ctx, tx, &entry)
		if err != nil {
			ledgerErr = err
			return err
		}
		if !inserted {
			duplicate = true
			return nil
		}

		updated, err = s.repo.Activate(ctx, tx, update)
		return err
	})

	switch {
	case ledgerErr != nil && db.IsDuplicateKeyErr(ledgerErr):
		duplicate = true
	case ledgerErr != nil:
		// The subscription row is authoritative for access; record the
		// activation even though the ledger write failed.
		log.Error("subscription invoice insert failed, applying activation alone", zap.Error(ledgerErr))
		updated, err = s.repo.Activate(ctx, s.db, update)
		if err != nil {
			return subscriptiondomain.ConfirmResult{}, err
		}
	case err != nil:
		return subscriptiondomain.ConfirmResult{}, err
	}

	if duplicate {
		log.Info("payment already applied")
		s.metrics.RecordPaymentConfirmation(ctx, conf.Source, false)
	} else {
		if ledgerErr == nil {
			s.metrics.RecordLedgerEntry(ctx, conf.Source)
		}
		s.metrics.RecordPaymentConfirmation(ctx, conf.Source, true)
		log.Info("payment confirmed",
			zap.Int64("rows_updated", updated),
			zap.Time("period_end", periodEnd),
		)
	}

	current, err := s.repo.FindByID(ctx, s.db, sub.ID)
	if err != nil {
		return subscriptiondomain.ConfirmResult{}, err
	}
	if current == nil {
		return subscriptiondomain.ConfirmResult{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return subscriptiondomain.ConfirmResult{Applied: !duplicate, Subscription: *current}, nil
}

// Cancel sets cancel_at_period_end; the status stays active.
func (s *Service) Cancel(ctx context.Context) (subscriptiondomain.Subscription, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	now := s.clock.Now().UTC()
	err = rls.Transaction(s.db.WithContext(ctx), userID, func(tx *gorm.DB) error {
		rows, err := s.repo.MarkCancelAtPeriodEnd(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return subscriptiondomain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	sub, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if sub == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	s.log.Info("subscription set to cancel at period end",
		zap.String("user_id", userID),
		zap.String("subscription_id", sub.ID.String()),
	)
	return *sub, nil
}

func (s *Service) ListInvoices(ctx context.Context) ([]subscriptiondomain.SubscriptionInvoice, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, s.db, userID)
}

func (s *Service) GetInvoice(ctx context.Context, id string) (subscriptiondomain.SubscriptionInvoice, error) {
	userID, err := s.tenant(ctx)
	if err != nil {
		return subscriptiondomain.SubscriptionInvoice{}, err
	}
	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return subscriptiondomain.SubscriptionInvoice{}, subscriptiondomain.ErrInvoiceNotFound
	}

	item, err := s.repo.FindInvoice(ctx, s.db, userID, invoiceID)
	if err != nil {
		return subscriptiondomain.SubscriptionInvoice{}, err
	}
	if item == nil {
		return subscriptiondomain.SubscriptionInvoice{}, subscriptiondomain.ErrInvoiceNotFound
	}
	return *item, nil
}

func (s *Service) withPlan(ctx context.Context, sub subscriptiondomain.Subscription) (subscriptiondomain.CurrentSubscription, error) {
	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return subscriptiondomain.CurrentSubscription{}, err
	}
	return subscriptiondomain.CurrentSubscription{Subscription: sub, Plan: plan}, nil
}

func encodeMetadata(metadata map[string]any) datatypes.JSON {
	if len(metadata) == 0 {
		return nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// matchCharge rejects a charge that does not cover the plan the subscription
// is pending on. Metadata fields are only compared when the gateway sent them.
func matchCharge(plan plandomain.Plan, sub subscriptiondomain.Subscription, conf subscriptiondomain.Confirmation) error {
	if conf.AmountMinor < plan.PriceMinor {
		return subscriptiondomain.ErrAmountMismatch
	}
	if currency := strings.TrimSpace(conf.Currency); currency != "" && !strings.EqualFold(currency, plan.Currency) {
		return subscriptiondomain.ErrAmountMismatch
	}
	if name := strings.TrimSpace(conf.PlanName); name != "" && !strings.EqualFold(name, plan.Name) {
		return subscriptiondomain.ErrPlanMismatch
	}
	if raw := strings.TrimSpace(conf.Interval); raw != "" {
		interval, err := plandomain.ParseInterval(raw)
		if err != nil || interval != sub.Interval {
			return subscriptiondomain.ErrPlanMismatch
		}
	}
	return nil
}
