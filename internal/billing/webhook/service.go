// Package webhook applies gateway payment notifications to subscriptions.
package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/invoicely/internal/billing/domain"
	"github.com/smallbiznis/invoicely/internal/clock"
	"github.com/smallbiznis/invoicely/internal/gateway"
	obsmetrics "github.com/smallbiznis/invoicely/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	outcomeRejected  = "rejected"
	outcomeMalformed = "malformed"
	outcomeIgnored   = "ignored"
	outcomeDuplicate = "duplicate"
	outcomeApplied   = "applied"
	outcomeFailed    = "failed"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Gateway       gateway.Gateway
	Repo          billingdomain.Repository
	Subscriptions subscriptiondomain.Service
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	gateway gateway.Gateway
	repo    billingdomain.Repository
	subs    subscriptiondomain.Service
	metrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("billing.webhook"),
		genID:   p.GenID,
		clock:   p.Clock,
		gateway: p.Gateway,
		repo:    p.Repo,
		subs:    p.Subscriptions,
		metrics: p.Metrics,
	}
}

// Process authenticates and applies one webhook delivery. It returns nil for
// deliveries that were applied, already applied, or deliberately ignored, so
// the gateway stops retrying them.
func (s *Service) Process(ctx context.Context, raw []byte, signature string) error {
	provider := s.gateway.Name()

	if err := s.gateway.VerifySignature(raw, signature); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider), zap.Int("body_bytes", len(raw)))
		s.metrics.RecordWebhookEvent(ctx, provider, "unknown", outcomeRejected)
		return billingdomain.ErrInvalidSignature
	}

	event, err := s.gateway.ParseEvent(raw)
	if err != nil {
		s.log.Warn("webhook payload rejected", zap.String("provider", provider), zap.Error(err))
		s.metrics.RecordWebhookEvent(ctx, provider, "unknown", outcomeMalformed)
		return billingdomain.ErrInvalidPayload
	}

	log := s.log.With(zap.String("provider", provider), zap.String("event_type", event.Type))

	if event.Type != gateway.EventChargeSuccess || event.Charge == nil {
		log.Info("webhook event ignored")
		s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcomeIgnored)
		return nil
	}

	charge := *event.Charge
	if charge.Reference == "" {
		log.Warn("charge event without reference")
		s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcomeMalformed)
		return billingdomain.ErrInvalidPayload
	}
	log = log.With(zap.String("reference", charge.Reference))

	record := s.recordEvent(ctx, log, provider, event.Type, charge.Reference, raw)
	if record != nil && record.ProcessedAt != nil {
		log.Info("webhook delivery already processed")
		s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcomeDuplicate)
		return nil
	}

	outcome, err := s.apply(ctx, log, charge)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcomeFailed)
		return fmt.Errorf("%w: %v", billingdomain.ErrProcessingFailed, err)
	}

	if record != nil {
		if err := s.repo.MarkProcessed(ctx, s.db, record.ID, s.clock.Now().UTC()); err != nil {
			log.Warn("mark webhook processed failed", zap.Error(err))
		}
	}
	s.metrics.RecordWebhookEvent(ctx, provider, event.Type, outcome)
	return nil
}

func (s *Service) apply(ctx context.Context, log *zap.Logger, charge gateway.Transaction) (string, error) {
	if !charge.Successful() && charge.Status != "" {
		log.Info("charge not successful, ignored", zap.String("status", charge.Status))
		return outcomeIgnored, nil
	}
	if charge.Metadata.SubscriptionID == "" {
		log.Info("charge has no subscription metadata, ignored")
		return outcomeIgnored, nil
	}
	subscriptionID, err := subscriptiondomain.ParseID(charge.Metadata.SubscriptionID)
	if err != nil {
		log.Warn("charge has invalid subscription metadata, ignored",
			zap.String("subscription_id", charge.Metadata.SubscriptionID),
		)
		return outcomeIgnored, nil
	}

	result, err := s.subs.ConfirmPayment(ctx, subscriptiondomain.Confirmation{
		SubscriptionID:    subscriptionID,
		Reference:         charge.Reference,
		AmountMinor:       charge.AmountMinor,
		Currency:          charge.Currency,
		PaidAt:            charge.PaidAt,
		AuthorizationCode: charge.AuthorizationCode,
		CustomerCode:      charge.CustomerCode,
		Source:            subscriptiondomain.SourceWebhook,
		PlanName:          charge.Metadata.Plan,
		Interval:          charge.Metadata.Interval,
		Metadata: map[string]any{
			"plan":     charge.Metadata.Plan,
			"interval": charge.Metadata.Interval,
		},
	})
	switch {
	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound):
		log.Warn("charge references unknown subscription, ignored",
			zap.String("subscription_id", subscriptionID.String()),
		)
		return outcomeIgnored, nil
	case errors.Is(err, subscriptiondomain.ErrAmountMismatch), errors.Is(err, subscriptiondomain.ErrPlanMismatch):
		log.Warn("charge does not match the subscription plan, ignored", zap.Error(err))
		return outcomeIgnored, nil
	case err != nil:
		log.Error("apply payment confirmation failed", zap.Error(err))
		return "", err
	}

	if !result.Applied {
		return outcomeDuplicate, nil
	}
	return outcomeApplied, nil
}

// recordEvent stores the raw delivery, or loads the earlier copy. The audit
// trail never blocks processing.
func (s *Service) recordEvent(ctx context.Context, log *zap.Logger, provider, eventType, reference string, raw []byte) *billingdomain.EventRecord {
	record := &billingdomain.EventRecord{
		ID:         s.genID.Generate(),
		Provider:   provider,
		Reference:  reference,
		EventType:  eventType,
		Payload:    datatypes.JSON(raw),
		ReceivedAt: s.clock.Now().UTC(),
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, record)
	if err != nil {
		log.Warn("store webhook event failed", zap.Error(err))
		return nil
	}
	if inserted {
		return record
	}

	existing, err := s.repo.FindEvent(ctx, s.db, provider, reference, eventType)
	if err != nil {
		log.Warn("load webhook event failed", zap.Error(err))
		return nil
	}
	return existing
}
