// Package verification re-checks a payment with the gateway when the user
// returns from hosted checkout.
package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/invoicely/internal/config"
	"github.com/smallbiznis/invoicely/internal/gateway"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	msgMissingReference = "Missing payment reference."
	msgMissingID        = "Missing subscription id."
	msgNotFound         = "Subscription not found."
	msgNotSuccessful    = "Payment was not successful. Please try again."
	msgMismatch         = "This payment does not belong to the selected subscription."
	msgWrongCharge      = "This payment does not cover the selected plan."
	msgVerified         = "Payment verified. Your subscription is now active."
)

// Result is always returned; failures are described in Message.
type Result struct {
	Success      bool                             `json:"success"`
	Message      string                           `json:"message"`
	Subscription *subscriptiondomain.Subscription `json:"subscription,omitempty"`
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Gateway       gateway.Gateway
	Subscriptions subscriptiondomain.Service
}

type Service struct {
	log          *zap.Logger
	gateway      gateway.Gateway
	subs         subscriptiondomain.Service
	supportEmail string
}

func NewService(p Params) *Service {
	return &Service{
		log:          p.Log.Named("billing.verification"),
		gateway:      p.Gateway,
		subs:         p.Subscriptions,
		supportEmail: p.Config.Billing.SupportEmail,
	}
}

// VerifyAndApply confirms reference with the gateway and applies it to the
// caller's subscription. The webhook may have applied it already; the
// confirmation is idempotent per reference.
func (s *Service) VerifyAndApply(ctx context.Context, reference, subscriptionID string) Result {
	reference = strings.TrimSpace(reference)
	subscriptionID = strings.TrimSpace(subscriptionID)
	if reference == "" {
		return failure(msgMissingReference)
	}
	if subscriptionID == "" {
		return failure(msgMissingID)
	}

	log := s.log.With(zap.String("reference", reference), zap.String("subscription_id", subscriptionID))

	sub, err := s.subs.GetForTenant(ctx, subscriptionID)
	if err != nil {
		if !errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound) &&
			!errors.Is(err, subscriptiondomain.ErrInvalidSubscription) &&
			!errors.Is(err, subscriptiondomain.ErrInvalidTenant) {
			log.Error("load subscription failed", zap.Error(err))
			return failure(s.genericMessage())
		}
		log.Warn("verification for subscription outside tenant", zap.Error(err))
		return failure(msgNotFound)
	}

	tx, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		log.Warn("gateway verification failed", zap.Error(err))
		return failure(s.genericMessage())
	}
	if !tx.Successful() {
		log.Info("transaction not successful", zap.String("status", tx.Status))
		return failure(msgNotSuccessful)
	}
	if tx.Reference != "" && tx.Reference != reference {
		log.Warn("gateway returned a different reference", zap.String("gateway_reference", tx.Reference))
		return failure(msgMismatch)
	}
	if tx.Metadata.SubscriptionID != sub.ID.String() {
		log.Warn("transaction metadata does not match subscription",
			zap.String("metadata_subscription_id", tx.Metadata.SubscriptionID),
		)
		return failure(msgMismatch)
	}

	result, err := s.subs.ConfirmPayment(ctx, subscriptiondomain.Confirmation{
		SubscriptionID:    sub.ID,
		Reference:         reference,
		AmountMinor:       tx.AmountMinor,
		Currency:          tx.Currency,
		PaidAt:            tx.PaidAt,
		AuthorizationCode: tx.AuthorizationCode,
		CustomerCode:      tx.CustomerCode,
		Source:            subscriptiondomain.SourceVerification,
		PlanName:          tx.Metadata.Plan,
		Interval:          tx.Metadata.Interval,
		Metadata: map[string]any{
			"plan":     tx.Metadata.Plan,
			"interval": tx.Metadata.Interval,
		},
	})
	if errors.Is(err, subscriptiondomain.ErrAmountMismatch) || errors.Is(err, subscriptiondomain.ErrPlanMismatch) {
		log.Warn("charge does not match the pending plan", zap.Error(err))
		return failure(msgWrongCharge)
	}
	if err != nil {
		log.Error("apply payment confirmation failed", zap.Error(err))
		return failure(s.genericMessage())
	}

	log.Info("payment verified", zap.Bool("applied", result.Applied))
	return Result{Success: true, Message: msgVerified, Subscription: &result.Subscription}
}

func (s *Service) genericMessage() string {
	if s.supportEmail == "" {
		return "We could not verify your payment right now. Please try again later."
	}
	return fmt.Sprintf("We could not verify your payment right now. Please try again or contact %s.", s.supportEmail)
}

func failure(message string) Result {
	return Result{Success: false, Message: message}
}
