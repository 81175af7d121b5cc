// Package checkout starts a paid upgrade and returns the hosted payment link.
package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	billingdomain "github.com/smallbiznis/invoicely/internal/billing/domain"
	"github.com/smallbiznis/invoicely/internal/config"
	"github.com/smallbiznis/invoicely/internal/gateway"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const referencePrefix = "sub_"

type Request struct {
	PlanName string `json:"plan"`
	Interval string `json:"interval"`
}

type Response struct {
	AuthorizationURL string       `json:"authorization_url"`
	Reference        string       `json:"reference"`
	SubscriptionID   snowflake.ID `json:"subscription_id"`
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Config        config.Config
	Gateway       gateway.Gateway
	Subscriptions subscriptiondomain.Service
}

type Service struct {
	log         *zap.Logger
	gateway     gateway.Gateway
	subs        subscriptiondomain.Service
	callbackURL string
}

func NewService(p Params) *Service {
	return &Service{
		log:         p.Log.Named("billing.checkout"),
		gateway:     p.Gateway,
		subs:        p.Subscriptions,
		callbackURL: p.Config.Billing.CallbackURL,
	}
}

func (s *Service) Checkout(ctx context.Context, req Request) (Response, error) {
	email := strings.TrimSpace(tenantctx.Email(ctx))
	if email == "" {
		return Response{}, billingdomain.ErrEmailRequired
	}

	current, err := s.subs.InitiateUpgrade(ctx, subscriptiondomain.InitiateUpgradeRequest{
		PlanName: req.PlanName,
		Interval: req.Interval,
	})
	if err != nil {
		return Response{}, err
	}

	reference := referencePrefix + strings.ToLower(ulid.Make().String())
	resp, err := s.gateway.InitializeTransaction(ctx, gateway.InitializeRequest{
		Email:       email,
		AmountMinor: current.Plan.PriceMinor,
		Currency:    current.Plan.Currency,
		Reference:   reference,
		CallbackURL: s.callbackURL,
		Metadata: gateway.Metadata{
			SubscriptionID: current.ID.String(),
			Plan:           current.Plan.Name,
			Interval:       string(current.Interval),
		},
	})
	if err != nil {
		s.log.Warn("initialize transaction failed",
			zap.String("subscription_id", current.ID.String()),
			zap.Error(err),
		)
		if errors.Is(err, gateway.ErrNotConfigured) {
			return Response{}, billingdomain.ErrGatewayNotEnabled
		}
		return Response{}, billingdomain.ErrCheckoutFailed
	}

	s.log.Info("checkout started",
		zap.String("subscription_id", current.ID.String()),
		zap.String("plan", current.Plan.Name),
		zap.String("reference", resp.Reference),
	)
	return Response{
		AuthorizationURL: resp.AuthorizationURL,
		Reference:        resp.Reference,
		SubscriptionID:   current.ID,
	}, nil
}
