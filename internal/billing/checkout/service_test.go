package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/smallbiznis/invoicely/internal/billing/billingtest"
	billingdomain "github.com/smallbiznis/invoicely/internal/billing/domain"
	"github.com/smallbiznis/invoicely/internal/config"
	"github.com/smallbiznis/invoicely/internal/gateway"
	"github.com/smallbiznis/invoicely/internal/gateway/gatewaytest"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(f billingtest.Fixture, gw gateway.Gateway) *Service {
	return NewService(Params{
		Log:           zap.NewNop(),
		Config:        config.Config{Billing: config.BillingConfig{CallbackURL: "https://app.example.com/billing/verify"}},
		Gateway:       gw,
		Subscriptions: f.Subscriptions,
	})
}

func TestCheckoutInitializesPayment(t *testing.T) {
	f := billingtest.New(t)
	gw := &gatewaytest.MockGateway{}

	var sent gateway.InitializeRequest
	gw.On("InitializeTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(gateway.InitializeRequest) }).
		Return(gateway.InitializeResponse{AuthorizationURL: "https://checkout.paystack.com/xyz", Reference: "sub_x"}, nil)

	resp, err := newService(f, gw).Checkout(billingtest.Tenant("user-1"), Request{PlanName: "pro"})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/xyz", resp.AuthorizationURL)
	assert.Equal(t, "sub_x", resp.Reference)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPending, f.Reload(t, resp.SubscriptionID).Status)

	assert.Equal(t, "user-1@example.com", sent.Email)
	assert.Equal(t, f.Plans["Pro"].PriceMinor, sent.AmountMinor)
	assert.Equal(t, "NGN", sent.Currency)
	assert.True(t, strings.HasPrefix(sent.Reference, referencePrefix))
	assert.Equal(t, "https://app.example.com/billing/verify", sent.CallbackURL)
	assert.Equal(t, resp.SubscriptionID.String(), sent.Metadata.SubscriptionID)
	assert.Equal(t, "Pro", sent.Metadata.Plan)
	assert.Equal(t, "monthly", sent.Metadata.Interval)
}

func TestCheckoutUsesFreshReferences(t *testing.T) {
	f := billingtest.New(t)
	gw := &gatewaytest.MockGateway{}

	var refs []string
	gw.On("InitializeTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { refs = append(refs, args.Get(1).(gateway.InitializeRequest).Reference) }).
		Return(gateway.InitializeResponse{AuthorizationURL: "https://checkout.paystack.com/xyz"}, nil)

	svc := newService(f, gw)
	for i := 0; i < 2; i++ {
		_, err := svc.Checkout(billingtest.Tenant("user-1"), Request{PlanName: "Pro"})
		require.NoError(t, err)
	}
	require.Len(t, refs, 2)
	assert.NotEqual(t, refs[0], refs[1])
}

func TestCheckoutErrors(t *testing.T) {
	f := billingtest.New(t)

	down := &gatewaytest.MockGateway{}
	down.On("InitializeTransaction", mock.Anything, mock.Anything).Return(gateway.InitializeResponse{}, gateway.ErrGatewayUnavailable)
	unconfigured := &gatewaytest.MockGateway{}
	unconfigured.On("InitializeTransaction", mock.Anything, mock.Anything).Return(gateway.InitializeResponse{}, gateway.ErrNotConfigured)
	unused := &gatewaytest.MockGateway{}

	tests := []struct {
		name string
		ctx  context.Context
		gw   gateway.Gateway
		req  Request
		want error
	}{
		{name: "no email", ctx: tenantctx.WithTenant(context.Background(), "user-1"), gw: unused, req: Request{PlanName: "Pro"}, want: billingdomain.ErrEmailRequired},
		{name: "free plan", ctx: billingtest.Tenant("user-1"), gw: unused, req: Request{PlanName: "Free"}, want: subscriptiondomain.ErrPlanNotPurchasable},
		{name: "unknown plan", ctx: billingtest.Tenant("user-1"), gw: unused, req: Request{PlanName: "Gold"}, want: plandomain.ErrNotFound},
		{name: "interval mismatch", ctx: billingtest.Tenant("user-1"), gw: unused, req: Request{PlanName: "Pro", Interval: "yearly"}, want: plandomain.ErrInvalidInterval},
		{name: "gateway down", ctx: billingtest.Tenant("user-1"), gw: down, req: Request{PlanName: "Pro"}, want: billingdomain.ErrCheckoutFailed},
		{name: "gateway not configured", ctx: billingtest.Tenant("user-1"), gw: unconfigured, req: Request{PlanName: "Pro"}, want: billingdomain.ErrGatewayNotEnabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newService(f, tt.gw).Checkout(tt.ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	unused.AssertNotCalled(t, "InitializeTransaction", mock.Anything, mock.Anything)
}
