package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/invoicely/internal/auth"
	"github.com/smallbiznis/invoicely/internal/billing/checkout"
	billingdomain "github.com/smallbiznis/invoicely/internal/billing/domain"
	billingrepo "github.com/smallbiznis/invoicely/internal/billing/repository"
	"github.com/smallbiznis/invoicely/internal/billing/verification"
	"github.com/smallbiznis/invoicely/internal/billing/webhook"
	businessdomain "github.com/smallbiznis/invoicely/internal/business/domain"
	businessservice "github.com/smallbiznis/invoicely/internal/business/service"
	clientdomain "github.com/smallbiznis/invoicely/internal/client/domain"
	clientservice "github.com/smallbiznis/invoicely/internal/client/service"
	"github.com/smallbiznis/invoicely/internal/config"
	expensedomain "github.com/smallbiznis/invoicely/internal/expense/domain"
	expenseservice "github.com/smallbiznis/invoicely/internal/expense/service"
	"github.com/smallbiznis/invoicely/internal/gateway/paystack"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	invoicerepo "github.com/smallbiznis/invoicely/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/invoicely/internal/invoice/service"
	"github.com/smallbiznis/invoicely/internal/limits/limitstest"
	"github.com/smallbiznis/invoicely/internal/observability"
	planrepo "github.com/smallbiznis/invoicely/internal/plan/repository"
	planservice "github.com/smallbiznis/invoicely/internal/plan/service"
	"github.com/smallbiznis/invoicely/internal/providers/pdf"
	"github.com/smallbiznis/invoicely/internal/ratelimit"
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
	receiptservice "github.com/smallbiznis/invoicely/internal/receipt/service"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"github.com/smallbiznis/invoicely/internal/testutil"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	jwtSecret      = "jwt-test-secret"
	paystackSecret = "sk_test_server"
)

// fakePaystack echoes initialized transactions back as successful on verify.
type fakePaystack struct {
	mu           sync.Mutex
	subscription map[string]string
}

func (f *fakePaystack) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/transaction/initialize":
			var body struct {
				Reference string         `json:"reference"`
				Metadata  map[string]any `json:"metadata"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.mu.Lock()
			f.subscription[body.Reference] = fmt.Sprint(body.Metadata["subscription_id"])
			f.mu.Unlock()
			_, _ = fmt.Fprintf(w, `{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/%s","reference":%q}}`, body.Reference, body.Reference)
		case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
			f.mu.Lock()
			subID, ok := f.subscription[reference]
			f.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
				return
			}
			_, _ = fmt.Fprintf(w, `{"status":true,"message":"ok","data":{
				"reference":%q,"status":"success","amount":500000,"currency":"NGN",
				"paid_at":"2026-03-01T10:00:00Z",
				"authorization":{"authorization_code":"AUTH_srv"},
				"customer":{"customer_code":"CUS_srv"},
				"metadata":{"subscription_id":%q,"plan":"Pro","interval":"monthly"}}}`, reference, subID)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

type harness struct {
	engine *gin.Engine
	db     *gorm.DB
	stack  limitstest.Stack
}

func newHarness(t *testing.T) harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t, limitstest.Models(
		&billingdomain.EventRecord{},
		&businessdomain.Business{},
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&receiptdomain.Receipt{},
		&expensedomain.Expense{},
	)...)
	stack := limitstest.New(t, db)
	log := zap.NewNop()

	gatewaySrv := httptest.NewServer((&fakePaystack{subscription: map[string]string{}}).handler(t))
	t.Cleanup(gatewaySrv.Close)

	cfg := config.Config{
		AuthJWTSecret:  jwtSecret,
		AuthCookieName: "sb-access-token",
		Billing: config.BillingConfig{
			CallbackURL:     "https://app.example.com/billing/verify",
			DefaultCurrency: "NGN",
			SupportEmail:    "support@example.com",
		},
	}
	gw := paystack.NewAdapter(config.PaystackConfig{SecretKey: paystackSecret, BaseURL: gatewaySrv.URL}, gatewaySrv.Client(), log)

	planSvc := planservice.NewService(planservice.ServiceParam{DB: db, Log: log, Repo: planrepo.Provide()})
	invoices := invoicerepo.Provide()
	engine := NewEngine(observability.Config{}, nil)

	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		DB:              db,
		Log:             log,
		Verifier:        auth.NewStaticVerifier(jwtSecret, cfg.AuthCookieName),
		PlanSvc:         planSvc,
		SubscriptionSvc: stack.Subscriptions,
		Evaluator:       stack.Evaluator,
		CheckoutSvc: checkout.NewService(checkout.Params{
			Log: log, Config: cfg, Gateway: gw, Subscriptions: stack.Subscriptions,
		}),
		VerificationSvc: verification.NewService(verification.Params{
			Log: log, Config: cfg, Gateway: gw, Subscriptions: stack.Subscriptions,
		}),
		WebhookSvc: webhook.NewService(webhook.Params{
			DB: db, Log: log, GenID: stack.Node, Clock: stack.Clock, Gateway: gw,
			Repo: billingrepo.Provide(), Subscriptions: stack.Subscriptions,
		}),
		BusinessSvc: businessservice.NewService(businessservice.ServiceParam{
			DB: db, Log: log, GenID: stack.Node, Clock: stack.Clock, Config: cfg, Limits: stack.Evaluator,
		}),
		ClientSvc: clientservice.NewService(clientservice.ServiceParam{
			DB: db, Log: log, GenID: stack.Node, Clock: stack.Clock, Limits: stack.Evaluator,
		}),
		InvoiceSvc: invoiceservice.NewService(invoiceservice.ServiceParam{
			DB: db, Log: log, GenID: stack.Node, Clock: stack.Clock, Limits: stack.Evaluator, Repo: invoices,
		}),
		ReceiptSvc: receiptservice.NewService(receiptservice.ServiceParam{
			DB: db, Log: log, GenID: stack.Node, Clock: stack.Clock, Limits: stack.Evaluator, Invoices: invoices,
		}),
		ExpenseSvc: expenseservice.NewService(expenseservice.ServiceParam{
			DB: db, Log: log, GenID: stack.Node, Clock: stack.Clock, Limits: stack.Evaluator,
		}),
		Renderer:      pdf.NewWithIssuer(pdf.Issuer{Name: "Invoicely", Email: "billing@example.com"}),
		VerifyLimiter: &ratelimit.VerifyLimiter{Limiter: ratelimit.NewLocalBuckets(0.01, 3)},
	})

	return harness{engine: engine, db: db, stack: stack}
}

type request struct {
	method   string
	path     string
	body     any
	user     string
	business string
	headers  map[string]string
}

func (h harness) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	switch body := r.body.(type) {
	case nil:
	case []byte:
		payload = body
	default:
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(r.method, r.path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if r.user != "" {
		token, err := auth.Issue(jwtSecret, r.user, r.user+"@example.com", time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if r.business != "" {
		req.Header.Set(HeaderBusiness, r.business)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out.Error
}

type idOnly struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h harness) createBusiness(t *testing.T, user string) string {
	t.Helper()
	rec := h.do(t, request{method: http.MethodPost, path: "/api/businesses", user: user, body: gin.H{"name": "Acme " + user}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[idOnly](t, rec).ID
}

func (h harness) createClient(t *testing.T, user, business string) string {
	t.Helper()
	rec := h.do(t, request{method: http.MethodPost, path: "/api/clients", user: user, business: business, body: gin.H{"name": "Globex"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[idOnly](t, rec).ID
}

func (h harness) subscriptionStatus(t *testing.T, user string) subscriptiondomain.SubscriptionStatus {
	t.Helper()
	var sub subscriptiondomain.Subscription
	require.NoError(t, h.db.First(&sub, "user_id = ?", user).Error)
	return sub.Status
}

func sign(payload []byte) string {
	mac := hmac.New(sha512.New, []byte(paystackSecret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, request{method: http.MethodGet, path: "/api/billing/subscription"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	expired, err := auth.Issue(jwtSecret, "user-1", "", -time.Hour)
	require.NoError(t, err)
	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/subscription", headers: map[string]string{"Authorization": "Bearer " + expired}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCookieSession(t *testing.T) {
	h := newHarness(t)
	token, err := auth.Issue(jwtSecret, "user-1", "user-1@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/billing/subscription", nil)
	req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSubscriptionCreatesFreeDefault(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, request{method: http.MethodGet, path: "/api/billing/subscription", user: "user-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[struct {
		Status string `json:"status"`
		Plan   struct {
			Name string `json:"name"`
		} `json:"plan"`
	}](t, rec)
	assert.Equal(t, "active", body.Status)
	assert.Equal(t, config.FreePlanName, body.Plan.Name)
}

func TestFirstProtectedRequestBootstrapsFreeSubscription(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/businesses", user: "user-9", body: gin.H{"name": "Acme"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = h.do(t, request{method: http.MethodGet, path: "/api/businesses", user: "user-9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, int64(1), testutil.Count(t, h.db, "subscriptions", "user_id = ?", "user-9"))
	var sub subscriptiondomain.Subscription
	require.NoError(t, h.db.First(&sub, "user_id = ?", "user-9").Error)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, h.stack.Plans[config.FreePlanName].ID, sub.PlanID)
}

func TestUnauthenticatedRequestCreatesNoSubscription(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/businesses", body: gin.H{"name": "Acme"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), testutil.Count(t, h.db, "subscriptions", ""))
}

func TestWebhookRejectsBadSignatureWithoutSideEffects(t *testing.T) {
	h := newHarness(t)
	ctx := tenantctx.WithTenant(context.Background(), "user-1")
	current, err := h.stack.Subscriptions.InitiateUpgrade(ctx, subscriptiondomain.InitiateUpgradeRequest{PlanName: "Pro"})
	require.NoError(t, err)

	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"reference":"sub_wh_1","status":"success","amount":500000,"currency":"NGN","paid_at":"2026-03-01T10:00:00Z","metadata":{"subscription_id":%q}}}`, current.ID.String()))

	rec := h.do(t, request{method: http.MethodPost, path: "/api/webhooks/paystack", body: payload, headers: map[string]string{HeaderPaystackSig: "deadbeef"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPending, h.subscriptionStatus(t, "user-1"))
	assert.Zero(t, testutil.Count(t, h.db, "subscription_invoices", "user_id = ?", "user-1"))

	rec = h.do(t, request{method: http.MethodPost, path: "/api/webhooks/paystack", body: payload})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(t, request{method: http.MethodPost, path: "/api/webhooks/paystack", body: payload, headers: map[string]string{HeaderPaystackSig: sign(payload)}})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, h.subscriptionStatus(t, "user-1"))

	// redelivery
	rec = h.do(t, request{method: http.MethodPost, path: "/api/webhooks/paystack", body: payload, headers: map[string]string{HeaderPaystackSig: sign(payload)}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, testutil.Count(t, h.db, "subscription_invoices", "user_id = ?", "user-1"))
}

func TestWebhookMalformedPayload(t *testing.T) {
	h := newHarness(t)
	payload := []byte(`{not json`)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/webhooks/paystack", body: payload, headers: map[string]string{HeaderPaystackSig: sign(payload)}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutThenVerify(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/billing/checkout", user: "user-1", body: gin.H{"plan": "Pro"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	started := decode[struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
		SubscriptionID   string `json:"subscription_id"`
	}](t, rec)
	assert.True(t, strings.HasPrefix(started.AuthorizationURL, "https://checkout.paystack.com/"))
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPending, h.subscriptionStatus(t, "user-1"))

	// another tenant cannot apply the payment
	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/verify?reference=" + started.Reference + "&subscription_id=" + started.SubscriptionID, user: "user-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[verification.Result](t, rec).Success)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusPending, h.subscriptionStatus(t, "user-1"))

	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/verify?trxref=" + started.Reference + "&subscription_id=" + started.SubscriptionID, user: "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[verification.Result](t, rec)
	assert.True(t, result.Success, result.Message)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, h.subscriptionStatus(t, "user-1"))

	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/invoices", user: "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]idOnly](t, rec)
	require.Len(t, entries, 1)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/invoices/" + entries[0].ID + "/pdf", user: "user-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/invoices/" + entries[0].ID + "/pdf", user: "user-2"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutRejectsFreePlan(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/billing/checkout", user: "user-1", body: gin.H{"plan": "Free"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = h.do(t, request{method: http.MethodPost, path: "/api/billing/checkout", user: "user-1", body: gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyIsRateLimited(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		rec := h.do(t, request{method: http.MethodGet, path: "/api/billing/verify", user: "user-1"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decode[verification.Result](t, rec).Success)
	}

	rec := h.do(t, request{method: http.MethodGet, path: "/api/billing/verify", user: "user-1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// buckets are per tenant
	rec = h.do(t, request{method: http.MethodGet, path: "/api/billing/verify", user: "user-2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBusinessContextIsRequiredAndOwned(t *testing.T) {
	h := newHarness(t)
	mine := h.createBusiness(t, "user-1")
	theirs := h.createBusiness(t, "user-2")

	rec := h.do(t, request{method: http.MethodGet, path: "/api/clients", user: "user-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/clients", user: "user-1", business: theirs})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/clients", user: "user-1", business: mine})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPlanLimitReturnsPaymentRequired(t *testing.T) {
	h := newHarness(t)
	business := h.createBusiness(t, "user-1")

	rec := h.do(t, request{method: http.MethodPost, path: "/api/businesses", user: "user-1", body: gin.H{"name": "Second"}})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "You have reached your plan's limit of 1 businesses. Upgrade your plan to add more.", decodeError(t, rec).Message)

	for i := 0; i < 5; i++ {
		h.createClient(t, "user-1", business)
	}
	rec = h.do(t, request{method: http.MethodPost, path: "/api/clients", user: "user-1", business: business, body: gin.H{"name": "One too many"}})
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	failure := decodeError(t, rec)
	assert.Equal(t, "limit_exceeded", failure.Type)
	assert.Equal(t, "You have reached your plan's limit of 5 clients. Upgrade your plan to add more.", failure.Message)
	assert.EqualValues(t, 5, testutil.Count(t, h.db, "clients", "user_id = ?", "user-1"))

	h.stack.Activate(t, "user-1", "Pro")
	rec = h.do(t, request{method: http.MethodPost, path: "/api/clients", user: "user-1", business: business, body: gin.H{"name": "After upgrade"}})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUsageSummary(t *testing.T) {
	h := newHarness(t)
	business := h.createBusiness(t, "user-1")
	h.createClient(t, "user-1", business)

	rec := h.do(t, request{method: http.MethodGet, path: "/api/billing/usage", user: "user-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	usage := decode[struct {
		Plan  string `json:"plan"`
		Items []struct {
			Resource string `json:"resource"`
			Used     int64  `json:"used"`
			Limit    int64  `json:"limit"`
		} `json:"items"`
	}](t, rec)
	assert.Equal(t, config.FreePlanName, usage.Plan)
	used := map[string]int64{}
	for _, item := range usage.Items {
		used[item.Resource] = item.Used
	}
	assert.EqualValues(t, 1, used["businesses"])
	assert.EqualValues(t, 1, used["clients"])
	assert.EqualValues(t, 0, used["invoices"])
}

func TestInvoiceReceiptFlow(t *testing.T) {
	h := newHarness(t)
	business := h.createBusiness(t, "user-1")
	client := h.createClient(t, "user-1", business)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/invoices", user: "user-1", business: business, body: gin.H{
		"client_id": client,
		"items":     []gin.H{{"description": "Design", "quantity": 2, "unit_price": 250000}},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	invoice := decode[idOnly](t, rec)
	assert.Equal(t, "draft", invoice.Status)

	rec = h.do(t, request{method: http.MethodPatch, path: "/api/invoices/" + invoice.ID + "/status", user: "user-1", business: business, body: gin.H{"status": "accepted"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, request{method: http.MethodPatch, path: "/api/invoices/" + invoice.ID + "/status", user: "user-1", business: business, body: gin.H{"status": "sent"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sent", decode[idOnly](t, rec).Status)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/estimates/" + invoice.ID, user: "user-1", business: business})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, request{method: http.MethodPost, path: "/api/receipts", user: "user-1", business: business, body: gin.H{
		"invoice_id": invoice.ID,
		"amount":     500000,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	receipt := decode[idOnly](t, rec)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/invoices/" + invoice.ID, user: "user-1", business: business})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[idOnly](t, rec).Status)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/receipts/" + receipt.ID + "/pdf", user: "user-1", business: business})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))

	rec = h.do(t, request{method: http.MethodPost, path: "/api/receipts", user: "user-1", business: business, body: gin.H{
		"invoice_id": "no-invoice",
		"client_id":  client,
		"amount":     1000,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestEstimatesAndExpenses(t *testing.T) {
	h := newHarness(t)
	business := h.createBusiness(t, "user-1")
	client := h.createClient(t, "user-1", business)

	rec := h.do(t, request{method: http.MethodPost, path: "/api/estimates", user: "user-1", business: business, body: gin.H{
		"client_id": client,
		"items":     []gin.H{{"description": "Quote", "quantity": 1, "unit_price": 1000}},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	estimate := decode[idOnly](t, rec)

	rec = h.do(t, request{method: http.MethodPatch, path: "/api/estimates/" + estimate.ID + "/status", user: "user-1", business: business, body: gin.H{"status": "accepted"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "accepted", decode[idOnly](t, rec).Status)

	rec = h.do(t, request{method: http.MethodPost, path: "/api/expenses", user: "user-1", business: business, body: gin.H{
		"category": "Travel",
		"amount":   25000,
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	expense := decode[idOnly](t, rec)

	rec = h.do(t, request{method: http.MethodPost, path: "/api/expenses", user: "user-1", business: business, body: gin.H{"category": "Travel"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, request{method: http.MethodDelete, path: "/api/expenses/" + expense.ID, user: "user-1", business: business})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(t, request{method: http.MethodGet, path: "/api/expenses/" + expense.ID, user: "user-1", business: business})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
