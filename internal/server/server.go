package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/invoicely/internal/auth"
	"github.com/smallbiznis/invoicely/internal/billing"
	"github.com/smallbiznis/invoicely/internal/billing/checkout"
	"github.com/smallbiznis/invoicely/internal/billing/verification"
	"github.com/smallbiznis/invoicely/internal/billing/webhook"
	"github.com/smallbiznis/invoicely/internal/business"
	businessdomain "github.com/smallbiznis/invoicely/internal/business/domain"
	"github.com/smallbiznis/invoicely/internal/client"
	clientdomain "github.com/smallbiznis/invoicely/internal/client/domain"
	"github.com/smallbiznis/invoicely/internal/config"
	"github.com/smallbiznis/invoicely/internal/expense"
	expensedomain "github.com/smallbiznis/invoicely/internal/expense/domain"
	"github.com/smallbiznis/invoicely/internal/invoice"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	"github.com/smallbiznis/invoicely/internal/limits"
	"github.com/smallbiznis/invoicely/internal/observability"
	obsmiddleware "github.com/smallbiznis/invoicely/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/invoicely/internal/observability/metrics"
	obstracing "github.com/smallbiznis/invoicely/internal/observability/tracing"
	"github.com/smallbiznis/invoicely/internal/plan"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"github.com/smallbiznis/invoicely/internal/providers"
	"github.com/smallbiznis/invoicely/internal/providers/pdf"
	"github.com/smallbiznis/invoicely/internal/ratelimit"
	"github.com/smallbiznis/invoicely/internal/receipt"
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
	"github.com/smallbiznis/invoicely/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	auth.Module,
	plan.Module,
	subscription.Module,
	limits.Module,
	billing.Module,
	business.Module,
	client.Module,
	invoice.Module,
	receipt.Module,
	expense.Module,
	providers.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type checkoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (checkout.Response, error)
}

type verificationService interface {
	VerifyAndApply(ctx context.Context, reference, subscriptionID string) verification.Result
}

type webhookService interface {
	Process(ctx context.Context, raw []byte, signature string) error
}

type usageReporter interface {
	Usage(ctx context.Context, db *gorm.DB) (limits.Usage, error)
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	verifier        *auth.Verifier
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	usage           usageReporter
	checkoutSvc     checkoutService
	verificationSvc verificationService
	webhookSvc      webhookService
	businessSvc     businessdomain.Service
	clientSvc       clientdomain.Service
	invoiceSvc      invoicedomain.Service
	receiptSvc      receiptdomain.Service
	expenseSvc      expensedomain.Service
	renderer        pdf.Renderer
	verifyLimiter   ratelimit.Limiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Verifier        *auth.Verifier
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Evaluator       *limits.Evaluator
	CheckoutSvc     *checkout.Service
	VerificationSvc *verification.Service
	WebhookSvc      *webhook.Service
	BusinessSvc     businessdomain.Service
	ClientSvc       clientdomain.Service
	InvoiceSvc      invoicedomain.Service
	ReceiptSvc      receiptdomain.Service
	ExpenseSvc      expensedomain.Service
	Renderer        pdf.Renderer
	VerifyLimiter   *ratelimit.VerifyLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("http"),
		verifier:        p.Verifier,
		planSvc:         p.PlanSvc,
		subscriptionSvc: p.SubscriptionSvc,
		usage:           p.Evaluator,
		checkoutSvc:     p.CheckoutSvc,
		verificationSvc: p.VerificationSvc,
		webhookSvc:      p.WebhookSvc,
		businessSvc:     p.BusinessSvc,
		clientSvc:       p.ClientSvc,
		invoiceSvc:      p.InvoiceSvc,
		receiptSvc:      p.ReceiptSvc,
		expenseSvc:      p.ExpenseSvc,
		renderer:        p.Renderer,
		obsMetrics:      p.ObsMetrics,
	}
	if p.VerifyLimiter != nil {
		svc.verifyLimiter = p.VerifyLimiter
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/api/webhooks")
	hooks.POST("/paystack", s.PaystackWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired(), s.SubscriptionBootstrap())

	billing := api.Group("/billing")
	{
		billing.GET("/plans", s.ListPlans)
		billing.GET("/subscription", s.GetSubscription)
		billing.POST("/checkout", s.Checkout)
		billing.GET("/verify", s.VerifyRateLimit(), s.VerifyPayment)
		billing.POST("/cancel", s.CancelSubscription)
		billing.GET("/usage", s.GetUsage)
		billing.GET("/invoices", s.ListBillingInvoices)
		billing.GET("/invoices/:id", s.GetBillingInvoice)
		billing.GET("/invoices/:id/pdf", s.DownloadBillingInvoice)
	}

	api.POST("/businesses", s.CreateBusiness)
	api.GET("/businesses", s.ListBusinesses)
	api.GET("/businesses/:id", s.GetBusiness)

	scoped := api.Group("", s.BusinessContext())
	{
		scoped.POST("/clients", s.CreateClient)
		scoped.GET("/clients", s.ListClients)
		scoped.GET("/clients/:id", s.GetClient)
		scoped.DELETE("/clients/:id", s.DeleteClient)

		scoped.POST("/invoices", s.CreateInvoice(invoicedomain.KindInvoice))
		scoped.GET("/invoices", s.ListInvoices(invoicedomain.KindInvoice))
		scoped.GET("/invoices/:id", s.GetInvoice(invoicedomain.KindInvoice))
		scoped.PATCH("/invoices/:id/status", s.UpdateInvoiceStatus(invoicedomain.KindInvoice))

		scoped.POST("/estimates", s.CreateInvoice(invoicedomain.KindEstimate))
		scoped.GET("/estimates", s.ListInvoices(invoicedomain.KindEstimate))
		scoped.GET("/estimates/:id", s.GetInvoice(invoicedomain.KindEstimate))
		scoped.PATCH("/estimates/:id/status", s.UpdateInvoiceStatus(invoicedomain.KindEstimate))

		scoped.POST("/receipts", s.CreateReceipt)
		scoped.GET("/receipts", s.ListReceipts)
		scoped.GET("/receipts/:id", s.GetReceipt)
		scoped.GET("/receipts/:id/pdf", s.DownloadReceipt)

		scoped.POST("/expenses", s.CreateExpense)
		scoped.GET("/expenses", s.ListExpenses)
		scoped.GET("/expenses/:id", s.GetExpense)
		scoped.DELETE("/expenses/:id", s.DeleteExpense)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
