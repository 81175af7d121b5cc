package migration

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/invoicely/internal/billing/domain"
	businessdomain "github.com/smallbiznis/invoicely/internal/business/domain"
	clientdomain "github.com/smallbiznis/invoicely/internal/client/domain"
	"github.com/smallbiznis/invoicely/internal/config"
	expensedomain "github.com/smallbiznis/invoicely/internal/expense/domain"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
	"github.com/smallbiznis/invoicely/internal/seed"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Bootstrap),
)

type BootstrapParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Node   *snowflake.Node
	Plans  plandomain.Repository
	Holder *config.PlanCatalogHolder
}

// Models lists every table the application owns, in dependency order.
func Models() []any {
	return []any{
		&plandomain.Plan{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.SubscriptionInvoice{},
		&billingdomain.EventRecord{},
		&businessdomain.Business{},
		&clientdomain.Client{},
		&invoicedomain.Invoice{},
		&receiptdomain.Receipt{},
		&expensedomain.Expense{},
	}
}

// Migrate brings the schema up to date for the connected dialect. Only
// postgres gets the versioned SQL and its row level security policies.
func Migrate(conn *gorm.DB, log *zap.Logger) error {
	dialect := conn.Dialector.Name()
	if dialect != "postgres" {
		log.Info("auto-migrating schema", zap.String("dialect", dialect))
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	version, err := RunMigrations(sqlDB)
	if err != nil {
		return err
	}
	log.Info("schema migrated", zap.Uint("version", version))
	return nil
}

// Bootstrap migrates, seeds the plan catalog and keeps plans in sync with
// catalog reloads.
func Bootstrap(p BootstrapParams) error {
	log := p.Log.Named("migration")
	if err := Migrate(p.DB, log); err != nil {
		return err
	}

	ctx := context.Background()
	if err := seed.EnsurePlans(ctx, p.DB, p.Node, p.Plans, p.Holder.Get()); err != nil {
		return err
	}
	log.Info("plan catalog seeded", zap.Int("plans", len(p.Holder.Get().Plans)))

	p.Holder.OnChange(func(catalog config.PlanCatalog) {
		if err := seed.EnsurePlans(ctx, p.DB, p.Node, p.Plans, catalog); err != nil {
			log.Error("plan catalog reseed failed", zap.Error(err))
			return
		}
		log.Info("plan catalog reseeded", zap.Int("plans", len(catalog.Plans)))
	})
	return nil
}
