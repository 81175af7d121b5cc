package migration

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/invoicely/internal/config"
	planrepo "github.com/smallbiznis/invoicely/internal/plan/repository"
	"github.com/smallbiznis/invoicely/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBootstrapCreatesSchemaAndSeedsPlans(t *testing.T) {
	db := testutil.NewDB(t)

	err := Bootstrap(BootstrapParams{
		DB:     db,
		Log:    zap.NewNop(),
		Node:   testutil.Node(t),
		Plans:  planrepo.Provide(),
		Holder: config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalog()),
	})
	require.NoError(t, err)

	for _, table := range []string{
		"plans", "subscriptions", "subscription_invoices", "payment_events",
		"businesses", "clients", "invoices", "receipts", "expenses",
	} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.Equal(t, int64(3), testutil.Count(t, db, "plans", ""))

	// a second boot must not duplicate plans
	require.NoError(t, Bootstrap(BootstrapParams{
		DB:     db,
		Log:    zap.NewNop(),
		Node:   testutil.Node(t),
		Plans:  planrepo.Provide(),
		Holder: config.NewStaticPlanCatalogHolder(config.DefaultPlanCatalog()),
	}))
	assert.Equal(t, int64(3), testutil.Count(t, db, "plans", ""))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Fatalf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialSchemaEnablesRowLevelSecurity(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "FORCE ROW LEVEL SECURITY")
	assert.Contains(t, sql, "app.current_user_id")
	for _, table := range []string{"businesses", "clients", "invoices", "receipts", "expenses", "subscriptions"} {
		assert.Contains(t, sql, "'"+table+"'")
	}
}
