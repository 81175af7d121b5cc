// Package testutil builds in-memory databases for service tests.
package testutil

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicely/internal/config"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	planrepo "github.com/smallbiznis/invoicely/internal/plan/repository"
	"github.com/smallbiznis/invoicely/internal/seed"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database. A single connection keeps
// every query on the same database and serialises concurrent transactions.
func NewDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		require.NoError(t, db.AutoMigrate(models...))
	}
	return db
}

func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	return node
}

// SeedPlans loads the default catalog and returns the rows by name.
func SeedPlans(t testing.TB, db *gorm.DB, node *snowflake.Node) map[string]plandomain.Plan {
	t.Helper()
	return SeedCatalog(t, db, node, config.DefaultPlanCatalog())
}

func SeedCatalog(t testing.TB, db *gorm.DB, node *snowflake.Node, catalog config.PlanCatalog) map[string]plandomain.Plan {
	t.Helper()
	ctx := context.Background()
	repo := planrepo.Provide()
	require.NoError(t, seed.EnsurePlans(ctx, db, node, repo, catalog))

	plans, err := repo.List(ctx, db)
	require.NoError(t, err)

	out := make(map[string]plandomain.Plan, len(plans))
	for _, p := range plans {
		out[p.Name] = p
	}
	return out
}

// Count returns the number of rows in table matching where.
func Count(t testing.TB, db *gorm.DB, table string, where string, args ...any) int64 {
	t.Helper()
	var count int64
	q := db.Table(table)
	if where != "" {
		q = q.Where(where, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}
