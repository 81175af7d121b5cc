package seed

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/invoicely/internal/config"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	planrepo "github.com/smallbiznis/invoicely/internal/plan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEnsurePlansIsIdempotentAndKeepsIDs(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := planrepo.Provide()

	catalog := config.DefaultPlanCatalog()
	require.NoError(t, EnsurePlans(ctx, db, node, repo, catalog))

	before, err := repo.FindByName(ctx, db, "Pro")
	require.NoError(t, err)
	require.NotNil(t, before)

	catalog.Plans[1].Limits.Clients = 250
	require.NoError(t, EnsurePlans(ctx, db, node, repo, catalog))

	var count int64
	require.NoError(t, db.Model(&plandomain.Plan{}).Count(&count).Error)
	assert.Equal(t, int64(len(catalog.Plans)), count)

	after, err := repo.FindByName(ctx, db, "pro")
	require.NoError(t, err)
	require.NotNil(t, after)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, plandomain.Limit(250), after.Limits.Clients)
}

func TestEnsurePlansRejectsCatalogWithoutFree(t *testing.T) {
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(1)

	err := EnsurePlans(context.Background(), db, node, planrepo.Provide(), config.PlanCatalog{
		Plans: []config.PlanDefinition{{Name: "Pro", Interval: "monthly"}},
	})
	assert.Error(t, err)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&plandomain.Plan{}))
	return db
}
