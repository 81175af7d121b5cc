package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoicely/internal/config"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"gorm.io/gorm"
)

// EnsurePlans upserts every catalog entry by name. Existing ids are kept so
// subscriptions stay attached across reloads.
func EnsurePlans(ctx context.Context, db *gorm.DB, node *snowflake.Node, repo plandomain.Repository, catalog config.PlanCatalog) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if err := config.ValidatePlanCatalog(catalog); err != nil {
		return err
	}

	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range catalog.Plans {
			plan := plandomain.FromDefinition(def)
			plan.ID = node.Generate()
			plan.CreatedAt = now
			plan.UpdatedAt = now
			if err := repo.Upsert(ctx, tx, &plan); err != nil {
				return err
			}
		}
		return nil
	})
}
