package rls

import (
	"gorm.io/gorm"
)

// WithTenant scopes row-level security policies to userID for the rest of tx.
// Only postgres enforces the policies; other dialects are a no-op.
func WithTenant(tx *gorm.DB, userID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT set_config('app.current_user_id', ?, true)", userID).Error
}

// LockTenant holds a transaction-scoped advisory lock on userID until tx
// commits or rolls back, so count-then-insert sequences of one tenant run
// one at a time. Other dialects are a no-op.
func LockTenant(tx *gorm.DB, userID string) error {
	stmt := lockStatement(tx.Dialector.Name())
	if stmt == "" {
		return nil
	}
	return tx.Exec(stmt, userID).Error
}

func lockStatement(dialect string) string {
	if dialect != "postgres" {
		return ""
	}
	return "SELECT pg_advisory_xact_lock(hashtext(?))"
}

// Transaction runs fn inside a transaction with the tenant scope applied.
func Transaction(db *gorm.DB, userID string, fn func(tx *gorm.DB) error) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := WithTenant(tx, userID); err != nil {
			return err
		}
		return fn(tx)
	})
}
