package tenantctx

import (
	"context"
	"errors"
	"strings"
)

type keyType string

const (
	TenantIDKey   keyType = "tenant_id"
	BusinessIDKey keyType = "business_id"
	EmailKey      keyType = "tenant_email"
)

// WithTenant stores the authenticated user id. Every owned row is keyed by it.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, strings.TrimSpace(tenantID))
}

func TenantID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(TenantIDKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, EmailKey, strings.TrimSpace(email))
}

func Email(ctx context.Context) string {
	v, _ := ctx.Value(EmailKey).(string)
	return v
}

// WithBusiness stores the active business once it has been validated
// against the tenant.
func WithBusiness(ctx context.Context, businessID int64) context.Context {
	return context.WithValue(ctx, BusinessIDKey, businessID)
}

func BusinessID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(BusinessIDKey).(int64)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

var (
	ErrMissingTenant   = errors.New("invalid_tenant")
	ErrMissingBusiness = errors.New("business_required")
)

// Require returns the tenant and active business, failing when either is
// absent.
func Require(ctx context.Context) (string, int64, error) {
	userID, ok := TenantID(ctx)
	if !ok {
		return "", 0, ErrMissingTenant
	}
	businessID, ok := BusinessID(ctx)
	if !ok {
		return "", 0, ErrMissingBusiness
	}
	return userID, businessID, nil
}
