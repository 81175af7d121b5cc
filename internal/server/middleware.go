package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/invoicely/internal/observability/context"
	"github.com/smallbiznis/invoicely/internal/observability/logger"
	"github.com/smallbiznis/invoicely/pkg/tenantctx"
	"go.uber.org/zap"
)

const (
	HeaderBusiness        = "X-Business-ID"
	HeaderPaystackSig     = "x-paystack-signature"
	contextUserIDKey      = "user_id"
	contextBusinessIDKey  = "business_id"
	rateLimitVerifyMetric = "billing.verify"
)

// AuthRequired resolves the tenant from the session token and stores it on
// the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.verifier.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.verifier.Verify(token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := c.Request.Context()
		ctx = tenantctx.WithTenant(ctx, identity.UserID)
		ctx = tenantctx.WithEmail(ctx, identity.Email)
		ctx = obscontext.WithTenantID(ctx, identity.UserID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextUserIDKey, identity.UserID)
		c.Next()
	}
}

// SubscriptionBootstrap gives a tenant its Free subscription on the first
// protected request, whichever route that is.
func (s *Server) SubscriptionBootstrap() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.subscriptionSvc.EnsureDefault(c.Request.Context()); err != nil {
			logger.FromContext(c.Request.Context()).Error("bootstrap subscription failed", zap.Error(err))
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// BusinessContext requires X-Business-ID to name a business the tenant owns.
func (s *Server) BusinessContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderBusiness))
		if raw == "" {
			AbortWithError(c, tenantctx.ErrMissingBusiness)
			return
		}

		business, err := s.businessSvc.Get(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := tenantctx.WithBusiness(c.Request.Context(), business.ID.Int64())
		ctx = obscontext.WithBusinessID(ctx, business.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextBusinessIDKey, business.ID.String())
		c.Next()
	}
}

// VerifyRateLimit throttles verification attempts per tenant.
func (s *Server) VerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifyLimiter == nil {
			c.Next()
			return
		}

		key := c.GetString(contextUserIDKey)
		if key == "" {
			key = c.ClientIP()
		}

		ctx := c.Request.Context()
		result, err := s.verifyLimiter.Allow(ctx, key)
		if err != nil {
			logger.FromContext(ctx).Warn("verify rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			s.obsMetrics.RecordRateLimitDenied(ctx, rateLimitVerifyMetric, "tenant")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "Too many verification attempts. Please wait and try again.",
			}})
			return
		}

		c.Next()
	}
}
