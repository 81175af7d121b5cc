package ratelimit

import (
	"context"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicely/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyVerify = "billing:verify:"

// Limiter decides whether one more call for key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// VerifyLimiter throttles payment verification per caller.
type VerifyLimiter struct {
	Limiter
}

func NewRedisClient(cfg config.Config, lc fx.Lifecycle, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis unreachable, rate limits fail open until it recovers", zap.String("addr", addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

type VerifyParams struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Lifecycle fx.Lifecycle
	Redis     *redis.Client `optional:"true"`
}

func NewVerifyLimiter(p VerifyParams) *VerifyLimiter {
	rps := p.Config.Billing.VerifyRatePerSec
	burst := p.Config.Billing.VerifyBurst
	log := p.Log.Named("ratelimit")

	if p.Redis != nil {
		log.Info("verification rate limit backed by redis", zap.Float64("rate", rps), zap.Int("burst", burst))
		return &VerifyLimiter{Limiter: &redisLimiter{bucket: NewTokenBucket(p.Redis), prefix: keyVerify, rate: rps, burst: burst, log: log}}
	}

	local := NewLocalBuckets(rps, burst)
	stop := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sweep(local, stop)
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return nil
		},
	})
	log.Info("verification rate limit kept in process", zap.Float64("rate", rps), zap.Int("burst", burst))
	return &VerifyLimiter{Limiter: prefixed{inner: local, prefix: keyVerify}}
}

func sweep(local *LocalBuckets, stop <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			local.Sweep()
		case <-stop:
			return
		}
	}
}

type redisLimiter struct {
	bucket *TokenBucket
	prefix string
	rate   float64
	burst  int
	log    *zap.Logger
}

// Allow fails open on redis errors.
func (r *redisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	res, err := r.bucket.Allow(ctx, r.prefix+key, r.rate, r.burst)
	if err != nil {
		r.log.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
		return Result{Allowed: true, Limit: r.burst}, nil
	}
	return res, nil
}

type prefixed struct {
	inner  *LocalBuckets
	prefix string
}

func (p prefixed) Allow(ctx context.Context, key string) (Result, error) {
	return p.inner.Allow(ctx, p.prefix+key)
}
