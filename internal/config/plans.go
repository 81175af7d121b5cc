package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PlanLimits uses -1 for unbounded.
type PlanLimits struct {
	Businesses int64 `mapstructure:"businesses" yaml:"businesses"`
	Clients    int64 `mapstructure:"clients" yaml:"clients"`
	Invoices   int64 `mapstructure:"invoices" yaml:"invoices"`
	Receipts   int64 `mapstructure:"receipts" yaml:"receipts"`
	Expenses   int64 `mapstructure:"expenses" yaml:"expenses"`
}

type PlanDefinition struct {
	Name       string     `mapstructure:"name" yaml:"name"`
	PriceMinor int64      `mapstructure:"priceMinor" yaml:"priceMinor"`
	Currency   string     `mapstructure:"currency" yaml:"currency"`
	Interval   string     `mapstructure:"interval" yaml:"interval"`
	Limits     PlanLimits `mapstructure:"limits" yaml:"limits"`
}

type PlanCatalog struct {
	Plans []PlanDefinition `mapstructure:"plans" yaml:"plans"`
}

// FreePlanName is the plan every tenant falls back to.
const FreePlanName = "Free"

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		Plans: []PlanDefinition{
			{
				Name:     FreePlanName,
				Currency: "NGN",
				Interval: "monthly",
				Limits:   PlanLimits{Businesses: 1, Clients: 5, Invoices: 10, Receipts: 10, Expenses: 20},
			},
			{
				Name:       "Pro",
				PriceMinor: 500000,
				Currency:   "NGN",
				Interval:   "monthly",
				Limits:     PlanLimits{Businesses: 3, Clients: 100, Invoices: 500, Receipts: 500, Expenses: 1000},
			},
			{
				Name:       "Business",
				PriceMinor: 1500000,
				Currency:   "NGN",
				Interval:   "monthly",
				Limits:     PlanLimits{Businesses: -1, Clients: -1, Invoices: -1, Receipts: -1, Expenses: -1},
			},
		},
	}
}

type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog

	mu        sync.Mutex
	listeners []func(PlanCatalog)
}

// NewStaticPlanCatalogHolder never reloads. Used by tests and tools.
func NewStaticPlanCatalogHolder(catalog PlanCatalog) *PlanCatalogHolder {
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder
}

func NewPlanCatalogHolder(cfg Config, log *zap.Logger) (*PlanCatalogHolder, error) {
	log = log.Named("config.plans")
	v := viper.New()

	if path := cfg.Billing.PlanCatalogPath; path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/invoicely")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("INVOICELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fromFile = false
		v.SetDefault("plans", DefaultPlanCatalog().Plans)
	}

	var catalog PlanCatalog
	if fromFile {
		if err := v.Unmarshal(&catalog); err != nil {
			return nil, err
		}
	} else {
		catalog = DefaultPlanCatalog()
	}
	catalog = normalizePlanCatalog(catalog, cfg.Billing.DefaultCurrency)
	if err := ValidatePlanCatalog(catalog); err != nil {
		return nil, err
	}

	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)

	if fromFile {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated PlanCatalog
			if err := v.Unmarshal(&updated); err != nil {
				log.Warn("plan catalog reload failed", zap.Error(err))
				return
			}
			updated = normalizePlanCatalog(updated, cfg.Billing.DefaultCurrency)
			if err := ValidatePlanCatalog(updated); err != nil {
				log.Warn("invalid plan catalog ignored", zap.Error(err))
				return
			}
			holder.store(updated)
			log.Info("plan catalog reloaded", zap.String("file", filepath.Base(e.Name)))
		})
	}

	return holder, nil
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	return h.current.Load().(PlanCatalog)
}

// OnChange registers fn to run after every successful reload.
func (h *PlanCatalogHolder) OnChange(fn func(PlanCatalog)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *PlanCatalogHolder) store(catalog PlanCatalog) {
	h.current.Store(catalog)

	h.mu.Lock()
	listeners := append([]func(PlanCatalog){}, h.listeners...)
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(catalog)
	}
}

func normalizePlanCatalog(catalog PlanCatalog, currency string) PlanCatalog {
	out := PlanCatalog{Plans: make([]PlanDefinition, 0, len(catalog.Plans))}
	for _, p := range catalog.Plans {
		p.Name = strings.TrimSpace(p.Name)
		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		if p.Currency == "" {
			p.Currency = currency
		}
		p.Interval = strings.ToLower(strings.TrimSpace(p.Interval))
		if p.Interval == "" {
			p.Interval = "monthly"
		}
		out.Plans = append(out.Plans, p)
	}
	return out
}

func ValidatePlanCatalog(catalog PlanCatalog) error {
	if len(catalog.Plans) == 0 {
		return errors.New("plans cannot be empty")
	}
	seen := make(map[string]struct{}, len(catalog.Plans))
	hasFree := false
	for _, p := range catalog.Plans {
		if p.Name == "" {
			return errors.New("plan name is required")
		}
		key := strings.ToLower(p.Name)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate plan %q", p.Name)
		}
		seen[key] = struct{}{}
		if strings.EqualFold(p.Name, FreePlanName) {
			hasFree = true
		}
		if p.PriceMinor < 0 {
			return fmt.Errorf("plan %q: price cannot be negative", p.Name)
		}
		if p.Interval != "monthly" && p.Interval != "yearly" {
			return fmt.Errorf("plan %q: invalid interval %q", p.Name, p.Interval)
		}
		for _, l := range []int64{p.Limits.Businesses, p.Limits.Clients, p.Limits.Invoices, p.Limits.Receipts, p.Limits.Expenses} {
			if l < -1 {
				return fmt.Errorf("plan %q: limits must be -1 or non-negative", p.Name)
			}
		}
	}
	if !hasFree {
		return fmt.Errorf("plan catalog must define %q", FreePlanName)
	}
	return nil
}
