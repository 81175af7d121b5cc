// Package domain holds the plan catalog: named tiers with per-resource limits.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// ResourceKind is the closed set of resources a plan can cap.
type ResourceKind string

const (
	ResourceBusinesses ResourceKind = "businesses"
	ResourceClients    ResourceKind = "clients"
	ResourceInvoices   ResourceKind = "invoices"
	ResourceReceipts   ResourceKind = "receipts"
	ResourceExpenses   ResourceKind = "expenses"
)

var AllResourceKinds = []ResourceKind{
	ResourceBusinesses,
	ResourceClients,
	ResourceInvoices,
	ResourceReceipts,
	ResourceExpenses,
}

func ParseResourceKind(value string) (ResourceKind, error) {
	kind := ResourceKind(strings.ToLower(strings.TrimSpace(value)))
	for _, k := range AllResourceKinds {
		if k == kind {
			return k, nil
		}
	}
	return "", ErrUnknownResourceKind
}

// Limit is a per-resource cap. Unbounded disables the cap.
type Limit int64

const Unbounded Limit = -1

func (l Limit) IsUnbounded() bool { return l == Unbounded }

// Allows reports whether one more resource may be created when count
// already exist.
func (l Limit) Allows(count int64) bool {
	if l.IsUnbounded() {
		return true
	}
	if count < 0 {
		count = 0
	}
	return count < int64(l)
}

type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

func ParseInterval(value string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(value))) {
	case IntervalMonthly:
		return IntervalMonthly, nil
	case IntervalYearly:
		return IntervalYearly, nil
	default:
		return "", ErrInvalidInterval
	}
}

// AddTo returns the end of a billing period starting at t.
func (i Interval) AddTo(t time.Time) time.Time {
	if i == IntervalYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}

type Limits struct {
	Businesses Limit `json:"businesses" gorm:"not null;default:0"`
	Clients    Limit `json:"clients" gorm:"not null;default:0"`
	Invoices   Limit `json:"invoices" gorm:"not null;default:0"`
	Receipts   Limit `json:"receipts" gorm:"not null;default:0"`
	Expenses   Limit `json:"expenses" gorm:"not null;default:0"`
}

type Plan struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	Name       string       `json:"name" gorm:"type:text;not null;uniqueIndex"`
	PriceMinor int64        `json:"price_minor" gorm:"not null;default:0"`
	Currency   string       `json:"currency" gorm:"type:text;not null"`
	Interval   Interval     `json:"interval" gorm:"column:billing_interval;type:text;not null"`
	Limits     Limits       `json:"limits" gorm:"embedded;embeddedPrefix:limit_"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
}

func (Plan) TableName() string { return "plans" }

// LimitFor is exhaustive over ResourceKind.
func (p Plan) LimitFor(kind ResourceKind) (Limit, error) {
	switch kind {
	case ResourceBusinesses:
		return p.Limits.Businesses, nil
	case ResourceClients:
		return p.Limits.Clients, nil
	case ResourceInvoices:
		return p.Limits.Invoices, nil
	case ResourceReceipts:
		return p.Limits.Receipts, nil
	case ResourceExpenses:
		return p.Limits.Expenses, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownResourceKind, kind)
	}
}

// IsPaid reports whether choosing this plan goes through checkout.
func (p Plan) IsPaid() bool { return p.PriceMinor > 0 }

// Price is the plan price in major currency units.
func (p Plan) Price() float64 { return float64(p.PriceMinor) / 100 }

var (
	ErrNotFound            = errors.New("plan_not_found")
	ErrInvalidName         = errors.New("invalid_plan")
	ErrInvalidInterval     = errors.New("invalid_interval")
	ErrUnknownResourceKind = errors.New("invalid_resource_kind")
)
