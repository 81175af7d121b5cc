// Package domain contains the subscription record and its payment ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
)

// Subscription is a tenant's single billing relationship. UserID is unique.
type Subscription struct {
	ID                 snowflake.ID        `json:"id" gorm:"primaryKey"`
	UserID             string              `json:"user_id" gorm:"type:text;not null;uniqueIndex"`
	PlanID             snowflake.ID        `json:"plan_id" gorm:"not null;index"`
	Status             SubscriptionStatus  `json:"status" gorm:"type:text;not null"`
	Interval           plandomain.Interval `json:"interval" gorm:"column:billing_interval;type:text;not null"`
	CurrentPeriodStart *time.Time          `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time          `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool                `json:"cancel_at_period_end" gorm:"not null;default:false"`
	CanceledAt         *time.Time          `json:"canceled_at,omitempty"`
	AuthorizationCode  *string             `json:"-" gorm:"type:text"`
	CustomerCode       *string             `json:"customer_code,omitempty" gorm:"type:text"`
	CreatedAt          time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time           `json:"updated_at" gorm:"not null"`
}

func (Subscription) TableName() string { return "subscriptions" }

func (s Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive
}

// SubscriptionInvoice is the append-only ledger of confirmed payments.
// Reference is the gateway reference and is unique.
type SubscriptionInvoice struct {
	ID             snowflake.ID   `json:"id" gorm:"primaryKey"`
	SubscriptionID snowflake.ID   `json:"subscription_id" gorm:"not null;index"`
	UserID         string         `json:"user_id" gorm:"type:text;not null;index"`
	PlanID         snowflake.ID   `json:"plan_id" gorm:"not null"`
	Reference      string         `json:"reference" gorm:"type:text;not null;uniqueIndex"`
	Amount         float64        `json:"amount" gorm:"not null"`
	Currency       string         `json:"currency" gorm:"type:text;not null"`
	Status         string         `json:"status" gorm:"type:text;not null"`
	Source         string         `json:"source" gorm:"type:text;not null"`
	PaidAt         time.Time      `json:"paid_at" gorm:"not null"`
	PeriodStart    time.Time      `json:"period_start" gorm:"not null"`
	PeriodEnd      time.Time      `json:"period_end" gorm:"not null"`
	Metadata       datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time      `json:"created_at" gorm:"not null"`
}

func (SubscriptionInvoice) TableName() string { return "subscription_invoices" }

const InvoiceStatusPaid = "paid"

// Confirmation sources.
const (
	SourceWebhook      = "webhook"
	SourceVerification = "verification"
)

// Confirmation is a gateway-confirmed payment for a subscription.
type Confirmation struct {
	SubscriptionID    snowflake.ID
	Reference         string
	AmountMinor       int64
	Currency          string
	PaidAt            time.Time
	AuthorizationCode string
	CustomerCode      string
	Source            string
	// PlanName and Interval echo the checkout metadata. Empty values are not
	// compared.
	PlanName string
	Interval string
	Metadata map[string]any
}

type ConfirmResult struct {
	// Applied is false when the reference was already in the ledger.
	Applied      bool
	Subscription Subscription
}

// MinorToMajor converts gateway minor units (kobo, cents) to major units.
func MinorToMajor(amount int64) float64 {
	return float64(amount) / 100
}
