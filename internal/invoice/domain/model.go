// Package domain contains tenant invoices and estimates. Both live in the
// invoices table and count against the invoices plan limit.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindInvoice  Kind = "invoice"
	KindEstimate Kind = "estimate"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusPaid     Status = "paid"
	StatusOverdue  Status = "overdue"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Allows reports whether status belongs to documents of this kind.
func (k Kind) Allows(status Status) bool {
	switch k {
	case KindInvoice:
		switch status {
		case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
			return true
		}
	case KindEstimate:
		switch status {
		case StatusDraft, StatusSent, StatusAccepted, StatusDeclined:
			return true
		}
	}
	return false
}

func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindEstimate
}

type LineItem struct {
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price"`
	AmountMinor    int64  `json:"amount"`
}

type Invoice struct {
	ID            snowflake.ID                   `json:"id" gorm:"primaryKey"`
	UserID        string                         `json:"-" gorm:"type:text;not null;index;uniqueIndex:ux_invoices_user_number,priority:1"`
	BusinessID    snowflake.ID                   `json:"business_id" gorm:"not null;index"`
	ClientID      snowflake.ID                   `json:"client_id" gorm:"not null;index"`
	Kind          Kind                           `json:"kind" gorm:"type:text;not null;default:'invoice'"`
	Number        string                         `json:"number" gorm:"type:text;not null;uniqueIndex:ux_invoices_user_number,priority:2"`
	Status        Status                         `json:"status" gorm:"type:text;not null"`
	Currency      string                         `json:"currency" gorm:"type:text;not null"`
	Items         datatypes.JSONType[[]LineItem] `json:"items"`
	SubtotalMinor int64                          `json:"subtotal" gorm:"not null"`
	TaxMinor      int64                          `json:"tax" gorm:"not null;default:0"`
	TotalMinor    int64                          `json:"total" gorm:"not null"`
	IssueDate     time.Time                      `json:"issue_date" gorm:"not null"`
	DueDate       *time.Time                     `json:"due_date,omitempty"`
	PaidAt        *time.Time                     `json:"paid_at,omitempty"`
	Notes         string                         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt     time.Time                      `json:"created_at" gorm:"not null"`
	UpdatedAt     time.Time                      `json:"updated_at" gorm:"not null"`
}

func (Invoice) TableName() string { return "invoices" }
