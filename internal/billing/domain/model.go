// Package domain holds the records and contracts shared by the billing flows.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventRecord is the raw audit trail of inbound gateway webhooks. A delivery
// is identified by provider, reference and event type.
type EventRecord struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider    string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_payment_events_delivery,priority:1"`
	Reference   string         `json:"reference" gorm:"type:text;not null;uniqueIndex:ux_payment_events_delivery,priority:2"`
	EventType   string         `json:"event_type" gorm:"type:text;not null;uniqueIndex:ux_payment_events_delivery,priority:3"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb;not null"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, reference, eventType string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

// Webhook outcomes. The HTTP layer maps them to 401, 400 and 500.
var (
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrProcessingFailed = errors.New("webhook_processing_failed")
)

var (
	ErrEmailRequired     = errors.New("email_required")
	ErrCheckoutFailed    = errors.New("checkout_failed")
	ErrGatewayNotEnabled = errors.New("gateway_not_configured")
)
