// Package gateway defines the payment gateway contract used by billing.
package gateway

import (
	"context"
	"errors"
	"time"
)

const EventChargeSuccess = "charge.success"

var (
	ErrInvalidSignature   = errors.New("invalid_signature")
	ErrInvalidPayload     = errors.New("invalid_payload")
	ErrGatewayUnavailable = errors.New("gateway_unavailable")
	ErrNotConfigured      = errors.New("gateway_not_configured")
	ErrTransactionFailed  = errors.New("transaction_failed")
)

// Gateway issues payment links, verifies transactions and authenticates
// inbound webhooks.
type Gateway interface {
	Name() string
	InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (Transaction, error)
	VerifySignature(payload []byte, signature string) error
	ParseEvent(payload []byte) (Event, error)
}

type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    Metadata
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Metadata is what billing attaches to a transaction and reads back from
// verification and webhook payloads.
type Metadata struct {
	SubscriptionID string `json:"subscription_id,omitempty"`
	Plan           string `json:"plan,omitempty"`
	Interval       string `json:"interval,omitempty"`
}

// Transaction is a charge as reported by the gateway.
type Transaction struct {
	Reference         string
	Status            string
	AmountMinor       int64
	Currency          string
	PaidAt            time.Time
	AuthorizationCode string
	CustomerCode      string
	Metadata          Metadata
}

func (t Transaction) Successful() bool {
	return t.Status == "success"
}

// Event is a parsed webhook envelope. Charge is set for charge.success only.
type Event struct {
	Type   string
	Charge *Transaction
}
