// Package paystack implements gateway.Gateway against the Paystack REST API.
package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/invoicely/internal/config"
	"github.com/smallbiznis/invoicely/internal/gateway"
	"go.uber.org/zap"
)

const (
	providerName     = "paystack"
	defaultBaseURL   = "https://api.paystack.co"
	maxResponseBytes = 1 << 20
)

type Adapter struct {
	secretKey string
	baseURL   string
	client    *http.Client
	log       *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) gateway.Gateway {
	return NewAdapter(cfg.Paystack, &http.Client{
		Timeout: time.Duration(cfg.Paystack.TimeoutSeconds) * time.Second,
	}, log)
}

func NewAdapter(cfg config.PaystackConfig, client *http.Client, log *zap.Logger) *Adapter {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{
		secretKey: strings.TrimSpace(cfg.SecretKey),
		baseURL:   baseURL,
		client:    client,
		log:       log.Named("gateway.paystack"),
	}
}

func (a *Adapter) Name() string { return providerName }

// VerifySignature checks the hex HMAC-SHA512 of the raw body. A missing
// secret or header never verifies.
func (a *Adapter) VerifySignature(payload []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if a.secretKey == "" || signature == "" {
		return gateway.ErrInvalidSignature
	}

	mac := hmac.New(sha512.New, []byte(a.secretKey))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return gateway.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) ParseEvent(payload []byte) (gateway.Event, error) {
	var envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return gateway.Event{}, gateway.ErrInvalidPayload
	}

	event := gateway.Event{Type: strings.TrimSpace(envelope.Event)}
	if event.Type == "" {
		return gateway.Event{}, gateway.ErrInvalidPayload
	}
	if event.Type != gateway.EventChargeSuccess {
		return event, nil
	}

	var data transactionData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return gateway.Event{}, gateway.ErrInvalidPayload
	}
	charge := data.toTransaction()
	event.Charge = &charge
	return event, nil
}

func (a *Adapter) InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (gateway.InitializeResponse, error) {
	if a.secretKey == "" {
		return gateway.InitializeResponse{}, gateway.ErrNotConfigured
	}

	body := map[string]any{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}
	if req.Currency != "" {
		body["currency"] = req.Currency
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	var out struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := a.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return gateway.InitializeResponse{}, err
	}
	if out.AuthorizationURL == "" {
		return gateway.InitializeResponse{}, gateway.ErrGatewayUnavailable
	}
	if out.Reference == "" {
		out.Reference = req.Reference
	}
	return gateway.InitializeResponse{
		AuthorizationURL: out.AuthorizationURL,
		AccessCode:       out.AccessCode,
		Reference:        out.Reference,
	}, nil
}

func (a *Adapter) VerifyTransaction(ctx context.Context, reference string) (gateway.Transaction, error) {
	if a.secretKey == "" {
		return gateway.Transaction{}, gateway.ErrNotConfigured
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return gateway.Transaction{}, gateway.ErrInvalidPayload
	}

	var data transactionData
	if err := a.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return gateway.Transaction{}, err
	}
	return data.toTransaction(), nil
}

type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (a *Adapter) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn("paystack request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", gateway.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", gateway.ErrGatewayUnavailable, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		a.log.Warn("paystack returned unreadable body",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
		)
		return gateway.ErrGatewayUnavailable
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", gateway.ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusBadRequest || !envelope.Status {
		a.log.Info("paystack rejected request",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
			zap.String("message", envelope.Message),
		)
		return fmt.Errorf("%w: %s", gateway.ErrTransactionFailed, envelope.Message)
	}

	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return gateway.ErrInvalidPayload
	}
	return nil
}

type transactionData struct {
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	Amount        int64           `json:"amount"`
	Currency      string          `json:"currency"`
	PaidAt        string          `json:"paid_at"`
	PaidAtAlt     string          `json:"paidAt"`
	Metadata      json.RawMessage `json:"metadata"`
	Authorization struct {
		AuthorizationCode string `json:"authorization_code"`
	} `json:"authorization"`
	Customer struct {
		CustomerCode string `json:"customer_code"`
	} `json:"customer"`
}

func (d transactionData) toTransaction() gateway.Transaction {
	paidAt := parseTime(d.PaidAt)
	if paidAt.IsZero() {
		paidAt = parseTime(d.PaidAtAlt)
	}
	return gateway.Transaction{
		Reference:         strings.TrimSpace(d.Reference),
		Status:            strings.ToLower(strings.TrimSpace(d.Status)),
		AmountMinor:       d.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(d.Currency)),
		PaidAt:            paidAt,
		AuthorizationCode: strings.TrimSpace(d.Authorization.AuthorizationCode),
		CustomerCode:      strings.TrimSpace(d.Customer.CustomerCode),
		Metadata:          parseMetadata(d.Metadata),
	}
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

// parseMetadata tolerates metadata sent as an object or as a JSON-encoded
// string, and ids sent as strings or numbers.
func parseMetadata(raw json.RawMessage) gateway.Metadata {
	if len(raw) == 0 {
		return gateway.Metadata{}
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return gateway.Metadata{}
	}
	return gateway.Metadata{
		SubscriptionID: stringField(fields, "subscription_id"),
		Plan:           stringField(fields, "plan"),
		Interval:       stringField(fields, "interval"),
	}
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

var _ gateway.Gateway = (*Adapter)(nil)
