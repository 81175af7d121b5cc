package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/invoicely/internal/config"
	"go.uber.org/fx"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var Module = fx.Module("pdf",
	fx.Provide(New),
)

// Renderer turns billing records into PDF documents.
type Renderer interface {
	SubscriptionInvoice(ctx context.Context, data InvoiceData) ([]byte, error)
	Receipt(ctx context.Context, data ReceiptData) ([]byte, error)
}

// Issuer is printed in the header of every document.
type Issuer struct {
	Name    string
	Address string
	Email   string
}

type PDFProvider struct {
	issuer Issuer
}

func New(cfg config.Config) Renderer {
	return &PDFProvider{issuer: Issuer{
		Name:    cfg.Billing.CompanyName,
		Address: cfg.Billing.CompanyAddress,
		Email:   cfg.Billing.SupportEmail,
	}}
}

// NewWithIssuer is used by tools and tests that have no config.
func NewWithIssuer(issuer Issuer) Renderer {
	return &PDFProvider{issuer: issuer}
}

var printer = message.NewPrinter(language.English)

// FormatMoney renders a major-unit amount as "NGN 5,000.00".
func FormatMoney(currency string, amount float64) string {
	return printer.Sprintf("%s %.2f", strings.ToUpper(currency), amount)
}

// FormatMinor renders a minor-unit amount.
func FormatMinor(currency string, amountMinor int64) string {
	return FormatMoney(currency, float64(amountMinor)/100)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("January 2, 2006")
}

func formatPeriod(start, end time.Time) string {
	if start.IsZero() || end.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s - %s", start.UTC().Format("Jan 2, 2006"), end.UTC().Format("Jan 2, 2006"))
}
