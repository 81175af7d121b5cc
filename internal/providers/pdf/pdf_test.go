package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "NGN 5,000.00", FormatMoney("ngn", 5000))
	assert.Equal(t, "NGN 15,000.50", FormatMinor("NGN", 1500050))
	assert.Equal(t, "USD 0.00", FormatMinor("usd", 0))
}

func TestNewInvoiceData(t *testing.T) {
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	entry := subscriptiondomain.SubscriptionInvoice{
		Reference:   "sub_01hx",
		Amount:      5000,
		Currency:    "NGN",
		Status:      subscriptiondomain.InvoiceStatusPaid,
		PaidAt:      paidAt,
		PeriodStart: paidAt,
		PeriodEnd:   paidAt.AddDate(0, 1, 0),
	}
	data := NewInvoiceData(entry, plandomain.Plan{Name: "Pro", Interval: "monthly"}, "ada@example.com")

	assert.Equal(t, "sub_01hx", data.Number)
	assert.Equal(t, "March 1, 2026", data.IssueDate)
	assert.Equal(t, "Mar 1, 2026 - Apr 1, 2026", data.ServicePeriod)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Pro plan (monthly)", data.Items[0].Description)
	assert.Equal(t, "NGN 5,000.00", data.Total)
}

func TestSubscriptionInvoiceRendersPDF(t *testing.T) {
	r := NewWithIssuer(Issuer{Name: "Invoicely", Email: "support@invoicely.app"})
	data := NewInvoiceData(subscriptiondomain.SubscriptionInvoice{
		Reference: "sub_01hx",
		Amount:    5000,
		Currency:  "NGN",
		Status:    "paid",
		PaidAt:    time.Now(),
	}, plandomain.Plan{Name: "Pro", Interval: "monthly"}, "ada@example.com")

	out, err := r.SubscriptionInvoice(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = r.SubscriptionInvoice(context.Background(), InvoiceData{})
	assert.ErrorIs(t, err, ErrMissingInvoice)
}

func TestReceiptRendersPDF(t *testing.T) {
	r := NewWithIssuer(Issuer{Name: "Invoicely"})
	invoice := &invoicedomain.Invoice{
		Number:   "INV-202603-0001",
		Currency: "NGN",
		Items: datatypes.NewJSONType([]invoicedomain.LineItem{
			{Description: "Design", Quantity: 2, UnitPriceMinor: 15000, AmountMinor: 30000},
		}),
	}
	receipt := receiptdomain.Receipt{
		Number:        "RCT-202603-0001",
		AmountMinor:   30000,
		Currency:      "NGN",
		PaymentMethod: "bank_transfer",
		PaidOn:        time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	data := NewReceiptData("Ada Bakery", "hello@ada.test", "Grace", receipt, invoice)
	assert.Equal(t, "INV-202603-0001", data.InvoiceNumber)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "NGN 150.00", data.Items[0].UnitPrice)
	assert.Equal(t, "NGN 300.00", data.Total)

	out, err := r.Receipt(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	standalone := NewReceiptData("Ada Bakery", "", "", receipt, nil)
	assert.Empty(t, standalone.Items)
	_, err = r.Receipt(context.Background(), standalone)
	assert.NoError(t, err)
}
