package pdf

import (
	"context"
	"errors"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	invoicedomain "github.com/smallbiznis/invoicely/internal/invoice/domain"
	receiptdomain "github.com/smallbiznis/invoicely/internal/receipt/domain"
)

var ErrMissingReceipt = errors.New("pdf: receipt number is required")

// ReceiptData is a tenant's payment receipt, issued by the tenant's business.
type ReceiptData struct {
	BusinessName  string
	BusinessEmail string
	Number        string
	DatePaid      string
	PaymentMethod string
	InvoiceNumber string
	ClientName    string
	Notes         string

	Items []InvoiceItem

	Total string
}

// NewReceiptData builds the document for a receipt. invoice may be nil.
func NewReceiptData(businessName, businessEmail, clientName string, receipt receiptdomain.Receipt, invoice *invoicedomain.Invoice) ReceiptData {
	data := ReceiptData{
		BusinessName:  businessName,
		BusinessEmail: businessEmail,
		Number:        receipt.Number,
		DatePaid:      formatDate(receipt.PaidOn),
		PaymentMethod: receipt.PaymentMethod,
		ClientName:    clientName,
		Notes:         receipt.Notes,
		Total:         FormatMinor(receipt.Currency, receipt.AmountMinor),
	}
	if invoice == nil {
		return data
	}

	data.InvoiceNumber = invoice.Number
	for _, item := range invoice.Items.Data() {
		data.Items = append(data.Items, InvoiceItem{
			Description: item.Description,
			Qty:         int(item.Quantity),
			UnitPrice:   FormatMinor(invoice.Currency, item.UnitPriceMinor),
			Amount:      FormatMinor(invoice.Currency, item.AmountMinor),
		})
	}
	return data
}

func (p *PDFProvider) Receipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if receipt.Number == "" {
		return nil, ErrMissingReceipt
	}

	m := maroto.New(pageConfig())

	m.AddRow(12,
		text.NewCol(8, receipt.BusinessName, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, "Receipt", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Right}),
	)

	meta := col.New(6).Add(
		text.New("Receipt number: "+receipt.Number, props.Text{Top: 0}),
		text.New("Date paid: "+receipt.DatePaid, props.Text{Top: 4}),
		text.New("Payment method: "+receipt.PaymentMethod, props.Text{Top: 8}),
	)
	if receipt.InvoiceNumber != "" {
		meta.Add(text.New("Invoice number: "+receipt.InvoiceNumber, props.Text{Top: 12}))
	}
	m.AddRow(20,
		meta,
		col.New(6).Add(
			text.New(receipt.BusinessEmail, props.Text{Align: align.Right}),
		),
	)

	if receipt.ClientName != "" {
		m.AddRow(14,
			col.New(6).Add(
				text.New("Received from", props.Text{Style: fontstyle.Bold}),
				text.New(receipt.ClientName, props.Text{Top: 5}),
			),
			col.New(6),
		)
	}

	m.AddRow(15,
		text.NewCol(12, receipt.Total+" paid on "+receipt.DatePaid, props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)

	if len(receipt.Items) > 0 {
		addItems(m, receipt.Items)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, receipt.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if receipt.Notes != "" {
		m.AddRow(12, text.NewCol(12, receipt.Notes, props.Text{Size: 9, Top: 4}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
