package pdf

import (
	"context"
	"errors"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/core/entity"
	"github.com/johnfercher/maroto/v2/pkg/props"
	plandomain "github.com/smallbiznis/invoicely/internal/plan/domain"
	subscriptiondomain "github.com/smallbiznis/invoicely/internal/subscription/domain"
)

var ErrMissingInvoice = errors.New("pdf: invoice reference is required")

// InvoiceData is a paid subscription period as it appears on paper.
type InvoiceData struct {
	Number        string
	IssueDate     string
	ServicePeriod string
	Status        string
	Source        string

	BillToEmail string

	Items []InvoiceItem

	Total string
}

type InvoiceItem struct {
	Description string
	Qty         int
	UnitPrice   string
	Amount      string
}

// NewInvoiceData maps a ledger entry and its plan onto the document.
func NewInvoiceData(entry subscriptiondomain.SubscriptionInvoice, plan plandomain.Plan, email string) InvoiceData {
	amount := FormatMoney(entry.Currency, entry.Amount)
	return InvoiceData{
		Number:        entry.Reference,
		IssueDate:     formatDate(entry.PaidAt),
		ServicePeriod: formatPeriod(entry.PeriodStart, entry.PeriodEnd),
		Status:        entry.Status,
		Source:        entry.Source,
		BillToEmail:   email,
		Items: []InvoiceItem{{
			Description: fmt.Sprintf("%s plan (%s)", plan.Name, plan.Interval),
			Qty:         1,
			UnitPrice:   amount,
			Amount:      amount,
		}},
		Total: amount,
	}
}

func (p *PDFProvider) SubscriptionInvoice(ctx context.Context, invoice InvoiceData) ([]byte, error) {
	if invoice.Number == "" {
		return nil, ErrMissingInvoice
	}

	m := maroto.New(pageConfig())

	m.AddRow(12,
		text.NewCol(8, p.issuer.Name, props.Text{Size: 16, Style: fontstyle.Bold}),
		text.NewCol(4, "Invoice", props.Text{Size: 20, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.Number, props.Text{Top: 0}),
			text.New("Date paid: "+invoice.IssueDate, props.Text{Top: 4}),
			text.New("Service period: "+invoice.ServicePeriod, props.Text{Top: 8}),
			text.New("Status: "+invoice.Status, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New(p.issuer.Address, props.Text{Align: align.Right}),
			text.New(p.issuer.Email, props.Text{Top: 4, Align: align.Right}),
		),
	)

	m.AddRow(16,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillToEmail, props.Text{Top: 5}),
		),
		col.New(6),
	)

	m.AddRow(15,
		text.NewCol(12, invoice.Total+" paid", props.Text{Size: 14, Style: fontstyle.Bold, Top: 5}),
	)

	addItems(m, invoice.Items)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, invoice.Total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func addItems(m core.Maroto, items []InvoiceItem) {
	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.UnitPrice, props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
}

func pageConfig() *entity.Config {
	return config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
}
