package pdf

import (
	"context"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is a payment receipt, pre-formatted for printing.
type ReceiptData struct {
	OrgName       string
	InvoiceNumber string
	IssuedAt      string
	Status        string

	PayerName  string
	PayerEmail string

	PaymentMethod string
	PaymentFor    string
	Amount        string

	// Details lists the auxiliary payment fields in print order.
	Details []ReceiptLine
}

type ReceiptLine struct {
	Label string
	Value string
}

type MarotoProvider struct{}

func New() Provider {
	return &MarotoProvider{}
}

func (p *MarotoProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if receipt.InvoiceNumber == "" {
		return nil, ErrEmptyReceipt
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Payment receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, receipt.OrgName, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Invoice number: "+receipt.InvoiceNumber, props.Text{Top: 0}),
			text.New("Issued: "+receipt.IssuedAt, props.Text{Top: 4}),
			text.New("Status: "+receipt.Status, props.Text{Top: 8}),
		),
		col.New(6).Add(
			text.New("Paid by", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(receipt.PayerName, props.Text{Top: 5, Align: align.Right}),
			text.New(receipt.PayerEmail, props.Text{Top: 9, Align: align.Right}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Method", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		text.NewCol(6, receipt.PaymentFor, props.Text{Size: 9}),
		text.NewCol(3, receipt.PaymentMethod, props.Text{Size: 9}),
		text.NewCol(3, receipt.Amount, props.Text{Size: 9, Align: align.Right}),
	)

	for _, line := range receipt.Details {
		m.AddRow(6,
			text.NewCol(4, line.Label, props.Text{Size: 8, Style: fontstyle.Italic}),
			text.NewCol(8, line.Value, props.Text{Size: 8}),
		)
	}

	m.AddRow(12,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Style: fontstyle.Bold, Size: 10, Top: 3}),
		text.NewCol(3, receipt.Amount, props.Text{Style: fontstyle.Bold, Size: 10, Top: 3, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
