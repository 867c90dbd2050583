// Package receipt renders payout receipts as PDF documents.
package receipt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type Line struct {
	Description string
	Qty         int
	UnitPrice   int64
	Amount      int64
}

type Data struct {
	PaymentID   string
	Contributor string
	Email       string
	Status      string
	Currency    string
	IssuedAt    string
	PaidAt      string
	Method      string
	Reference   string
	Lines       []Line
	Total       int64
}

// Render builds the receipt PDF and returns its bytes.
func Render(data Data) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Payout receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, strings.ToUpper(data.Status), props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(28,
		col.New(6).Add(
			text.New("Payment: "+data.PaymentID, props.Text{Top: 0}),
			text.New("Issued: "+data.IssuedAt, props.Text{Top: 5}),
			text.New("Paid: "+orDash(data.PaidAt), props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Paid to", props.Text{Style: fontstyle.Bold}),
			text.New(data.Contributor, props.Text{Top: 5}),
			text.New(data.Email, props.Text{Top: 10}),
		),
	)

	m.AddRow(14,
		col.New(6).Add(
			text.New("Method: "+orDash(data.Method), props.Text{Size: 9}),
			text.New("Reference: "+orDash(data.Reference), props.Text{Size: 9, Top: 5}),
		),
		col.New(6),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range data.Lines {
		m.AddRow(10,
			text.NewCol(6, line.Description, props.Text{Size: 9}),
			text.NewCol(2, strconv.Itoa(line.Qty), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, FormatAmount(line.UnitPrice, data.Currency), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, FormatAmount(line.Amount, data.Currency), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(12,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 10, Style: fontstyle.Bold, Top: 2}),
		text.NewCol(2, FormatAmount(data.Total, data.Currency), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right, Top: 2}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate receipt: %w", err)
	}
	return doc.GetBytes(), nil
}

// FormatAmount renders a whole-unit amount with its currency code.
func FormatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%s %d", strings.ToUpper(strings.TrimSpace(currency)), amount)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
