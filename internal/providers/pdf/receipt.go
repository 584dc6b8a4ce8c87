package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// ReceiptData is the pre-formatted content of a subscription purchase receipt.
type ReceiptData struct {
	ReceiptNumber   string
	IssuedAt        string
	AccountEmail    string
	ServiceName     string
	PlanName        string
	Members         int
	DurationMonths  int
	Status          string
	BasePrice       string
	GSTAmount       string
	GSTRate         string
	TotalPrice      string
	MonthlyCost     string
	NextBillingDate string
	FreeTrial       bool
}

func (p *MarotoRenderer) RenderReceipt(ctx context.Context, data ReceiptData) ([]byte, error) {
	if strings.TrimSpace(data.ReceiptNumber) == "" {
		return nil, fmt.Errorf("receipt number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(8, "Subscription receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, data.Status, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
			Top:   4,
		}),
	)

	m.AddRow(22,
		col.New(6).Add(
			text.New("Receipt number: "+data.ReceiptNumber, props.Text{Top: 0}),
			text.New("Issued: "+data.IssuedAt, props.Text{Top: 5}),
			text.New("Next billing date: "+data.NextBillingDate, props.Text{Top: 10}),
		),
		col.New(6).Add(
			text.New("Billed account", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(data.AccountEmail, props.Text{Top: 5, Align: align.Right}),
		),
	)

	m.AddRow(4, line.NewCol(12))

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Members", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Months", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	description := fmt.Sprintf("%s - %s", data.ServiceName, data.PlanName)
	if data.FreeTrial {
		description += " (free trial)"
	}
	m.AddRow(12,
		text.NewCol(6, description, props.Text{Size: 9}),
		text.NewCol(2, fmt.Sprintf("%d", data.Members), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, fmt.Sprintf("%d", data.DurationMonths), props.Text{Size: 9, Align: align.Right}),
		text.NewCol(2, data.BasePrice, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Subtotal", props.Text{Size: 9}),
		text.NewCol(2, data.BasePrice, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "GST "+data.GSTRate, props.Text{Size: 9}),
		text.NewCol(2, data.GSTAmount, props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9, Style: fontstyle.Bold}),
		text.NewCol(2, data.TotalPrice, props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
	)

	m.AddRow(15,
		text.NewCol(12, "Renews monthly at "+data.MonthlyCost+" from your wallet balance.", props.Text{
			Size: 9,
			Top:  6,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
