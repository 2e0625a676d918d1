package documents

import (
	"fmt"
	"strings"

	"dealership-platform/internal/crm"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

var (
	colorPrimary   = &props.Color{Red: 17, Green: 24, Blue: 39}
	colorSecondary = &props.Color{Red: 107, Green: 114, Blue: 128}
	colorAccent    = &props.Color{Red: 146, Green: 110, Blue: 40}
	colorBorder    = &props.Color{Red: 226, Green: 232, Blue: 240}
)

// InvoiceData is everything printed on an invoice.
type InvoiceData struct {
	Number      string
	IssueDate   string
	CompanyName string
	Customer    crm.Customer
	Vehicle     crm.Vehicle
	Totals      Totals
}

// Renderer turns invoice data into PDF bytes.
type Renderer interface {
	RenderInvoice(data InvoiceData) ([]byte, error)
}

type MarotoRenderer struct{}

func (MarotoRenderer) RenderInvoice(data InvoiceData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithLeftMargin(15).
		WithTopMargin(12).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	m.AddRows(invoiceHeader(data)...)
	m.AddRows(row.New(1).WithStyle(&props.Cell{BorderType: border.Bottom, BorderColor: colorBorder}))
	m.AddRows(row.New(6))
	m.AddRows(billTo(data)...)
	m.AddRows(row.New(6))
	m.AddRows(lineItems(data)...)
	m.AddRows(row.New(4))
	m.AddRows(totals(data.Totals)...)
	m.AddRows(row.New(10))
	m.AddRows(row.New(6).Add(col.New(12).Add(
		text.New("Thank you for choosing "+data.CompanyName+".", props.Text{Size: 8, Color: colorSecondary, Align: align.Center}),
	)))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func invoiceHeader(data InvoiceData) []core.Row {
	return []core.Row{
		row.New(20).Add(
			col.New(6).Add(text.New(data.CompanyName, props.Text{Size: 14, Style: fontstyle.Bold, Color: colorPrimary, Top: 4})),
			col.New(6).Add(
				text.New("TAX INVOICE", props.Text{Size: 22, Style: fontstyle.Bold, Align: align.Right, Color: colorAccent}),
				text.New(data.Number, props.Text{Size: 10, Align: align.Right, Color: colorSecondary, Top: 11}),
			),
		),
	}
}

func billTo(data InvoiceData) []core.Row {
	label := props.Text{Size: 7, Style: fontstyle.Bold, Color: colorAccent}
	value := props.Text{Size: 9, Color: colorPrimary}
	right := props.Text{Size: 8, Color: colorSecondary, Align: align.Right}

	c := data.Customer
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		name = "Valued Customer"
	}

	return []core.Row{
		row.New(5).Add(
			col.New(8).Add(text.New("BILL TO", label)),
			col.New(4).Add(text.New("Issue date: "+data.IssueDate, right)),
		),
		row.New(5).Add(col.New(12).Add(text.New(name, props.Text{Size: 9, Style: fontstyle.Bold, Color: colorPrimary}))),
		row.New(5).Add(col.New(12).Add(text.New(c.Email, value))),
		row.New(5).Add(col.New(12).Add(text.New(c.Phone, value))),
		row.New(5).Add(col.New(12).Add(text.New(c.Address, value))),
	}
}

func lineItems(data InvoiceData) []core.Row {
	head := props.Text{Size: 8, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5}
	headRight := props.Text{Size: 8, Style: fontstyle.Bold, Color: colorPrimary, Top: 1.5, Align: align.Right}
	cell := props.Text{Size: 9, Color: colorPrimary, Top: 1.5}
	cellRight := props.Text{Size: 9, Color: colorPrimary, Top: 1.5, Align: align.Right}

	v := data.Vehicle
	return []core.Row{
		row.New(7).Add(
			col.New(4).Add(text.New("Brand", head)),
			col.New(5).Add(text.New("Model", head)),
			col.New(3).Add(text.New("Amount (INR)", headRight)),
		).WithStyle(&props.Cell{BorderType: border.Bottom, BorderColor: colorBorder}),
		row.New(8).Add(
			col.New(4).Add(text.New(v.Brand, cell)),
			col.New(5).Add(text.New(v.ModelName, cell)),
			col.New(3).Add(text.New(FormatMinor(data.Totals.SubtotalMinor), cellRight)),
		),
	}
}

func totals(t Totals) []core.Row {
	label := props.Text{Size: 9, Color: colorSecondary, Align: align.Right}
	value := props.Text{Size: 9, Color: colorPrimary, Align: align.Right}
	bold := props.Text{Size: 11, Style: fontstyle.Bold, Color: colorPrimary, Align: align.Right}

	return []core.Row{
		row.New(6).Add(col.New(9).Add(text.New("Subtotal", label)), col.New(3).Add(text.New(FormatMinor(t.SubtotalMinor), value))),
		row.New(6).Add(col.New(9).Add(text.New(fmt.Sprintf("GST (%g%%)", t.GSTRatePct), label)), col.New(3).Add(text.New(FormatMinor(t.GSTMinor), value))),
		row.New(8).Add(col.New(9).Add(text.New("Total (INR)", bold)), col.New(3).Add(text.New(FormatMinor(t.TotalMinor), bold))),
	}
}
