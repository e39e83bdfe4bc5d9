package processor

import (
	"encoding/json"
	"fmt"
	"html/template"
	"strings"

	"invoicepdf/internal/models"
	apperrors "invoicepdf/internal/pkg/errors"
)

// The render pipeline treats the produced HTML as opaque; this default
// document only exists so an invoice without a custom template still
// renders to something presentable.
const defaultInvoiceHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; color: #222; }
h1 { font-size: 20px; border-bottom: 2px solid #222; padding-bottom: 8px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ddd; }
td.num, th.num { text-align: right; }
tfoot td { font-weight: bold; border-top: 2px solid #222; }
.meta { color: #666; font-size: 12px; margin-top: 4px; }
</style>
</head>
<body>
<h1>Invoice {{.UUID}}</h1>
<div class="meta">Issued {{.IssuedOn}}</div>
<p>{{.Customer.Name}}{{if .Customer.Address}}<br>{{.Customer.Address}}{{end}}</p>
<table>
<thead><tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Amount</th></tr></thead>
<tbody>
{{range .Items}}<tr><td>{{.Description}}</td><td class="num">{{.Qty}}</td><td class="num">{{money .UnitPrice}}</td><td class="num">{{money .Amount}}</td></tr>
{{end}}</tbody>
<tfoot><tr><td colspan="3">Total</td><td class="num">{{money .Total}}</td></tr></tfoot>
</table>
</body>
</html>`

var invoiceTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(defaultInvoiceHTML))

type invoiceItemView struct {
	Description string
	Qty         int
	UnitPrice   float64
	Amount      float64
}

type invoiceView struct {
	UUID     string
	IssuedOn string
	Customer models.Customer
	Items    []invoiceItemView
	Metadata map[string]any
	Total    float64
}

// buildInvoiceHTML decodes the stored invoice payload and renders the
// document body. An undecodable payload is a terminal failure: no retry
// will ever make the stored bytes valid.
func buildInvoiceHTML(inv *models.Invoice) (string, error) {
	var data models.InvoiceData
	if err := json.Unmarshal([]byte(inv.DataJSON), &data); err != nil {
		return "", apperrors.WrapWithCode(err, apperrors.CodeInvalidContent, "processor.html", "invoice payload is not valid json")
	}

	view := invoiceView{
		UUID:     inv.UUID,
		IssuedOn: inv.CreatedAt.UTC().Format("2006-01-02"),
		Customer: data.Customer,
		Metadata: data.Metadata,
		Total:    data.Total(),
	}
	for _, it := range data.Items {
		view.Items = append(view.Items, invoiceItemView{
			Description: it.Description,
			Qty:         it.Qty,
			UnitPrice:   it.UnitPrice,
			Amount:      float64(it.Qty) * it.UnitPrice,
		})
	}

	var b strings.Builder
	if err := invoiceTmpl.Execute(&b, view); err != nil {
		return "", apperrors.WrapWithCode(err, apperrors.CodeInvalidContent, "processor.html", "invoice template execution failed")
	}
	return b.String(), nil
}
