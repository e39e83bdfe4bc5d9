package models

import "time"

// Status is the lifecycle state of an invoice's render job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Invoice is the durable record for one invoice and its render job.
// The job is 1:1 with the invoice row: status, attempt_count, pdf_path
// and error_detail all live here.
type Invoice struct {
	ID           string     `json:"id"`
	UUID         string     `json:"uuid"`
	Status       Status     `json:"status"`
	DataJSON     string     `json:"-"`
	PDFPath      string     `json:"pdf_path,omitempty"`
	ErrorDetail  string     `json:"error_detail,omitempty"`
	AttemptCount int        `json:"attempt_count"`
	TemplateID   *string    `json:"template_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Terminal reports whether the job can never run again: done, or failed
// with the error detail recorded after the retry budget ran out.
func (i *Invoice) Terminal() bool {
	if i.Status == StatusDone {
		return true
	}
	return i.Status == StatusFailed && i.ErrorDetail != ""
}

// InvoiceData is the decoded shape of Invoice.DataJSON.
type InvoiceData struct {
	Customer Customer       `json:"customer"`
	Items    []LineItem     `json:"items"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Customer struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type LineItem struct {
	Description string  `json:"description"`
	Qty         int     `json:"qty"`
	UnitPrice   float64 `json:"unit_price"`
}

// Total returns the invoice total across all line items.
func (d InvoiceData) Total() float64 {
	var sum float64
	for _, it := range d.Items {
		sum += float64(it.Qty) * it.UnitPrice
	}
	return sum
}
