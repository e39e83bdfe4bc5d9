package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"invoicepdf/internal/httpapi/util"
	"invoicepdf/internal/httpkit"
	"invoicepdf/internal/models"
	"invoicepdf/internal/repositories"
)

type CreateInvoiceRequest struct {
	TemplateID *string          `json:"template_id,omitempty"`
	Customer   models.Customer  `json:"customer"`
	Items      []models.LineItem `json:"items"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// PostInvoice creates the invoice record with status queued and enqueues
// its id for the render worker. The record insert comes first: a consumer
// popping the id must always find the row.
func (h *Handler) PostInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.log.FromContext(ctx)

	var req CreateInvoiceRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "customer.name is required", map[string]any{"field": "customer.name"})
		return
	}
	if len(req.Items) == 0 {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "at least one item is required", map[string]any{"field": "items"})
		return
	}

	dataBytes, _ := json.Marshal(models.InvoiceData{
		Customer: req.Customer,
		Items:    req.Items,
		Metadata: req.Metadata,
	})

	inv := &models.Invoice{
		ID:         util.NewID("inv"),
		UUID:       uuid.NewString(),
		Status:     models.StatusQueued,
		DataJSON:   string(dataBytes),
		TemplateID: req.TemplateID,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.invoices.Create(ctx, inv); err != nil {
		log.Error("invoice insert failed", "error", err.Error())
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db insert failed", nil)
		return
	}

	if err := h.queue.Push(ctx, inv.ID); err != nil {
		log.Error("job enqueue failed", "error", err.Error(), "invoice_id", inv.ID)
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "queue push failed", nil)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{
		"id":     inv.ID,
		"uuid":   inv.UUID,
		"status": inv.Status,
	})
}

// GetInvoice is the status query: status, attempt_count and, depending on
// the terminal state, pdf availability or the error detail.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID := chi.URLParam(r, "invoiceId")

	inv, err := h.invoices.Get(ctx, invoiceID)
	if err != nil {
		if err == repositories.ErrInvoiceNotFound {
			httpkit.WriteErr(w, 404, "INVOICE_NOT_FOUND", "invoice not found", map[string]any{"invoice_id": invoiceID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	body := map[string]any{
		"id":            inv.ID,
		"uuid":          inv.UUID,
		"status":        inv.Status,
		"attempt_count": inv.AttemptCount,
		"created_at":    inv.CreatedAt,
		"started_at":    inv.StartedAt,
		"finished_at":   inv.FinishedAt,
		"pdf_ready":     inv.Status == models.StatusDone,
	}
	if inv.ErrorDetail != "" {
		body["error_detail"] = inv.ErrorDetail
	}

	httpkit.WriteJSON(w, 200, map[string]any{"invoice": body})
}

func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := models.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	invoices, err := h.invoices.List(ctx, status, limit)
	if err != nil {
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"invoices": invoices})
}
