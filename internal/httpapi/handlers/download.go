package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"invoicepdf/internal/httpkit"
	"invoicepdf/internal/models"
	"invoicepdf/internal/repositories"
	"invoicepdf/internal/tokens"
)

const downloadTTL = 10 * time.Minute

// IssueDownload hands out a single-use signed link for a finished
// invoice. Only the done status qualifies; everything else is a conflict
// the caller can resolve by polling.
func (h *Handler) IssueDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID := chi.URLParam(r, "invoiceId")

	inv, err := h.invoices.Get(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) {
			httpkit.WriteErr(w, 404, "INVOICE_NOT_FOUND", "invoice not found", map[string]any{"invoice_id": invoiceID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}
	if inv.Status != models.StatusDone || inv.PDFPath == "" {
		httpkit.WriteErr(w, 409, "PDF_NOT_READY", "invoice pdf is not generated yet", map[string]any{"status": inv.Status})
		return
	}

	token, err := h.tokens.Issue(ctx, inv.PDFPath, downloadTTL)
	if err != nil {
		h.log.FromContext(ctx).Error("token issue failed", "error", err.Error())
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "could not issue download token", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{
		"download_url": "/download/" + token,
		"expires_in":   int(downloadTTL.Seconds()),
	})
}

// RedeemDownload resolves a token and streams the file. Unknown, expired
// and already-used tokens all produce the same 404 so the response leaks
// nothing about token validity.
func (h *Handler) RedeemDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := chi.URLParam(r, "token")

	objectKey, err := h.tokens.Resolve(ctx, token)
	if err != nil {
		if !errors.Is(err, tokens.ErrNotFound) {
			h.log.FromContext(ctx).Error("token resolve failed", "error", err.Error())
		}
		httpkit.WriteErr(w, 404, "NOT_FOUND", "invalid or expired token", nil)
		return
	}

	rc, _, size, err := h.sp.GetObject(ctx, objectKey)
	if err != nil {
		// The token was real but the file is gone; burning the token is
		// correct, re-issuing is the caller's move.
		h.log.FromContext(ctx).Error("download object missing", "object_key", objectKey, "error", err.Error())
		httpkit.WriteErr(w, 404, "NOT_FOUND", "invalid or expired token", nil)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(objectKey)+`"`)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}
