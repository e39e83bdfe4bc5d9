package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"invoicepdf/internal/httpapi/util"
	"invoicepdf/internal/httpkit"
	"invoicepdf/internal/models"
	"invoicepdf/internal/repositories"
)

type CreateTemplateRequest struct {
	Name string `json:"name"`
	HTML string `json:"html"`
	CSS  string `json:"css,omitempty"`
}

func (h *Handler) PostTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTemplateRequest
	if err := httpkit.DecodeJSON(r, &req); err != nil {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "invalid json body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "name is required", map[string]any{"field": "name"})
		return
	}
	if strings.TrimSpace(req.HTML) == "" {
		httpkit.WriteErr(w, 400, "VALIDATION_ERROR", "html is required", map[string]any{"field": "html"})
		return
	}

	tpl := &models.Template{
		ID:        util.NewID("tpl"),
		Name:      req.Name,
		HTML:      req.HTML,
		CSS:       req.CSS,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.templates.Create(ctx, tpl); err != nil {
		if errors.Is(err, repositories.ErrTemplateNameExists) {
			httpkit.WriteErr(w, 409, "TEMPLATE_NAME_EXISTS", "template name already exists", map[string]any{"field": "name"})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db insert failed", nil)
		return
	}

	httpkit.WriteJSON(w, 201, map[string]any{"template": tpl})
}

func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	templates, err := h.templates.List(ctx)
	if err != nil {
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db query failed", nil)
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"templates": templates})
}

func (h *Handler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := chi.URLParam(r, "templateId")

	tpl, err := h.templates.Get(ctx, templateID)
	if err != nil {
		httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
		return
	}

	httpkit.WriteJSON(w, 200, map[string]any{"template": tpl})
}

func (h *Handler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templateID := chi.URLParam(r, "templateId")

	if err := h.templates.Delete(ctx, templateID); err != nil {
		if errors.Is(err, repositories.ErrTemplateNotFound) {
			httpkit.WriteErr(w, 404, "TEMPLATE_NOT_FOUND", "template not found", map[string]any{"template_id": templateID})
			return
		}
		httpkit.WriteErr(w, 500, "INTERNAL_ERROR", "db delete failed", nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
