package handlers

import (
	"context"
	"net/http"
	"strconv"

	"confix/internal/pkg/errors"
	"confix/internal/platform/models"
	"confix/internal/platform/repositories"
)

type LogReader interface {
	List(ctx context.Context, f repositories.LogFilter) ([]*models.WebhookLogEntry, error)
	GetByID(ctx context.Context, id string) (*models.WebhookLogEntry, error)
}

type WebhookLogHandler struct {
	logs LogReader
}

func NewWebhookLogHandler(logs LogReader) *WebhookLogHandler {
	return &WebhookLogHandler{logs: logs}
}

func (h *WebhookLogHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repositories.LogFilter{
		EventType:  q.Get("event_type"),
		ShipmentID: q.Get("shipment_id"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		filter.Limit = limit
	}

	entries, err := h.logs.List(r.Context(), filter)
	if err != nil {
		logBoundaryError(r, errors.Internal("list webhook logs", err), "webhook logs not listed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
		return
	}
	if entries == nil {
		entries = []*models.WebhookLogEntry{}
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"logs":    entries,
	})
}

func (h *WebhookLogHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.logs.GetByID(r.Context(), param(r, "log_id"))
	if err != nil {
		logBoundaryError(r, errors.Internal("get webhook log", err), "webhook log not loaded")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
		return
	}
	if entry == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Webhook log not found", nil)
		return
	}
	errors.WriteJSON(w, http.StatusOK, entry)
}
