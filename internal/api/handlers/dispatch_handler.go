package handlers

import (
	"context"
	"net/http"

	"confix/internal/engine/webhooks"
	"confix/internal/pkg/errors"
	"confix/internal/platform/models"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, shipmentID, eventType string) (*webhooks.Result, error)
	MarkReady(ctx context.Context, shipmentID, eventType string) (*models.WebhookLogEntry, error)
}

type DispatchHandler struct {
	dispatcher Dispatcher
}

func NewDispatchHandler(dispatcher Dispatcher) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher}
}

// Dispatch notifies every active integration about a paid shipment. With ?mode=queue the call only
// enqueues the dispatch for the retry worker.
func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	shipmentID := param(r, "shipment_id")
	eventType := r.URL.Query().Get("event")
	if eventType == "" {
		eventType = webhooks.EventPaymentConfirmed
	}
	if eventType != webhooks.EventPaymentConfirmed && eventType != webhooks.EventStatusChanged {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown event type", nil)
		return
	}

	if r.URL.Query().Get("mode") == "queue" {
		entry, err := h.dispatcher.MarkReady(r.Context(), shipmentID, eventType)
		if err != nil {
			logBoundaryError(r, err, "queue dispatch failed")
			errors.WriteFrom(w, err)
			return
		}
		errors.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
			"success":    true,
			"queued":     true,
			"shipmentId": shipmentID,
			"logId":      entry.ID,
		})
		return
	}

	result, err := h.dispatcher.Dispatch(r.Context(), shipmentID, eventType)
	if err != nil {
		logBoundaryError(r, err, "dispatch failed")
		errors.WriteFrom(w, err)
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":               true,
		"shipmentId":            result.ShipmentID,
		"status":                result.Status,
		"status_advanced":       result.StatusAdvanced,
		"integrations_notified": result.Notified,
		"integrations_failed":   result.Failed,
		"deliveries":            result.Deliveries,
	})
}
