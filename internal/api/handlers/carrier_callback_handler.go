package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"confix/internal/engine/shipments"
	"confix/internal/engine/webhooks"
	"confix/internal/pkg/errors"
	"confix/internal/platform/audit"
	"confix/internal/platform/models"

	"github.com/rs/zerolog/log"
)

type CarrierUpdater interface {
	ApplyCarrierUpdate(ctx context.Context, req shipments.CarrierUpdate) (*shipments.CarrierResult, error)
}

type DispatchQueue interface {
	MarkReady(ctx context.Context, shipmentID, eventType string) (*models.WebhookLogEntry, error)
}

type Auditor interface {
	Record(ctx context.Context, e audit.Entry)
}

type CarrierCallbackHandler struct {
	shipments CarrierUpdater
	queue     DispatchQueue
	audit     Auditor
}

func NewCarrierCallbackHandler(updater CarrierUpdater, queue DispatchQueue, auditor Auditor) *CarrierCallbackHandler {
	return &CarrierCallbackHandler{shipments: updater, queue: queue, audit: auditor}
}

func (h *CarrierCallbackHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req shipments.CarrierUpdate
	status := http.StatusOK
	var result *shipments.CarrierResult

	defer func() {
		shipmentID := req.ShipmentID
		if result != nil {
			shipmentID = result.ShipmentID
		}
		details := map[string]interface{}{
			"shipmentId":   req.ShipmentID,
			"trackingCode": req.TrackingCode,
			"cteKey":       req.CTeKey,
			"labelPdfUrl":  req.LabelPDFURL,
			"status":       req.Status,
		}
		if result != nil {
			details["previousStatus"] = result.PreviousStatus
			details["statusChanged"] = result.StatusChanged
		}
		h.audit.Record(r.Context(), audit.Entry{
			Event:      models.EventCarrierCallback,
			ShipmentID: shipmentID,
			IP:         clientIP(r),
			UserAgent:  r.UserAgent(),
			Status:     status,
			Details:    details,
		})
	}()

	if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&req); err != nil {
		status = http.StatusBadRequest
		errors.WriteError(w, status, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := h.shipments.ApplyCarrierUpdate(r.Context(), req)
	if err != nil {
		status = errors.StatusOf(err)
		logBoundaryError(r, err, "carrier callback failed")
		errors.WriteFrom(w, err)
		return
	}

	if result.StatusChanged {
		// the status write is already committed; a failed enqueue is recovered by the next admin dispatch
		if _, err := h.queue.MarkReady(r.Context(), result.ShipmentID, webhooks.EventStatusChanged); err != nil {
			log.Error().Err(err).Str("shipment_id", result.ShipmentID).Msg("failed to queue status change dispatch")
		}
	}

	log.Info().
		Str("shipment_id", result.ShipmentID).
		Str("from", result.PreviousStatus).
		Str("to", result.Status).
		Msg("carrier update applied")

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"shipmentId": result.ShipmentID,
		"status":     result.Status,
	})
}
