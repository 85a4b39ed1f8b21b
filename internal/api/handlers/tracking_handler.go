package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"confix/internal/engine/tracking"
	"confix/internal/pkg/errors"
	"confix/internal/platform/models"
)

const maxTrackingBody = 4 << 10

type TrackingGateway interface {
	Lookup(ctx context.Context, req tracking.Request) (*models.TrackingView, error)
}

type TrackingHandler struct {
	gateway TrackingGateway
}

func NewTrackingHandler(gateway TrackingGateway) *TrackingHandler {
	return &TrackingHandler{gateway: gateway}
}

// unavailable is the error body of every failed lookup.
type unavailable struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *TrackingHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrackingCode json.RawMessage `json:"trackingCode"`
	}
	// A body that does not decode leaves TrackingCode empty; the gateway rejects and audits it.
	_ = json.NewDecoder(io.LimitReader(r.Body, maxTrackingBody)).Decode(&body)

	view, err := h.gateway.Lookup(r.Context(), tracking.Request{
		Code:      body.TrackingCode,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		status := errors.StatusOf(err)
		if status >= http.StatusInternalServerError {
			logBoundaryError(r, err, "tracking lookup failed")
		}
		// anonymous callers only ever see a message; misses and blocks differ by status alone
		errors.WriteJSON(w, status, unavailable{Success: false, Error: errors.MessageOf(err)})
		return
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    view,
		"security": map[string]interface{}{
			"dataProtected": true,
		},
	})
}
