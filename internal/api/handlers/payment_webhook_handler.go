package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"confix/internal/engine/payments"
	"confix/internal/pkg/errors"

	"github.com/rs/zerolog/log"
)

// Provider callbacks are small; anything larger is not a payment event.
const maxWebhookBody = 1 << 20

const providerTokenHeader = "asaas-access-token"

type PaymentReceiver interface {
	VerifyToken(token string) bool
	Handle(ctx context.Context, body []byte) (*payments.Result, error)
}

type PaymentWebhookHandler struct {
	receiver PaymentReceiver
}

func NewPaymentWebhookHandler(receiver PaymentReceiver) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{receiver: receiver}
}

func (h *PaymentWebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if !h.receiver.VerifyToken(r.Header.Get(providerTokenHeader)) {
		log.Warn().Str("ip", clientIP(r)).Msg("payment webhook with invalid access token")
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid access token", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	result, err := h.receiver.Handle(r.Context(), body)
	if err != nil {
		logBoundaryError(r, err, "payment webhook rejected")
		errors.WriteFrom(w, err)
		return
	}

	response := map[string]interface{}{
		"success": true,
		"event":   result.Event,
	}
	switch result.Outcome {
	case payments.OutcomeIgnored:
		response["ignored"] = true
		response["message"] = "Event ignored"
	case payments.OutcomeAlreadyProcessed:
		response["alreadyProcessed"] = true
		response["quoteId"] = result.QuoteID
		response["message"] = "Payment already processed"
	default:
		response["quoteId"] = result.QuoteID
		response["message"] = "Payment confirmed"
	}
	errors.WriteJSON(w, http.StatusOK, response)
}

// Probe answers GET on the webhook path so the provider can check reachability.
func (h *PaymentWebhookHandler) Probe(w http.ResponseWriter, r *http.Request) {
	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "Payment webhook endpoint is active",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
