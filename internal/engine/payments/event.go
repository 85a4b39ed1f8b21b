package payments

import (
	"bytes"
	"encoding/json"
	"strings"

	apperrors "confix/internal/pkg/errors"
)

// Provider event names that mean money has arrived.
const (
	EventPaymentReceived       = "PAYMENT_RECEIVED"
	EventPaymentConfirmed      = "PAYMENT_CONFIRMED"
	EventPaymentReceivedInCash = "PAYMENT_RECEIVED_IN_CASH"
)

// Event is either a ConfirmedEvent or an IgnoredEvent.
type Event interface {
	Name() string
}

type Payment struct {
	ID                string  `json:"id"`
	Value             float64 `json:"value"`
	BillingType       string  `json:"billingType"`
	ExternalReference string  `json:"externalReference"`
}

type ConfirmedEvent struct {
	Event   string
	Payment Payment
	// Raw is the compacted body, kept for the webhook log.
	Raw json.RawMessage
}

func (e ConfirmedEvent) Name() string { return e.Event }

type IgnoredEvent struct {
	Event string
}

func (e IgnoredEvent) Name() string { return e.Event }

type envelope struct {
	Event   string          `json:"event"`
	Payment json.RawMessage `json:"payment"`
}

type paymentFields struct {
	ID                *string  `json:"id"`
	Value             *float64 `json:"value"`
	BillingType       string   `json:"billingType"`
	ExternalReference *string  `json:"externalReference"`
}

func isConfirmation(event string) bool {
	switch event {
	case EventPaymentReceived, EventPaymentConfirmed, EventPaymentReceivedInCash:
		return true
	}
	return false
}

// ParseEvent validates a provider callback body. Only confirmation events are checked field by field;
// anything else comes back as an IgnoredEvent.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperrors.Validation("invalid JSON body")
	}
	env.Event = strings.TrimSpace(env.Event)
	if env.Event == "" {
		return nil, apperrors.Validation("event is required")
	}
	if !isConfirmation(env.Event) {
		return IgnoredEvent{Event: env.Event}, nil
	}

	if len(env.Payment) == 0 || string(env.Payment) == "null" {
		return nil, apperrors.Validation("payment is required")
	}
	var fields paymentFields
	if err := json.Unmarshal(env.Payment, &fields); err != nil {
		return nil, apperrors.Validation("payment must be an object")
	}
	if fields.ID == nil || strings.TrimSpace(*fields.ID) == "" {
		return nil, apperrors.Validation("payment.id is required")
	}
	if fields.ExternalReference == nil || strings.TrimSpace(*fields.ExternalReference) == "" {
		return nil, apperrors.Validation("payment.externalReference is required")
	}
	if fields.Value == nil || *fields.Value < 0 {
		return nil, apperrors.Validation("payment.value must be a non-negative number")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, apperrors.Validation("invalid JSON body")
	}

	return ConfirmedEvent{
		Event: env.Event,
		Payment: Payment{
			ID:                strings.TrimSpace(*fields.ID),
			Value:             *fields.Value,
			BillingType:       strings.TrimSpace(fields.BillingType),
			ExternalReference: strings.TrimSpace(*fields.ExternalReference),
		},
		Raw: compact.Bytes(),
	}, nil
}
