package models

import "encoding/json"

const (
	EventPaymentReceived    = "payment_webhook_received"
	EventPaymentDuplicate   = "payment_webhook_duplicate"
	EventIntegrationSent    = "integration_webhook_sent"
	EventIntegrationFailed  = "integration_webhook_failed"
	EventReadyForDispatch   = "webhook_ready_for_dispatch"
	EventCarrierCallback    = "carrier_callback"
	EventTrackingLookup     = "tracking_lookup"
	EventDispatchNoReceiver = "dispatch_no_integrations"
)

// Integration is a registered endpoint. SecretRef points at an encrypted row, never at plaintext.
type Integration struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	WebhookURL string `json:"webhook_url"`
	SecretRef  string `json:"-"`
	HasSecret  bool   `json:"has_secret"`
	Active     bool   `json:"active"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

type WebhookLogEntry struct {
	ID                  string          `json:"id"`
	EventType           string          `json:"event_type"`
	ShipmentID          string          `json:"shipment_id,omitempty"`
	QuoteID             string          `json:"quote_id,omitempty"`
	IntegrationID       string          `json:"integration_id,omitempty"`
	IntegrationName     string          `json:"integration_name,omitempty"`
	URL                 string          `json:"url,omitempty"`
	RequestPayload      json.RawMessage `json:"request_payload,omitempty"`
	ResponseStatus      *int            `json:"response_status,omitempty"`
	ResponseBody        string          `json:"response_body,omitempty"`
	IPAddress           string          `json:"ip_address,omitempty"`
	Attempts            int             `json:"attempts"`
	NextAttemptAt       *int64          `json:"next_attempt_at,omitempty"`
	AutoDispatchSuccess *bool           `json:"auto_dispatch_success,omitempty"`
	AutoDispatchAt      *int64          `json:"auto_dispatch_at,omitempty"`
	AutoDispatchError   string          `json:"auto_dispatch_error,omitempty"`
	AttemptHistory      []AttemptRecord `json:"attempt_history"`
	CreatedAt           int64           `json:"created_at"`
	UpdatedAt           int64           `json:"updated_at"`
}

// AttemptRecord is appended to a ready-for-dispatch entry on every worker pass.
type AttemptRecord struct {
	Attempt  int    `json:"attempt"`
	At       int64  `json:"at"`
	Success  bool   `json:"success"`
	Notified int    `json:"notified"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// ReadyPayload is the request_payload of a ready-for-dispatch entry.
type ReadyPayload struct {
	ShipmentID string `json:"shipmentId"`
	EventType  string `json:"eventType"`
}
