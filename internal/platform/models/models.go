package models

import "encoding/json"

const (
	QuoteStatusPendingPayment   = "pending_payment"
	QuoteStatusAwaitingPayment  = "awaiting_payment"
	QuoteStatusPaymentConfirmed = "payment_confirmed"
	QuoteStatusProcessed        = "processed"
)

type TempQuote struct {
	ID                string          `json:"id"`
	ExternalReference string          `json:"external_reference"`
	Status            string          `json:"status"`
	Options           json.RawMessage `json:"options"`
	CreatedAt         int64           `json:"created_at"`
	UpdatedAt         int64           `json:"updated_at"`
}

// IsOpen reports whether the quote still waits for a payment confirmation.
func (q *TempQuote) IsOpen() bool {
	return q.Status == QuoteStatusPendingPayment || q.Status == QuoteStatusAwaitingPayment
}

type Address struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Document   string `json:"document"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

type Shipment struct {
	ID                 string  `json:"id"`
	QuoteID            string  `json:"quote_id"`
	ClientID           string  `json:"client_id"`
	Status             string  `json:"status"`
	WeightKg           float64 `json:"weight_kg"`
	LengthCm           float64 `json:"length_cm"`
	WidthCm            float64 `json:"width_cm"`
	HeightCm           float64 `json:"height_cm"`
	Format             string  `json:"format"`
	Quantity           int     `json:"quantity"`
	UnitValue          float64 `json:"unit_value"`
	TotalValue         float64 `json:"total_value"`
	DocumentType       string  `json:"document_type"`
	HasInvoice         bool    `json:"has_invoice"`
	NFeKey             string  `json:"nfe_key,omitempty"`
	SenderAddressID    string  `json:"sender_address_id"`
	RecipientAddressID string  `json:"recipient_address_id"`
	PaymentMethod      string  `json:"payment_method"`
	PaymentAmount      float64 `json:"payment_amount"`
	PaymentStatus      string  `json:"payment_status"`
	PaidAt             *int64  `json:"paid_at,omitempty"`
	TrackingCode       string  `json:"tracking_code,omitempty"`
	Carrier            string  `json:"carrier,omitempty"`
	CTeKey             string  `json:"cte_key,omitempty"`
	LabelURL           string  `json:"label_url,omitempty"`
	CreatedAt          int64   `json:"created_at"`
	UpdatedAt          int64   `json:"updated_at"`
}

// ShipmentSnapshot is a shipment joined with its address rows, the input of the outbound payload mapping.
type ShipmentSnapshot struct {
	Shipment  Shipment `json:"shipment"`
	Sender    Address  `json:"sender"`
	Recipient Address  `json:"recipient"`
}

// TrackingView is the restricted projection exposed to anonymous callers.
type TrackingView struct {
	TrackingCode     string `json:"trackingCode"`
	Status           string `json:"status"`
	StatusLabel      string `json:"statusLabel"`
	Carrier          string `json:"carrier,omitempty"`
	OriginCity       string `json:"originCity,omitempty"`
	OriginState      string `json:"originState,omitempty"`
	DestinationCity  string `json:"destinationCity,omitempty"`
	DestinationState string `json:"destinationState,omitempty"`
	CreatedAt        int64  `json:"createdAt"`
	UpdatedAt        int64  `json:"updatedAt"`
}
