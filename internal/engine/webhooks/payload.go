package webhooks

import (
	"encoding/json"
	"time"

	"confix/internal/platform/models"
)

// Event types carried in the outbound payload.
const (
	EventPaymentConfirmed = "shipment.payment_confirmed"
	EventStatusChanged    = "shipment.status_changed"
)

// Payload is the contract integrations receive. Field names follow the integrators' Portuguese schema.
type Payload struct {
	EventType    string     `json:"event_type"`
	ShipmentID   string     `json:"shipmentId"`
	ClienteID    string     `json:"clienteId"`
	Status       string     `json:"status"`
	Remetente    Party      `json:"remetente"`
	Destinatario Party      `json:"destinatario"`
	Pacote       Package    `json:"pacote"`
	Mercadoria   Goods      `json:"mercadoria"`
	Pagamento    Settlement `json:"pagamento"`
}

type Party struct {
	Nome      string  `json:"nome"`
	Documento string  `json:"documento"`
	Telefone  string  `json:"telefone"`
	Email     string  `json:"email"`
	Endereco  Address `json:"endereco"`
}

type Address struct {
	Logradouro  string `json:"logradouro"`
	Numero      string `json:"numero"`
	Complemento string `json:"complemento"`
	Bairro      string `json:"bairro"`
	Cidade      string `json:"cidade"`
	Estado      string `json:"estado"`
	CEP         string `json:"cep"`
}

type Package struct {
	PesoKg        float64 `json:"pesoKg"`
	ComprimentoCm float64 `json:"comprimentoCm"`
	LarguraCm     float64 `json:"larguraCm"`
	AlturaCm      float64 `json:"alturaCm"`
	Formato       string  `json:"formato"`
}

type Goods struct {
	Quantidade      int            `json:"quantidade"`
	ValorUnitario   float64        `json:"valorUnitario"`
	ValorTotal      float64        `json:"valorTotal"`
	DocumentoFiscal FiscalDocument `json:"documentoFiscal"`
}

type FiscalDocument struct {
	Tipo          string  `json:"tipo"`
	TemNotaFiscal bool    `json:"temNotaFiscal"`
	ChaveNFe      *string `json:"chaveNfe"`
}

type Settlement struct {
	Metodo        string  `json:"metodo"`
	Valor         float64 `json:"valor"`
	Status        string  `json:"status"`
	DataPagamento *string `json:"dataPagamento"`
}

// BuildPayload maps a shipment snapshot to the outbound contract. It reads nothing but its arguments.
func BuildPayload(snap *models.ShipmentSnapshot, eventType string) Payload {
	s := snap.Shipment

	var nfe *string
	if s.NFeKey != "" {
		key := s.NFeKey
		nfe = &key
	}
	var paidAt *string
	if s.PaidAt != nil {
		at := time.Unix(*s.PaidAt, 0).UTC().Format(time.RFC3339)
		paidAt = &at
	}

	return Payload{
		EventType:    eventType,
		ShipmentID:   s.ID,
		ClienteID:    s.ClientID,
		Status:       s.Status,
		Remetente:    toParty(snap.Sender),
		Destinatario: toParty(snap.Recipient),
		Pacote: Package{
			PesoKg:        s.WeightKg,
			ComprimentoCm: s.LengthCm,
			LarguraCm:     s.WidthCm,
			AlturaCm:      s.HeightCm,
			Formato:       s.Format,
		},
		Mercadoria: Goods{
			Quantidade:    s.Quantity,
			ValorUnitario: s.UnitValue,
			ValorTotal:    s.TotalValue,
			DocumentoFiscal: FiscalDocument{
				Tipo:          s.DocumentType,
				TemNotaFiscal: s.HasInvoice,
				ChaveNFe:      nfe,
			},
		},
		Pagamento: Settlement{
			Metodo:        s.PaymentMethod,
			Valor:         s.PaymentAmount,
			Status:        s.PaymentStatus,
			DataPagamento: paidAt,
		},
	}
}

func toParty(a models.Address) Party {
	return Party{
		Nome:      a.Name,
		Documento: a.Document,
		Telefone:  a.Phone,
		Email:     a.Email,
		Endereco: Address{
			Logradouro:  a.Street,
			Numero:      a.Number,
			Complemento: a.Complement,
			Bairro:      a.District,
			Cidade:      a.City,
			Estado:      a.State,
			CEP:         a.PostalCode,
		},
	}
}

// Marshal encodes p. Struct fields are emitted in declaration order, so equal payloads give equal bytes.
func Marshal(p Payload) ([]byte, error) {
	return json.Marshal(p)
}
