package webhooks

import (
	"bytes"
	"testing"

	"confix/internal/platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFixture() *models.ShipmentSnapshot {
	paidAt := int64(1767225600)
	return &models.ShipmentSnapshot{
		Shipment: models.Shipment{
			ID:            "shp_1",
			ClientID:      "cli_9",
			Status:        "PAYMENT_CONFIRMED",
			WeightKg:      2.25,
			LengthCm:      40,
			WidthCm:       30,
			HeightCm:      15,
			Format:        "caixa",
			Quantity:      3,
			UnitValue:     19.9,
			TotalValue:    59.7,
			DocumentType:  "nfe",
			HasInvoice:    true,
			NFeKey:        "35240112345678000199550010000000011000000010",
			PaymentMethod: "PIX",
			PaymentAmount: 42.5,
			PaymentStatus: "confirmed",
			PaidAt:        &paidAt,
		},
		Sender: models.Address{
			Name: "Loja Azul", Document: "12345678000199", Phone: "1133334444", Email: "loja@example.com",
			Street: "Rua A", Number: "10", District: "Centro", City: "São Paulo", State: "SP", PostalCode: "01001000",
		},
		Recipient: models.Address{
			Name: "Maria Souza", Document: "12345678909", Street: "Rua B", Number: "200", Complement: "ap 3",
			District: "Batel", City: "Curitiba", State: "PR", PostalCode: "80010000",
		},
	}
}

func TestBuildPayload_MapsFields(t *testing.T) {
	p := BuildPayload(snapshotFixture(), EventPaymentConfirmed)

	assert.Equal(t, EventPaymentConfirmed, p.EventType)
	assert.Equal(t, "shp_1", p.ShipmentID)
	assert.Equal(t, "cli_9", p.ClienteID)
	assert.Equal(t, "Loja Azul", p.Remetente.Nome)
	assert.Equal(t, "01001000", p.Remetente.Endereco.CEP)
	assert.Equal(t, "ap 3", p.Destinatario.Endereco.Complemento)
	assert.Equal(t, 2.25, p.Pacote.PesoKg)
	assert.Equal(t, 3, p.Mercadoria.Quantidade)
	assert.True(t, p.Mercadoria.DocumentoFiscal.TemNotaFiscal)
	require.NotNil(t, p.Mercadoria.DocumentoFiscal.ChaveNFe)
	assert.Equal(t, "35240112345678000199550010000000011000000010", *p.Mercadoria.DocumentoFiscal.ChaveNFe)
	assert.Equal(t, "PIX", p.Pagamento.Metodo)
	require.NotNil(t, p.Pagamento.DataPagamento)
	assert.Equal(t, "2026-01-01T00:00:00Z", *p.Pagamento.DataPagamento)
}

func TestBuildPayload_OptionalFieldsAreNull(t *testing.T) {
	snap := snapshotFixture()
	snap.Shipment.NFeKey = ""
	snap.Shipment.PaidAt = nil

	body, err := Marshal(BuildPayload(snap, EventPaymentConfirmed))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"chaveNfe":null`)
	assert.Contains(t, string(body), `"dataPagamento":null`)
}

func TestMarshal_IsReproducible(t *testing.T) {
	first, err := Marshal(BuildPayload(snapshotFixture(), EventPaymentConfirmed))
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := Marshal(BuildPayload(snapshotFixture(), EventPaymentConfirmed))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(first, again))
	}
}
