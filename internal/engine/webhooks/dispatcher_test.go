package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"confix/internal/engine/shipments"
	apperrors "confix/internal/pkg/errors"
	"confix/internal/platform/config"
	"confix/internal/platform/database/dbtest"
	"confix/internal/platform/models"
	"confix/internal/platform/repositories"
	"confix/internal/platform/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db           *sql.DB
	shipments    *repositories.ShipmentRepository
	integrations *repositories.IntegrationRepository
	logs         *repositories.WebhookLogRepository
	secrets      *secrets.Store
	dispatcher   *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	store, err := secrets.NewStore(db, "dispatch-test-key")
	require.NoError(t, err)

	f := &fixture{
		db:           db,
		shipments:    repositories.NewShipmentRepository(db),
		integrations: repositories.NewIntegrationRepository(db),
		logs:         repositories.NewWebhookLogRepository(db),
		secrets:      store,
	}
	f.dispatcher = NewDispatcher(f.shipments, f.integrations, f.logs, f.secrets, config.Default().Webhooks)
	return f
}

func (f *fixture) seedShipment(t *testing.T, status string) *models.Shipment {
	t.Helper()
	ctx := context.Background()
	sender := &models.Address{Name: "Loja Azul", Document: "12345678000199", City: "São Paulo", State: "SP", PostalCode: "01001000"}
	recipient := &models.Address{Name: "Maria Souza", Document: "12345678909", City: "Curitiba", State: "PR", PostalCode: "80010000"}
	require.NoError(t, f.shipments.CreateAddress(ctx, sender))
	require.NoError(t, f.shipments.CreateAddress(ctx, recipient))

	paidAt := int64(1767225600)
	s := &models.Shipment{
		ClientID:           "cli_1",
		Status:             status,
		WeightKg:           1.5,
		LengthCm:           30,
		WidthCm:            20,
		HeightCm:           10,
		Format:             "caixa",
		Quantity:           2,
		UnitValue:          50,
		TotalValue:         100,
		DocumentType:       "declaracao",
		SenderAddressID:    sender.ID,
		RecipientAddressID: recipient.ID,
		PaymentMethod:      "PIX",
		PaymentAmount:      42.5,
		PaymentStatus:      "confirmed",
		PaidAt:             &paidAt,
	}
	require.NoError(t, f.shipments.Create(ctx, s))
	return s
}

func (f *fixture) addIntegration(t *testing.T, name, url, secret string) *models.Integration {
	t.Helper()
	i := &models.Integration{Name: name, WebhookURL: url, Active: true}
	if secret != "" {
		ref, err := f.secrets.Seal(context.Background(), secret)
		require.NoError(t, err)
		i.SecretRef = ref
	}
	require.NoError(t, f.integrations.Create(context.Background(), i))
	return i
}

func TestDispatch_OneFailingIntegrationDoesNotStopTheOther(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer failing.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"received":true}`))
	}))
	defer healthy.Close()

	f := newFixture(t)
	shipment := f.seedShipment(t, shipments.StatusPaymentConfirmed)
	f.addIntegration(t, "erp", failing.URL, "")
	f.addIntegration(t, "tms", healthy.URL, "")

	res, err := f.dispatcher.Dispatch(context.Background(), shipment.ID, EventPaymentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, 1, res.Failed)
	assert.False(t, res.Complete())
	assert.True(t, res.StatusAdvanced)
	require.Len(t, res.Deliveries, 2)
	assert.Equal(t, "erp", res.Deliveries[0].IntegrationName)
	assert.Equal(t, http.StatusInternalServerError, res.Deliveries[0].StatusCode)
	assert.True(t, res.Deliveries[1].OK)

	failed, err := f.logs.List(context.Background(), repositories.LogFilter{EventType: models.EventIntegrationFailed, ShipmentID: shipment.ID})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 500, *failed[0].ResponseStatus)
	assert.Equal(t, `{"error":"boom"}`, failed[0].ResponseBody)

	sent, err := f.logs.List(context.Background(), repositories.LogFilter{EventType: models.EventIntegrationSent, ShipmentID: shipment.ID})
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, 200, *sent[0].ResponseStatus)
	assert.Equal(t, healthy.URL, sent[0].URL)

	stored, err := f.shipments.GetByID(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, shipments.StatusAwaitingLabel, stored.Status)
}

func TestDispatch_NoIntegrationsStillAdvancesStatus(t *testing.T) {
	f := newFixture(t)
	shipment := f.seedShipment(t, shipments.StatusPaymentConfirmed)

	res, err := f.dispatcher.Dispatch(context.Background(), shipment.ID, EventPaymentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Notified)
	assert.True(t, res.Complete())
	assert.Equal(t, shipments.StatusAwaitingLabel, res.Status)

	entries, err := f.logs.List(context.Background(), repositories.LogFilter{EventType: models.EventDispatchNoReceiver})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDispatch_RepeatDoesNotMoveStatusBackward(t *testing.T) {
	f := newFixture(t)
	shipment := f.seedShipment(t, shipments.StatusLabelAvailable)

	for i := 0; i < 2; i++ {
		res, err := f.dispatcher.Dispatch(context.Background(), shipment.ID, EventStatusChanged)
		require.NoError(t, err)
		assert.False(t, res.StatusAdvanced)
		assert.Equal(t, shipments.StatusLabelAvailable, res.Status)
	}

	stored, err := f.shipments.GetByID(context.Background(), shipment.ID)
	require.NoError(t, err)
	assert.Equal(t, shipments.StatusLabelAvailable, stored.Status)
}

func TestDispatch_MissingShipment(t *testing.T) {
	f := newFixture(t)
	_, err := f.dispatcher.Dispatch(context.Background(), "shp_missing", EventPaymentConfirmed)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestDispatch_SendsHeadersAndResolvesSecret(t *testing.T) {
	var mu sync.Mutex
	var got *http.Request
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		got, gotBody = r, body
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newFixture(t)
	shipment := f.seedShipment(t, shipments.StatusPaymentConfirmed)
	f.addIntegration(t, "erp", srv.URL, "tok_live_123")

	res, err := f.dispatcher.Dispatch(context.Background(), shipment.ID, EventPaymentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, got)
	assert.Equal(t, "true", got.Header.Get("X-Admin-Notification"))
	assert.Equal(t, EventPaymentConfirmed, got.Header.Get("X-Webhook-Event"))
	assert.Equal(t, "confix", got.Header.Get("X-Webhook-Source"))
	assert.NotEmpty(t, got.Header.Get("X-Webhook-Delivery"))
	assert.Equal(t, "Bearer tok_live_123", got.Header.Get("Authorization"))
	assert.True(t, Verify("tok_live_123", gotBody, got.Header.Get("X-Webhook-Signature")))

	var payload Payload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, shipment.ID, payload.ShipmentID)
	assert.Equal(t, "Maria Souza", payload.Destinatario.Nome)
}

func TestDispatch_UnreadableSecretFailsOnlyThatIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	f := newFixture(t)
	shipment := f.seedShipment(t, shipments.StatusPaymentConfirmed)
	require.NoError(t, f.integrations.Create(context.Background(), &models.Integration{
		Name: "broken", WebhookURL: srv.URL, SecretRef: "sec_missing", Active: true,
	}))
	f.addIntegration(t, "ok", srv.URL, "")

	res, err := f.dispatcher.Dispatch(context.Background(), shipment.ID, EventPaymentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notified)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, res.Deliveries[0].Error, "resolve integration secret")
}

func TestMarkReady(t *testing.T) {
	f := newFixture(t)
	entry, err := f.dispatcher.MarkReady(context.Background(), "shp_1", EventStatusChanged)
	require.NoError(t, err)

	stored, err := f.logs.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventReadyForDispatch, stored.EventType)
	assert.Equal(t, http.StatusAccepted, *stored.ResponseStatus)

	var payload models.ReadyPayload
	require.NoError(t, json.Unmarshal(stored.RequestPayload, &payload))
	assert.Equal(t, "shp_1", payload.ShipmentID)
	assert.Equal(t, EventStatusChanged, payload.EventType)
}
