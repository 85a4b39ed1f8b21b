package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"confix/internal/engine/shipments"
	"confix/internal/engine/webhooks"
	apperrors "confix/internal/pkg/errors"
	"confix/internal/platform/audit"
	"confix/internal/platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	result *shipments.CarrierResult
	err    error
	got    shipments.CarrierUpdate
}

func (f *fakeUpdater) ApplyCarrierUpdate(ctx context.Context, req shipments.CarrierUpdate) (*shipments.CarrierResult, error) {
	f.got = req
	return f.result, f.err
}

type recordingAuditor struct {
	entries []audit.Entry
}

func (a *recordingAuditor) Record(ctx context.Context, e audit.Entry) {
	a.entries = append(a.entries, e)
}

func callCarrier(h *CarrierCallbackHandler, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carrier/callback", strings.NewReader(body))
	req.Header.Set("User-Agent", "tms-client/2.1")
	rr := httptest.NewRecorder()
	h.Receive(rr, req)
	var decoded map[string]interface{}
	_ = json.Unmarshal(rr.Body.Bytes(), &decoded)
	return rr, decoded
}

func TestCarrierCallback_StatusChangeQueuesDispatch(t *testing.T) {
	updater := &fakeUpdater{result: &shipments.CarrierResult{
		ShipmentID: "shp_1", Status: shipments.StatusLabelAvailable,
		PreviousStatus: shipments.StatusAwaitingLabel, StatusChanged: true,
	}}
	queue := &fakeDispatcher{}
	auditor := &recordingAuditor{}
	h := NewCarrierCallbackHandler(updater, queue, auditor)

	rr, body := callCarrier(h, `{"trackingCode":"CFX123456BR","cteKey":"3524","labelPdfUrl":"https://cdn.example.com/l.pdf"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "shp_1", body["shipmentId"])
	assert.Equal(t, shipments.StatusLabelAvailable, body["status"])

	assert.Equal(t, "CFX123456BR", updater.got.TrackingCode)
	assert.Equal(t, []string{"shp_1:" + webhooks.EventStatusChanged}, queue.queued)

	require.Len(t, auditor.entries, 1)
	entry := auditor.entries[0]
	assert.Equal(t, models.EventCarrierCallback, entry.Event)
	assert.Equal(t, "shp_1", entry.ShipmentID)
	assert.Equal(t, http.StatusOK, entry.Status)
	assert.Equal(t, "tms-client/2.1", entry.UserAgent)
	assert.Equal(t, true, entry.Details["statusChanged"])
}

func TestCarrierCallback_NoStatusChangeDoesNotQueue(t *testing.T) {
	updater := &fakeUpdater{result: &shipments.CarrierResult{
		ShipmentID: "shp_1", Status: shipments.StatusInTransit, PreviousStatus: shipments.StatusInTransit,
	}}
	queue := &fakeDispatcher{}
	h := NewCarrierCallbackHandler(updater, queue, &recordingAuditor{})

	rr, _ := callCarrier(h, `{"shipmentId":"shp_1","status":"EM_TRANSITO"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, queue.queued)
}

func TestCarrierCallback_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed body", `{"shipmentId":`, nil, http.StatusBadRequest},
		{"missing identifiers", `{}`, apperrors.Validation("shipmentId or trackingCode is required"), http.StatusBadRequest},
		{"unknown shipment", `{"shipmentId":"shp_x"}`, apperrors.NotFound("shipment not found"), http.StatusNotFound},
		{"store failure", `{"shipmentId":"shp_1"}`, apperrors.Internal("update shipment", assert.AnError), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := &recordingAuditor{}
			h := NewCarrierCallbackHandler(&fakeUpdater{err: tt.err}, &fakeDispatcher{}, auditor)

			rr, body := callCarrier(h, tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, false, body["success"])
			require.Len(t, auditor.entries, 1, "every callback is audited")
			assert.Equal(t, tt.status, auditor.entries[0].Status)
		})
	}
}
