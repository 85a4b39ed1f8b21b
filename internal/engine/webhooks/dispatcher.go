package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"confix/internal/engine/shipments"
	apperrors "confix/internal/pkg/errors"
	"confix/internal/platform/config"
	"confix/internal/platform/models"
	"confix/internal/platform/secrets"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const maxResponseBody = 64 << 10

type ShipmentStore interface {
	GetSnapshot(ctx context.Context, id string) (*models.ShipmentSnapshot, error)
	AdvanceStatus(ctx context.Context, id, to string, from []string, now time.Time) (bool, error)
}

type IntegrationLister interface {
	ListActive(ctx context.Context) ([]*models.Integration, error)
}

type LogAppender interface {
	Append(ctx context.Context, entry *models.WebhookLogEntry) error
}

// Delivery is the outcome of posting one payload to one integration.
type Delivery struct {
	IntegrationID   string `json:"integration_id"`
	IntegrationName string `json:"integration_name"`
	URL             string `json:"url"`
	OK              bool   `json:"ok"`
	StatusCode      int    `json:"status_code,omitempty"`
	Body            string `json:"-"`
	Error           string `json:"error,omitempty"`

	order int
}

type Result struct {
	ShipmentID     string     `json:"shipmentId"`
	Notified       int        `json:"integrations_notified"`
	Failed         int        `json:"integrations_failed"`
	Status         string     `json:"status"`
	StatusAdvanced bool       `json:"status_advanced"`
	Deliveries     []Delivery `json:"deliveries"`
}

// Complete reports whether every integration accepted the payload.
func (r *Result) Complete() bool {
	return r.Failed == 0
}

type Dispatcher struct {
	shipments    ShipmentStore
	integrations IntegrationLister
	logs         LogAppender
	secrets      secrets.Getter
	client       *http.Client
	cfg          config.WebhooksConfig
	now          func() time.Time
}

func NewDispatcher(shipmentStore ShipmentStore, integrations IntegrationLister, logs LogAppender, secretStore secrets.Getter, cfg config.WebhooksConfig) *Dispatcher {
	return &Dispatcher{
		shipments:    shipmentStore,
		integrations: integrations,
		logs:         logs,
		secrets:      secretStore,
		client:       &http.Client{Timeout: cfg.Timeout},
		cfg:          cfg,
		now:          time.Now,
	}
}

// Dispatch posts the shipment payload to every active integration and then moves the shipment to
// PAGO_AGUARDANDO_ETIQUETA if it has not got there yet. Integration failures are reported in the
// result, never as an error. Calling it again for the same shipment only adds log entries.
func (d *Dispatcher) Dispatch(ctx context.Context, shipmentID, eventType string) (*Result, error) {
	snap, err := d.shipments.GetSnapshot(ctx, shipmentID)
	if err != nil {
		return nil, apperrors.Internal("load shipment", err)
	}
	if snap == nil {
		return nil, apperrors.NotFound("shipment not found")
	}

	integrations, err := d.integrations.ListActive(ctx)
	if err != nil {
		return nil, apperrors.Internal("list integrations", err)
	}

	result := &Result{ShipmentID: shipmentID, Status: snap.Shipment.Status}

	if len(integrations) == 0 {
		log.Info().Str("shipment_id", shipmentID).Msg("no active integrations, nothing to notify")
		status := http.StatusOK
		d.appendLog(ctx, &models.WebhookLogEntry{
			EventType:      models.EventDispatchNoReceiver,
			ShipmentID:     shipmentID,
			ResponseStatus: &status,
			ResponseBody:   `{"integrations_notified":0}`,
		})
	} else {
		body, err := Marshal(BuildPayload(snap, eventType))
		if err != nil {
			return nil, apperrors.Internal("encode payload", err)
		}
		result.Deliveries = d.fanOut(ctx, integrations, body, eventType)
		for _, del := range result.Deliveries {
			if del.OK {
				result.Notified++
			} else {
				result.Failed++
			}
			d.logDelivery(ctx, shipmentID, body, del)
		}
	}

	advanced, err := d.shipments.AdvanceStatus(ctx, shipmentID, shipments.StatusAwaitingLabel,
		shipments.Predecessors(shipments.StatusAwaitingLabel), d.now())
	if err != nil {
		return nil, apperrors.Internal("advance shipment status", err)
	}
	if advanced {
		result.Status = shipments.StatusAwaitingLabel
		result.StatusAdvanced = true
	}

	log.Info().
		Str("shipment_id", shipmentID).
		Str("event", eventType).
		Int("notified", result.Notified).
		Int("failed", result.Failed).
		Bool("status_advanced", advanced).
		Msg("dispatch finished")
	return result, nil
}

func (d *Dispatcher) fanOut(ctx context.Context, integrations []*models.Integration, body []byte, eventType string) []Delivery {
	limit := d.cfg.MaxConcurrency
	if limit <= 0 {
		limit = len(integrations)
	}

	p := pool.NewWithResults[Delivery]().WithMaxGoroutines(limit)
	for i, integration := range integrations {
		i, integration := i, integration
		p.Go(func() Delivery {
			del := d.deliver(ctx, integration, body, eventType)
			del.order = i
			return del
		})
	}
	deliveries := p.Wait()

	sort.Slice(deliveries, func(a, b int) bool { return deliveries[a].order < deliveries[b].order })
	return deliveries
}

func (d *Dispatcher) deliver(ctx context.Context, integration *models.Integration, body []byte, eventType string) (del Delivery) {
	del = Delivery{
		IntegrationID:   integration.ID,
		IntegrationName: integration.Name,
		URL:             integration.WebhookURL,
	}
	defer func() {
		if r := recover(); r != nil {
			del.OK = false
			del.Error = fmt.Sprintf("delivery panicked: %v", r)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, integration.WebhookURL, bytes.NewReader(body))
	if err != nil {
		del.Error = apperrors.UpstreamDelivery("build request", err).Error()
		return del
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Notification", "true")
	req.Header.Set("X-Webhook-Event", eventType)
	req.Header.Set("X-Webhook-Source", d.cfg.Source)
	req.Header.Set("X-Webhook-Delivery", "dlv_"+uuid.New().String())

	if integration.SecretRef != "" {
		secret, err := d.secrets.Get(ctx, integration.SecretRef)
		if err != nil {
			del.Error = apperrors.UpstreamDelivery("resolve integration secret", err).Error()
			return del
		}
		req.Header.Set("Authorization", "Bearer "+secret)
		req.Header.Set("X-Webhook-Signature", SignatureHeader(secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		del.Error = apperrors.UpstreamDelivery("post webhook", err).Error()
		log.Warn().Err(err).Str("integration_id", integration.ID).Msg("integration unreachable")
		return del
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	del.StatusCode = resp.StatusCode
	del.Body = string(respBody)
	del.OK = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !del.OK {
		del.Error = apperrors.UpstreamDelivery(fmt.Sprintf("HTTP %d", resp.StatusCode), nil).Error()
		log.Warn().Str("integration_id", integration.ID).Int("status", resp.StatusCode).Msg("integration rejected webhook")
	}
	return del
}

func (d *Dispatcher) logDelivery(ctx context.Context, shipmentID string, body []byte, del Delivery) {
	entry := &models.WebhookLogEntry{
		EventType:       models.EventIntegrationSent,
		ShipmentID:      shipmentID,
		IntegrationID:   del.IntegrationID,
		IntegrationName: del.IntegrationName,
		URL:             del.URL,
		RequestPayload:  body,
		ResponseBody:    del.Body,
	}
	if del.StatusCode != 0 {
		status := del.StatusCode
		entry.ResponseStatus = &status
	}
	if !del.OK {
		entry.EventType = models.EventIntegrationFailed
		if entry.ResponseBody == "" {
			entry.ResponseBody = del.Error
		}
	}
	d.appendLog(ctx, entry)
}

// MarkReady queues a dispatch for the retry worker by appending a ready-for-dispatch entry.
func (d *Dispatcher) MarkReady(ctx context.Context, shipmentID, eventType string) (*models.WebhookLogEntry, error) {
	payload, err := json.Marshal(models.ReadyPayload{ShipmentID: shipmentID, EventType: eventType})
	if err != nil {
		return nil, apperrors.Internal("encode ready payload", err)
	}
	status := http.StatusAccepted
	entry := &models.WebhookLogEntry{
		EventType:      models.EventReadyForDispatch,
		ShipmentID:     shipmentID,
		RequestPayload: payload,
		ResponseStatus: &status,
		CreatedAt:      d.now().Unix(),
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		return nil, apperrors.Internal("queue dispatch", err)
	}
	log.Info().Str("shipment_id", shipmentID).Str("log_id", entry.ID).Msg("dispatch queued")
	return entry, nil
}

func (d *Dispatcher) appendLog(ctx context.Context, entry *models.WebhookLogEntry) {
	if entry.CreatedAt == 0 {
		entry.CreatedAt = d.now().Unix()
	}
	if err := d.logs.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("shipment_id", entry.ShipmentID).Str("event", entry.EventType).Msg("failed to write webhook log")
	}
}
