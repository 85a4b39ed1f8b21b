// Package audit writes forensic records of inbound calls into the webhook log.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"confix/internal/pkg/parser"
	"confix/internal/platform/models"

	"github.com/rs/zerolog/log"
)

type Appender interface {
	Append(ctx context.Context, entry *models.WebhookLogEntry) error
}

type Entry struct {
	Event      string
	ShipmentID string
	IP         string
	UserAgent  string
	Status     int
	Details    map[string]interface{}
}

type Logger struct {
	store Appender
	now   func() time.Time
}

func NewLogger(store Appender) *Logger {
	return &Logger{store: store, now: time.Now}
}

// Record writes e synchronously. It never fails the caller: a store error is logged and dropped.
// The write survives cancellation of ctx so aborted requests still leave a trace.
func (l *Logger) Record(ctx context.Context, e Entry) {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	if e.UserAgent != "" || e.IP != "" {
		details["client"] = parser.ParseUserAgent(e.UserAgent)
	}
	payload, err := json.Marshal(details)
	if err != nil {
		log.Error().Err(err).Str("event", e.Event).Msg("failed to encode audit details")
		payload = []byte(`{}`)
	}

	entry := &models.WebhookLogEntry{
		EventType:      e.Event,
		ShipmentID:     e.ShipmentID,
		RequestPayload: payload,
		IPAddress:      e.IP,
		CreatedAt:      l.now().Unix(),
	}
	if e.Status != 0 {
		status := e.Status
		entry.ResponseStatus = &status
	}

	if err := l.store.Append(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().Err(err).Str("event", e.Event).Str("ip", e.IP).Msg("failed to write audit entry")
	}
}
