package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"confix/internal/platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	entries []*models.WebhookLogEntry
	err     error
	ctxErr  error
}

func (m *memoryStore) Append(ctx context.Context, entry *models.WebhookLogEntry) error {
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func TestRecord_WritesEntryWithClientDetails(t *testing.T) {
	store := &memoryStore{}
	NewLogger(store).Record(context.Background(), Entry{
		Event:     models.EventTrackingLookup,
		IP:        "203.0.113.1",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Safari/604.1",
		Status:    404,
		Details:   map[string]interface{}{"code": "CFX123456"},
	})

	require.Len(t, store.entries, 1)
	entry := store.entries[0]
	assert.Equal(t, models.EventTrackingLookup, entry.EventType)
	assert.Equal(t, "203.0.113.1", entry.IPAddress)
	require.NotNil(t, entry.ResponseStatus)
	assert.Equal(t, 404, *entry.ResponseStatus)

	var details map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.RequestPayload, &details))
	assert.Equal(t, "CFX123456", details["code"])
	assert.Equal(t, "iOS", details["client"].(map[string]interface{})["os"])
}

func TestRecord_SurvivesCancelledContext(t *testing.T) {
	store := &memoryStore{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	NewLogger(store).Record(ctx, Entry{Event: models.EventCarrierCallback})
	require.Len(t, store.entries, 1)
	assert.NoError(t, store.ctxErr)
	assert.Nil(t, store.entries[0].ResponseStatus)
}

func TestRecord_StoreErrorIsSwallowed(t *testing.T) {
	store := &memoryStore{err: errors.New("database is locked")}
	assert.NotPanics(t, func() {
		NewLogger(store).Record(context.Background(), Entry{Event: models.EventTrackingLookup})
	})
}
