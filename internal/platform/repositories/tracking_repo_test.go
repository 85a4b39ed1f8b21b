package repositories

import (
	"context"
	"testing"
	"time"

	"confix/internal/platform/database/dbtest"
	"confix/internal/platform/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPBlock_ExtendsButNeverShortens(t *testing.T) {
	repo := NewIPBlockRepository(dbtest.New(t))
	ctx := context.Background()
	now := time.Unix(1_800_000_000, 0)

	require.NoError(t, repo.Block(ctx, "203.0.113.9", "tracking enumeration", now.Add(2*time.Hour), now))
	require.NoError(t, repo.Block(ctx, "203.0.113.9", "manual", now.Add(time.Hour), now))

	blocked, err := repo.IsBlocked(ctx, "203.0.113.9", now.Add(90*time.Minute))
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = repo.IsBlocked(ctx, "203.0.113.9", now.Add(3*time.Hour))
	require.NoError(t, err)
	assert.False(t, blocked, "expired")

	blocked, err = repo.IsBlocked(ctx, "203.0.113.10", now)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestTrackingLookup_ViewAndRateWindow(t *testing.T) {
	db := dbtest.New(t)
	shipments := NewShipmentRepository(db)
	ctx := context.Background()

	recipient := &models.Address{Name: "Maria", City: "Recife", State: "PE"}
	require.NoError(t, shipments.CreateAddress(ctx, recipient))
	require.NoError(t, shipments.Create(ctx, &models.Shipment{
		Status: "EM_TRANSITO", TrackingCode: "CFX123456BR", Quantity: 1, RecipientAddressID: recipient.ID,
	}))

	repo := NewTrackingRepository(db, 2)
	now := time.Unix(1_800_000_000, 0)
	lc := LookupContext{Code: "CFX123456BR", IP: "203.0.113.1"}

	view, err := repo.Lookup(ctx, lc, now)
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Equal(t, "Recife", view.DestinationCity)
	assert.Empty(t, view.OriginCity, "missing sender address reads as empty")

	miss, err := repo.Lookup(ctx, LookupContext{Code: "CFX000000", IP: "203.0.113.1"}, now)
	require.NoError(t, err)
	assert.Nil(t, miss)

	_, err = repo.Lookup(ctx, lc, now)
	assert.ErrorIs(t, err, ErrViewRateLimited)

	_, err = repo.Lookup(ctx, lc, now.Add(time.Minute))
	assert.NoError(t, err, "next window")

	pruned, err := repo.PruneRateWindows(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)
}
