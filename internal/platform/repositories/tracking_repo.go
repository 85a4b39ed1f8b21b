package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"confix/internal/platform/models"
)

// ErrViewRateLimited is returned when the restricted view refuses a lookup for the calling IP.
var ErrViewRateLimited = errors.New("tracking view rate limit exceeded")

type IPBlockRepository struct {
	db *sql.DB
}

func NewIPBlockRepository(db *sql.DB) *IPBlockRepository {
	return &IPBlockRepository{db: db}
}

func (r *IPBlockRepository) IsBlocked(ctx context.Context, ip string, now time.Time) (bool, error) {
	var blocked bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ip_blocks WHERE ip = ? AND blocked_until > ?)`, ip, now.Unix()).Scan(&blocked)
	return blocked, err
}

// Block records or extends a block for ip. An existing longer block is kept.
func (r *IPBlockRepository) Block(ctx context.Context, ip, reason string, until, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ip_blocks (ip, reason, blocked_until, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ip) DO UPDATE SET
			reason = excluded.reason,
			blocked_until = MAX(ip_blocks.blocked_until, excluded.blocked_until)
	`, ip, reason, until.Unix(), now.Unix())
	return err
}

// LookupContext is forwarded with every view query so the view side can account per caller.
type LookupContext struct {
	Code string
	IP   string
}

type TrackingRepository struct {
	db             *sql.DB
	limitPerMinute int
}

func NewTrackingRepository(db *sql.DB, limitPerMinute int) *TrackingRepository {
	return &TrackingRepository{db: db, limitPerMinute: limitPerMinute}
}

// Lookup counts the call against the caller's per-minute budget and reads the tracking_public view.
// It returns nil, nil on a miss.
func (r *TrackingRepository) Lookup(ctx context.Context, lc LookupContext, now time.Time) (*models.TrackingView, error) {
	if r.limitPerMinute > 0 {
		window := now.Truncate(time.Minute).Unix()
		var hits int
		err := r.db.QueryRowContext(ctx, `
			INSERT INTO tracking_rate (ip, window_start, hits) VALUES (?, ?, 1)
			ON CONFLICT (ip, window_start) DO UPDATE SET hits = tracking_rate.hits + 1
			RETURNING hits
		`, lc.IP, window).Scan(&hits)
		if err != nil {
			return nil, err
		}
		if hits > r.limitPerMinute {
			return nil, ErrViewRateLimited
		}
	}

	var v models.TrackingView
	err := r.db.QueryRowContext(ctx, `
		SELECT tracking_code, status, carrier, origin_city, origin_state, destination_city, destination_state, created_at, updated_at
		FROM tracking_public
		WHERE tracking_code = ?
	`, lc.Code).Scan(&v.TrackingCode, &v.Status, &v.Carrier, &v.OriginCity, &v.OriginState,
		&v.DestinationCity, &v.DestinationState, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

// PruneRateWindows drops counters older than before.
func (r *TrackingRepository) PruneRateWindows(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tracking_rate WHERE window_start < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
