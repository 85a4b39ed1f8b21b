package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"confix/internal/platform/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StatusReadyForDispatch marks a ready-for-dispatch entry that has been accepted but not delivered.
const StatusReadyForDispatch = 202

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type WebhookLogRepository struct {
	db *sql.DB
}

func NewWebhookLogRepository(db *sql.DB) *WebhookLogRepository {
	return &WebhookLogRepository{db: db}
}

func (r *WebhookLogRepository) Append(ctx context.Context, entry *models.WebhookLogEntry) error {
	return r.append(ctx, r.db, entry)
}

func (r *WebhookLogRepository) AppendTx(ctx context.Context, tx *sql.Tx, entry *models.WebhookLogEntry) error {
	return r.append(ctx, tx, entry)
}

func (r *WebhookLogRepository) append(ctx context.Context, ex execer, e *models.WebhookLogEntry) error {
	if e.ID == "" {
		e.ID = "whl_" + uuid.New().String()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	e.UpdatedAt = e.CreatedAt
	if e.AttemptHistory == nil {
		e.AttemptHistory = []models.AttemptRecord{}
	}
	history, err := json.Marshal(e.AttemptHistory)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO webhook_logs (
			id, event_type, shipment_id, quote_id, integration_id, integration_name, url,
			request_payload, response_status, response_body, ip_address, attempts, next_attempt_at,
			attempt_history, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID, e.EventType, nullString(e.ShipmentID), nullString(e.QuoteID), nullString(e.IntegrationID),
		nullString(e.IntegrationName), nullString(e.URL), nullString(string(e.RequestPayload)), e.ResponseStatus,
		nullString(e.ResponseBody), nullString(e.IPAddress), e.Attempts, e.NextAttemptAt,
		string(history), e.CreatedAt, e.UpdatedAt,
	)
	return err
}

const logColumns = `id, event_type, shipment_id, quote_id, integration_id, integration_name, url,
	request_payload, response_status, response_body, ip_address, attempts, next_attempt_at,
	auto_dispatch_success, auto_dispatch_at, auto_dispatch_error, attempt_history, created_at, updated_at`

func (r *WebhookLogRepository) GetByID(ctx context.Context, id string) (*models.WebhookLogEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+logColumns+` FROM webhook_logs WHERE id = ?`, id)
	e, err := scanLogEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListReady returns undelivered ready-for-dispatch entries, oldest first. Entries whose attempts
// reached maxAttempts or whose backoff has not elapsed are skipped.
func (r *WebhookLogRepository) ListReady(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.WebhookLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+logColumns+`
		FROM webhook_logs
		WHERE event_type = ?
			AND response_status IN (?, ?)
			AND (auto_dispatch_success IS NULL OR auto_dispatch_success = 0)
			AND attempts < ?
			AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		ORDER BY created_at ASC, rowid ASC
		LIMIT ?
	`, models.EventReadyForDispatch, StatusReadyForDispatch, 500, maxAttempts, now.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

type LogFilter struct {
	EventType  string
	ShipmentID string
	Limit      int
}

func (r *WebhookLogRepository) List(ctx context.Context, f LogFilter) ([]*models.WebhookLogEntry, error) {
	var where []string
	var args []interface{}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.ShipmentID != "" {
		where = append(where, "shipment_id = ?")
		args = append(args, f.ShipmentID)
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	query := `SELECT ` + logColumns + ` FROM webhook_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLogEntries(rows)
}

// CountByIP counts entries of eventType from ip created at or after since, optionally restricted to one response status.
func (r *WebhookLogRepository) CountByIP(ctx context.Context, eventType, ip string, status int, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM webhook_logs WHERE event_type = ? AND ip_address = ? AND created_at >= ?`
	args := []interface{}{eventType, ip, since.Unix()}
	if status != 0 {
		query += ` AND response_status = ?`
		args = append(args, status)
	}
	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}

// EventCount is one row of the per-event, per-status breakdown used by the metrics export.
type EventCount struct {
	EventType string
	Status    int
	Count     int
}

func (r *WebhookLogRepository) CountByEvent(ctx context.Context) ([]EventCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_type, COALESCE(response_status, 0), COUNT(*)
		FROM webhook_logs
		GROUP BY event_type, COALESCE(response_status, 0)
		ORDER BY event_type, 2`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []EventCount
	for rows.Next() {
		var c EventCount
		if err := rows.Scan(&c.EventType, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// DispatchAttempt is the outcome of one worker pass over a ready-for-dispatch entry.
type DispatchAttempt struct {
	Success        bool
	ResponseStatus int
	ResponseBody   string
	Error          string
	NextAttemptAt  *int64
	Notified       int
	Failed         int
}

// RecordAttempt patches the response fields of a ready-for-dispatch entry and appends the attempt to its
// history. auto_dispatch_error holds the latest attempt's error only; earlier ones live in the history.
// request_payload is never touched.
func (r *WebhookLogRepository) RecordAttempt(ctx context.Context, id string, a DispatchAttempt, now time.Time) (*models.AttemptRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var attempts int
	var historyRaw sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT attempts, attempt_history FROM webhook_logs WHERE id = ?`, id).Scan(&attempts, &historyRaw)
	if err != nil {
		return nil, err
	}

	var history []models.AttemptRecord
	if historyRaw.Valid && historyRaw.String != "" {
		if err := json.Unmarshal([]byte(historyRaw.String), &history); err != nil {
			return nil, err
		}
	}
	record := models.AttemptRecord{
		Attempt:  attempts + 1,
		At:       now.Unix(),
		Success:  a.Success,
		Notified: a.Notified,
		Failed:   a.Failed,
		Error:    a.Error,
	}
	history = append(history, record)
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE webhook_logs SET
			response_status = ?,
			response_body = ?,
			attempts = ?,
			next_attempt_at = ?,
			auto_dispatch_success = ?,
			auto_dispatch_at = ?,
			auto_dispatch_error = ?,
			attempt_history = ?,
			updated_at = ?
		WHERE id = ?
	`, a.ResponseStatus, nullString(a.ResponseBody), record.Attempt, a.NextAttemptAt, a.Success, now.Unix(),
		nullString(a.Error), string(historyJSON), now.Unix(), id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &record, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanLogEntries(rows *sql.Rows) ([]*models.WebhookLogEntry, error) {
	var entries []*models.WebhookLogEntry
	for rows.Next() {
		e, err := scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanLogEntry(s scanner) (*models.WebhookLogEntry, error) {
	var e models.WebhookLogEntry
	var shipmentID, quoteID, integrationID, integrationName, url, payload, body, ip, dispatchErr, history sql.NullString
	var status, nextAttempt, dispatchAt sql.NullInt64
	var dispatchOK sql.NullBool

	err := s.Scan(
		&e.ID, &e.EventType, &shipmentID, &quoteID, &integrationID, &integrationName, &url,
		&payload, &status, &body, &ip, &e.Attempts, &nextAttempt,
		&dispatchOK, &dispatchAt, &dispatchErr, &history, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.ShipmentID = shipmentID.String
	e.QuoteID = quoteID.String
	e.IntegrationID = integrationID.String
	e.IntegrationName = integrationName.String
	e.URL = url.String
	if payload.Valid && payload.String != "" {
		e.RequestPayload = json.RawMessage(payload.String)
	}
	if status.Valid {
		val := int(status.Int64)
		e.ResponseStatus = &val
	}
	e.ResponseBody = body.String
	e.IPAddress = ip.String
	if nextAttempt.Valid {
		val := nextAttempt.Int64
		e.NextAttemptAt = &val
	}
	if dispatchOK.Valid {
		val := dispatchOK.Bool
		e.AutoDispatchSuccess = &val
	}
	if dispatchAt.Valid {
		val := dispatchAt.Int64
		e.AutoDispatchAt = &val
	}
	e.AutoDispatchError = dispatchErr.String
	e.AttemptHistory = []models.AttemptRecord{}
	if history.Valid && history.String != "" {
		if err := json.Unmarshal([]byte(history.String), &e.AttemptHistory); err != nil {
			log.Warn().Err(err).Str("log_id", e.ID).Msg("unreadable attempt history")
			e.AttemptHistory = []models.AttemptRecord{}
		}
	}
	return &e, nil
}
