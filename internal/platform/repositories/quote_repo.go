package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"confix/internal/platform/models"

	"github.com/google/uuid"
)

type QuoteRepository struct {
	db *sql.DB
}

func NewQuoteRepository(db *sql.DB) *QuoteRepository {
	return &QuoteRepository{db: db}
}

func (r *QuoteRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

func (r *QuoteRepository) Create(ctx context.Context, q *models.TempQuote) error {
	if q.ID == "" {
		q.ID = "quote_" + uuid.New().String()
	}
	if q.Status == "" {
		q.Status = models.QuoteStatusPendingPayment
	}
	if len(q.Options) == 0 {
		q.Options = json.RawMessage(`{}`)
	}
	now := time.Now().Unix()
	if q.CreatedAt == 0 {
		q.CreatedAt = now
	}
	q.UpdatedAt = q.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO temp_quotes (id, external_reference, status, options, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, q.ID, q.ExternalReference, q.Status, string(q.Options), q.CreatedAt, q.UpdatedAt)
	return err
}

// FindOpenByReference returns the quote still waiting for payment, or nil when there is none.
func (r *QuoteRepository) FindOpenByReference(ctx context.Context, ref string) (*models.TempQuote, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, external_reference, status, options, created_at, updated_at
		FROM temp_quotes
		WHERE external_reference = ? AND status IN (?, ?)
		LIMIT 1
	`, ref, models.QuoteStatusPendingPayment, models.QuoteStatusAwaitingPayment)
	return scanQuote(row)
}

// FindByReference returns the most recently updated quote for ref regardless of status.
func (r *QuoteRepository) FindByReference(ctx context.Context, ref string) (*models.TempQuote, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, external_reference, status, options, created_at, updated_at
		FROM temp_quotes
		WHERE external_reference = ?
		ORDER BY updated_at DESC
		LIMIT 1
	`, ref)
	return scanQuote(row)
}

func (r *QuoteRepository) GetByID(ctx context.Context, id string) (*models.TempQuote, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, external_reference, status, options, created_at, updated_at
		FROM temp_quotes WHERE id = ?
	`, id)
	return scanQuote(row)
}

// ConfirmPaymentTx merges patch into the quote options and moves it to payment_confirmed.
// It reports false when the quote was no longer open, which means a concurrent delivery won.
func (r *QuoteRepository) ConfirmPaymentTx(ctx context.Context, tx *sql.Tx, id string, patch map[string]interface{}, now time.Time) (bool, error) {
	var raw sql.NullString
	err := tx.QueryRowContext(ctx, `SELECT options FROM temp_quotes WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	merged, err := MergeOptions([]byte(raw.String), patch)
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE temp_quotes
		SET status = ?, options = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, models.QuoteStatusPaymentConfirmed, string(merged), now.Unix(), id,
		models.QuoteStatusPendingPayment, models.QuoteStatusAwaitingPayment)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MergeOptions overlays patch on the JSON object stored in raw. Keys absent from patch are kept.
func MergeOptions(raw []byte, patch map[string]interface{}) ([]byte, error) {
	options := map[string]interface{}{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &options); err != nil {
			return nil, fmt.Errorf("quote options are not a JSON object: %w", err)
		}
		if options == nil {
			options = map[string]interface{}{}
		}
	}
	for k, v := range patch {
		options[k] = v
	}
	return json.Marshal(options)
}

func scanQuote(row *sql.Row) (*models.TempQuote, error) {
	var q models.TempQuote
	var options sql.NullString
	err := row.Scan(&q.ID, &q.ExternalReference, &q.Status, &options, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if options.Valid && options.String != "" {
		q.Options = json.RawMessage(options.String)
	} else {
		q.Options = json.RawMessage(`{}`)
	}
	return &q, nil
}
