package repositories

import (
	"context"
	"database/sql"
	"time"

	"confix/internal/platform/models"

	"github.com/google/uuid"
)

type IntegrationRepository struct {
	db *sql.DB
}

func NewIntegrationRepository(db *sql.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

func (r *IntegrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	if integration.ID == "" {
		integration.ID = "int_" + uuid.New().String()
	}
	integration.CreatedAt = time.Now().Unix()
	integration.UpdatedAt = integration.CreatedAt
	integration.HasSecret = integration.SecretRef != ""

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO integrations (id, name, webhook_url, secret_ref, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, integration.ID, integration.Name, integration.WebhookURL, nullString(integration.SecretRef), integration.Active, integration.CreatedAt, integration.UpdatedAt)
	return err
}

// ListActive returns active integrations in registration order.
func (r *IntegrationRepository) ListActive(ctx context.Context) ([]*models.Integration, error) {
	return r.list(ctx, `
		SELECT id, name, webhook_url, secret_ref, active, created_at, updated_at
		FROM integrations WHERE active = 1
		ORDER BY created_at ASC, rowid ASC
	`)
}

func (r *IntegrationRepository) List(ctx context.Context) ([]*models.Integration, error) {
	return r.list(ctx, `
		SELECT id, name, webhook_url, secret_ref, active, created_at, updated_at
		FROM integrations
		ORDER BY created_at ASC, rowid ASC
	`)
}

func (r *IntegrationRepository) list(ctx context.Context, query string) ([]*models.Integration, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var integrations []*models.Integration
	for rows.Next() {
		var i models.Integration
		var secretRef sql.NullString
		if err := rows.Scan(&i.ID, &i.Name, &i.WebhookURL, &secretRef, &i.Active, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		i.SecretRef = secretRef.String
		i.HasSecret = secretRef.Valid && secretRef.String != ""
		integrations = append(integrations, &i)
	}
	return integrations, rows.Err()
}
