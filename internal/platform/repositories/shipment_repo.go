package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"confix/internal/platform/models"

	"github.com/google/uuid"
)

type ShipmentRepository struct {
	db *sql.DB
}

func NewShipmentRepository(db *sql.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) CreateAddress(ctx context.Context, a *models.Address) error {
	if a.ID == "" {
		a.ID = "addr_" + uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO addresses (id, name, document, phone, email, street, number, complement, district, city, state, postal_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.Document, a.Phone, a.Email, a.Street, a.Number, a.Complement, a.District, a.City, a.State, a.PostalCode)
	return err
}

func (r *ShipmentRepository) Create(ctx context.Context, s *models.Shipment) error {
	if s.ID == "" {
		s.ID = "shp_" + uuid.New().String()
	}
	now := time.Now().Unix()
	if s.CreatedAt == 0 {
		s.CreatedAt = now
	}
	if s.UpdatedAt == 0 {
		s.UpdatedAt = s.CreatedAt
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shipments (
			id, quote_id, client_id, status, weight_kg, length_cm, width_cm, height_cm, format,
			quantity, unit_value, total_value, document_type, has_invoice, nfe_key,
			sender_address_id, recipient_address_id, payment_method, payment_amount, payment_status, paid_at,
			tracking_code, carrier, cte_key, label_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ID, nullString(s.QuoteID), nullString(s.ClientID), s.Status, s.WeightKg, s.LengthCm, s.WidthCm, s.HeightCm, s.Format,
		s.Quantity, s.UnitValue, s.TotalValue, s.DocumentType, s.HasInvoice, nullString(s.NFeKey),
		nullString(s.SenderAddressID), nullString(s.RecipientAddressID), s.PaymentMethod, s.PaymentAmount, s.PaymentStatus, s.PaidAt,
		nullString(s.TrackingCode), nullString(s.Carrier), nullString(s.CTeKey), nullString(s.LabelURL), s.CreatedAt, s.UpdatedAt,
	)
	return err
}

const shipmentColumns = `
	s.id, s.quote_id, s.client_id, s.status, s.weight_kg, s.length_cm, s.width_cm, s.height_cm, s.format,
	s.quantity, s.unit_value, s.total_value, s.document_type, s.has_invoice, s.nfe_key,
	s.sender_address_id, s.recipient_address_id, s.payment_method, s.payment_amount, s.payment_status, s.paid_at,
	s.tracking_code, s.carrier, s.cte_key, s.label_url, s.created_at, s.updated_at`

func (r *ShipmentRepository) GetByID(ctx context.Context, id string) (*models.Shipment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments s WHERE s.id = ?`, id)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *ShipmentRepository) GetByTrackingCode(ctx context.Context, code string) (*models.Shipment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments s WHERE s.tracking_code = ?`, code)
	s, err := scanShipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

// GetSnapshot loads a shipment with its sender and recipient rows. It returns nil when the shipment does not exist.
func (r *ShipmentRepository) GetSnapshot(ctx context.Context, id string) (*models.ShipmentSnapshot, error) {
	query := `
		SELECT ` + shipmentColumns + `,
			COALESCE(sa.id, ''), COALESCE(sa.name, ''), COALESCE(sa.document, ''), COALESCE(sa.phone, ''), COALESCE(sa.email, ''),
			COALESCE(sa.street, ''), COALESCE(sa.number, ''), COALESCE(sa.complement, ''), COALESCE(sa.district, ''),
			COALESCE(sa.city, ''), COALESCE(sa.state, ''), COALESCE(sa.postal_code, ''),
			COALESCE(ra.id, ''), COALESCE(ra.name, ''), COALESCE(ra.document, ''), COALESCE(ra.phone, ''), COALESCE(ra.email, ''),
			COALESCE(ra.street, ''), COALESCE(ra.number, ''), COALESCE(ra.complement, ''), COALESCE(ra.district, ''),
			COALESCE(ra.city, ''), COALESCE(ra.state, ''), COALESCE(ra.postal_code, '')
		FROM shipments s
		LEFT JOIN addresses sa ON sa.id = s.sender_address_id
		LEFT JOIN addresses ra ON ra.id = s.recipient_address_id
		WHERE s.id = ?
	`

	var snap models.ShipmentSnapshot
	sa, ra := &snap.Sender, &snap.Recipient
	s, err := scanShipment(r.db.QueryRowContext(ctx, query, id),
		&sa.ID, &sa.Name, &sa.Document, &sa.Phone, &sa.Email, &sa.Street, &sa.Number, &sa.Complement, &sa.District, &sa.City, &sa.State, &sa.PostalCode,
		&ra.ID, &ra.Name, &ra.Document, &ra.Phone, &ra.Email, &ra.Street, &ra.Number, &ra.Complement, &ra.District, &ra.City, &ra.State, &ra.PostalCode,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	snap.Shipment = *s
	return &snap, nil
}

// AdvanceStatus sets status to `to` only while the row is in one of `from`. It is the single-row
// conditional update every status writer goes through.
func (r *ShipmentRepository) AdvanceStatus(ctx context.Context, id, to string, from []string, now time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args := []interface{}{to, now.Unix(), id}
	for _, f := range from {
		args = append(args, f)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE shipments SET status = ?, updated_at = ?
		WHERE id = ? AND status IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

// CarrierUpdate is applied only if the row still carries ExpectedStatus.
type CarrierUpdate struct {
	ShipmentID     string
	ExpectedStatus string
	Status         string
	CTeKey         string
	LabelURL       string
}

func (r *ShipmentRepository) ApplyCarrierUpdate(ctx context.Context, u CarrierUpdate, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE shipments
		SET status = ?,
			cte_key = COALESCE(?, cte_key),
			label_url = COALESCE(?, label_url),
			updated_at = ?
		WHERE id = ? AND status = ?
	`, u.Status, nullString(u.CTeKey), nullString(u.LabelURL), now.Unix(), u.ShipmentID, u.ExpectedStatus)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

func scanShipment(row *sql.Row, extra ...interface{}) (*models.Shipment, error) {
	var s models.Shipment
	var quoteID, clientID, format, documentType, nfeKey, senderID, recipientID sql.NullString
	var paymentMethod, paymentStatus, trackingCode, carrier, cteKey, labelURL sql.NullString
	var paidAt sql.NullInt64

	dest := []interface{}{
		&s.ID, &quoteID, &clientID, &s.Status, &s.WeightKg, &s.LengthCm, &s.WidthCm, &s.HeightCm, &format,
		&s.Quantity, &s.UnitValue, &s.TotalValue, &documentType, &s.HasInvoice, &nfeKey,
		&senderID, &recipientID, &paymentMethod, &s.PaymentAmount, &paymentStatus, &paidAt,
		&trackingCode, &carrier, &cteKey, &labelURL, &s.CreatedAt, &s.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	s.QuoteID = quoteID.String
	s.ClientID = clientID.String
	s.Format = format.String
	s.DocumentType = documentType.String
	s.NFeKey = nfeKey.String
	s.SenderAddressID = senderID.String
	s.RecipientAddressID = recipientID.String
	s.PaymentMethod = paymentMethod.String
	s.PaymentStatus = paymentStatus.String
	s.TrackingCode = trackingCode.String
	s.Carrier = carrier.String
	s.CTeKey = cteKey.String
	s.LabelURL = labelURL.String
	if paidAt.Valid {
		val := paidAt.Int64
		s.PaidAt = &val
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
