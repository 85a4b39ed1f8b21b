package shipments

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "confix/internal/pkg/errors"
	"confix/internal/platform/models"
	"confix/internal/platform/repositories"

	"github.com/rs/zerolog/log"
)

const maxCarrierUpdateRetries = 3

var errConcurrentUpdate = errors.New("shipment status kept changing during update")

type Store interface {
	GetByID(ctx context.Context, id string) (*models.Shipment, error)
	GetByTrackingCode(ctx context.Context, code string) (*models.Shipment, error)
	ApplyCarrierUpdate(ctx context.Context, u repositories.CarrierUpdate, now time.Time) (bool, error)
}

// CarrierUpdate is the body a carrier/TMS posts when a document, a label or a new status is available.
type CarrierUpdate struct {
	ShipmentID   string `json:"shipmentId"`
	TrackingCode string `json:"trackingCode"`
	CTeKey       string `json:"cteKey"`
	LabelPDFURL  string `json:"labelPdfUrl"`
	Status       string `json:"status"`
}

type CarrierResult struct {
	ShipmentID     string
	Status         string
	PreviousStatus string
	StatusChanged  bool
}

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) ApplyCarrierUpdate(ctx context.Context, req CarrierUpdate) (*CarrierResult, error) {
	req.ShipmentID = strings.TrimSpace(req.ShipmentID)
	req.TrackingCode = strings.ToUpper(strings.TrimSpace(req.TrackingCode))
	if req.ShipmentID == "" && req.TrackingCode == "" {
		return nil, apperrors.Validation("shipmentId or trackingCode is required")
	}

	target := Normalize(req.Status)
	if target == "" && (req.CTeKey != "" || req.LabelPDFURL != "") {
		target = StatusLabelAvailable
	}
	if target != "" && !IsCarrierDriven(target) {
		return nil, apperrors.Validation("status " + target + " cannot be reported by a carrier")
	}

	for attempt := 0; attempt < maxCarrierUpdateRetries; attempt++ {
		shipment, err := s.lookup(ctx, req)
		if err != nil {
			return nil, apperrors.Internal("load shipment", err)
		}
		if shipment == nil {
			return nil, apperrors.NotFound("shipment not found")
		}

		next := shipment.Status
		if target != "" && CanTransition(shipment.Status, target) {
			next = target
		} else if target != "" && target != shipment.Status {
			log.Warn().
				Str("shipment_id", shipment.ID).
				Str("current", shipment.Status).
				Str("incoming", target).
				Msg("ignoring carrier status that would move shipment backward")
		}

		result := &CarrierResult{
			ShipmentID:     shipment.ID,
			Status:         next,
			PreviousStatus: shipment.Status,
			StatusChanged:  next != shipment.Status,
		}
		if !result.StatusChanged && req.CTeKey == "" && req.LabelPDFURL == "" {
			return result, nil
		}

		applied, err := s.store.ApplyCarrierUpdate(ctx, repositories.CarrierUpdate{
			ShipmentID:     shipment.ID,
			ExpectedStatus: shipment.Status,
			Status:         next,
			CTeKey:         strings.TrimSpace(req.CTeKey),
			LabelURL:       strings.TrimSpace(req.LabelPDFURL),
		}, s.now())
		if err != nil {
			return nil, apperrors.Internal("update shipment", err)
		}
		if applied {
			return result, nil
		}
		// status moved underneath us; re-read and decide again
	}
	return nil, apperrors.Internal("update shipment", errConcurrentUpdate)
}

func (s *Service) lookup(ctx context.Context, req CarrierUpdate) (*models.Shipment, error) {
	if req.ShipmentID != "" {
		return s.store.GetByID(ctx, req.ShipmentID)
	}
	return s.store.GetByTrackingCode(ctx, req.TrackingCode)
}
