package payments

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"time"

	apperrors "confix/internal/pkg/errors"
	"confix/internal/pkg/validator"
	"confix/internal/platform/config"
	"confix/internal/platform/models"
	"confix/internal/platform/repositories"

	"github.com/rs/zerolog/log"
)

type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeAlreadyProcessed Outcome = "already_processed"
	OutcomeIgnored          Outcome = "ignored"
)

type Result struct {
	Outcome Outcome
	Event   string
	QuoteID string
}

// Receiver turns provider callbacks into a single quote transition to payment_confirmed.
// Downstream shipment creation watches that status; the Receiver stops at the transition.
type Receiver struct {
	quotes *repositories.QuoteRepository
	logs   *repositories.WebhookLogRepository
	cfg    config.PaymentsConfig
	now    func() time.Time
}

func NewReceiver(quotes *repositories.QuoteRepository, logs *repositories.WebhookLogRepository, cfg config.PaymentsConfig) *Receiver {
	return &Receiver{
		quotes: quotes,
		logs:   logs,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// VerifyToken checks the provider access token header. With no configured token every call passes.
func (r *Receiver) VerifyToken(token string) bool {
	if r.cfg.WebhookToken == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(r.cfg.WebhookToken)) == 1
}

func (r *Receiver) Handle(ctx context.Context, body []byte) (*Result, error) {
	event, err := ParseEvent(body)
	if err != nil {
		return nil, err
	}

	confirmed, ok := event.(ConfirmedEvent)
	if !ok {
		log.Info().Str("event", event.Name()).Msg("ignoring payment event")
		return &Result{Outcome: OutcomeIgnored, Event: event.Name()}, nil
	}

	ref := confirmed.Payment.ExternalReference
	if err := validator.ExternalReference(ref, r.cfg.ReferencePrefix); err != nil {
		log.Warn().Err(err).Str("external_reference", ref).Msg("rejecting payment reference")
		return nil, apperrors.Validation("invalid external reference")
	}

	quote, err := r.quotes.FindOpenByReference(ctx, ref)
	if err != nil {
		return nil, apperrors.Internal("find quote", err)
	}
	if quote == nil {
		return r.handleMissingOpenQuote(ctx, confirmed)
	}

	applied, err := r.confirm(ctx, quote, confirmed)
	if err != nil {
		return nil, apperrors.Internal("confirm quote", err)
	}
	if !applied {
		// another delivery of the same event confirmed the quote between our read and our update
		r.logDuplicate(ctx, quote.ID, confirmed)
		return &Result{Outcome: OutcomeAlreadyProcessed, Event: confirmed.Event, QuoteID: quote.ID}, nil
	}

	log.Info().
		Str("quote_id", quote.ID).
		Str("payment_id", confirmed.Payment.ID).
		Float64("amount", confirmed.Payment.Value).
		Msg("payment confirmed")
	return &Result{Outcome: OutcomeConfirmed, Event: confirmed.Event, QuoteID: quote.ID}, nil
}

func (r *Receiver) handleMissingOpenQuote(ctx context.Context, event ConfirmedEvent) (*Result, error) {
	quote, err := r.quotes.FindByReference(ctx, event.Payment.ExternalReference)
	if err != nil {
		return nil, apperrors.Internal("find quote", err)
	}
	if quote != nil && (quote.Status == models.QuoteStatusPaymentConfirmed || quote.Status == models.QuoteStatusProcessed) {
		r.logDuplicate(ctx, quote.ID, event)
		return &Result{Outcome: OutcomeAlreadyProcessed, Event: event.Event, QuoteID: quote.ID}, nil
	}
	return nil, apperrors.NotFound("quote not found")
}

func (r *Receiver) confirm(ctx context.Context, quote *models.TempQuote, event ConfirmedEvent) (bool, error) {
	now := r.now()
	patch := map[string]interface{}{
		"paymentConfirmed":   true,
		"paymentId":          event.Payment.ID,
		"paymentAmount":      event.Payment.Value,
		"paymentMethod":      event.Payment.BillingType,
		"paymentProvider":    r.cfg.Provider,
		"paymentEvent":       event.Event,
		"paymentConfirmedAt": now.Format(time.RFC3339),
	}

	tx, err := r.quotes.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	applied, err := r.quotes.ConfirmPaymentTx(ctx, tx, quote.ID, patch, now)
	if err != nil || !applied {
		return false, err
	}

	status := 200
	transition, _ := json.Marshal(map[string]string{
		"from": quote.Status,
		"to":   models.QuoteStatusPaymentConfirmed,
	})
	entry := &models.WebhookLogEntry{
		EventType:      models.EventPaymentReceived,
		QuoteID:        quote.ID,
		RequestPayload: event.Raw,
		ResponseStatus: &status,
		ResponseBody:   string(transition),
		CreatedAt:      now.Unix(),
	}
	if err := r.logs.AppendTx(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Receiver) logDuplicate(ctx context.Context, quoteID string, event ConfirmedEvent) {
	status := 200
	entry := &models.WebhookLogEntry{
		EventType:      models.EventPaymentDuplicate,
		QuoteID:        quoteID,
		RequestPayload: event.Raw,
		ResponseStatus: &status,
		ResponseBody:   `{"alreadyProcessed":true}`,
		CreatedAt:      r.now().Unix(),
	}
	if err := r.logs.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Str("quote_id", quoteID).Msg("failed to log duplicate payment event")
	}
	log.Info().Str("quote_id", quoteID).Str("payment_id", event.Payment.ID).Msg("payment event already processed")
}
