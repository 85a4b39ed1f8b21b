package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"confix/internal/engine/webhooks"
	"confix/internal/platform/config"
	"confix/internal/platform/models"
	"confix/internal/platform/repositories"

	"github.com/rs/zerolog/log"
)

type ReadyQueue interface {
	ListReady(ctx context.Context, now time.Time, maxAttempts, limit int) ([]*models.WebhookLogEntry, error)
	RecordAttempt(ctx context.Context, id string, a repositories.DispatchAttempt, now time.Time) (*models.AttemptRecord, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, shipmentID, eventType string) (*webhooks.Result, error)
}

type RetryStats struct {
	Picked    int `json:"picked"`
	Completed int `json:"completed"`
	Retrying  int `json:"retrying"`
	Exhausted int `json:"exhausted"`
}

// RetryWorker drains ready-for-dispatch log entries. It keeps no state between runs; the log is the queue.
type RetryWorker struct {
	queue      ReadyQueue
	dispatcher Dispatcher
	cfg        config.WebhooksConfig
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRetryWorker(queue ReadyQueue, dispatcher Dispatcher, cfg config.WebhooksConfig) *RetryWorker {
	return &RetryWorker{
		queue:      queue,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// RunOnce processes one batch, oldest first, pausing cfg.RetryDelay between dispatches.
func (w *RetryWorker) RunOnce(ctx context.Context) (RetryStats, error) {
	var stats RetryStats

	entries, err := w.queue.ListReady(ctx, w.now(), w.cfg.MaxAttempts, w.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("list ready webhooks: %w", err)
	}
	stats.Picked = len(entries)

	for i, entry := range entries {
		if i > 0 && w.cfg.RetryDelay > 0 {
			if err := w.sleep(ctx, w.cfg.RetryDelay); err != nil {
				return stats, err
			}
		}

		outcome, err := w.process(ctx, entry)
		if err != nil {
			log.Error().Err(err).Str("log_id", entry.ID).Msg("failed to record dispatch attempt")
			continue
		}
		switch outcome {
		case outcomeCompleted:
			stats.Completed++
		case outcomeRetrying:
			stats.Retrying++
		case outcomeExhausted:
			stats.Exhausted++
		}
	}

	if stats.Picked > 0 {
		log.Info().
			Int("picked", stats.Picked).
			Int("completed", stats.Completed).
			Int("retrying", stats.Retrying).
			Int("exhausted", stats.Exhausted).
			Msg("retry batch finished")
	}
	return stats, nil
}

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeRetrying
	outcomeExhausted
)

func (w *RetryWorker) process(ctx context.Context, entry *models.WebhookLogEntry) (outcome, error) {
	attempt := entry.Attempts + 1

	var payload models.ReadyPayload
	if err := json.Unmarshal(entry.RequestPayload, &payload); err != nil || payload.ShipmentID == "" {
		// nothing to dispatch; park it outside the retry statuses for good
		_, recErr := w.queue.RecordAttempt(ctx, entry.ID, repositories.DispatchAttempt{
			ResponseStatus: http.StatusUnprocessableEntity,
			Error:          "unreadable ready payload",
		}, w.now())
		return outcomeExhausted, recErr
	}
	if payload.EventType == "" {
		payload.EventType = webhooks.EventStatusChanged
	}

	result, err := w.dispatcher.Dispatch(ctx, payload.ShipmentID, payload.EventType)
	if err == nil && result.Complete() {
		body, _ := json.Marshal(result)
		_, recErr := w.queue.RecordAttempt(ctx, entry.ID, repositories.DispatchAttempt{
			Success:        true,
			ResponseStatus: http.StatusOK,
			ResponseBody:   string(body),
			Notified:       result.Notified,
		}, w.now())
		return outcomeCompleted, recErr
	}

	a := repositories.DispatchAttempt{ResponseStatus: http.StatusInternalServerError}
	if err != nil {
		a.Error = err.Error()
	} else {
		a.Notified, a.Failed = result.Notified, result.Failed
		a.Error = fmt.Sprintf("%d of %d integrations failed", result.Failed, result.Notified+result.Failed)
	}

	out := outcomeRetrying
	if attempt >= w.cfg.MaxAttempts {
		out = outcomeExhausted
		a.Error = "max attempts reached: " + a.Error
		log.Warn().Str("log_id", entry.ID).Str("shipment_id", payload.ShipmentID).Int("attempts", attempt).Msg("giving up on dispatch")
	} else {
		next := w.now().Add(Backoff(attempt, w.cfg.InitialBackoff, w.cfg.MaxBackoff)).Unix()
		a.NextAttemptAt = &next
	}

	_, recErr := w.queue.RecordAttempt(ctx, entry.ID, a, w.now())
	return out, recErr
}

// Backoff doubles initial for every attempt after the first and caps the result at ceiling.
func Backoff(attempt int, initial, ceiling time.Duration) time.Duration {
	if initial <= 0 {
		return 0
	}
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if ceiling > 0 && d >= ceiling {
			return ceiling
		}
	}
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
