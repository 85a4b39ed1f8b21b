package handlers

import (
	"context"
	"fmt"
	"net/http"

	"confix/internal/platform/repositories"
)

type EventCounter interface {
	CountByEvent(ctx context.Context) ([]repositories.EventCount, error)
}

// MetricsHandler exports webhook log counters in the Prometheus text format.
type MetricsHandler struct {
	counter EventCounter
}

func NewMetricsHandler(counter EventCounter) *MetricsHandler {
	return &MetricsHandler{counter: counter}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	counts, err := h.counter.CountByEvent(r.Context())
	if err != nil {
		logBoundaryError(r, err, "metrics export failed")
		http.Error(w, "metrics unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "# HELP confix_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE confix_up gauge\n")
	fmt.Fprintf(w, "confix_up 1\n")
	fmt.Fprintf(w, "# HELP confix_webhook_log_entries Webhook log entries by event and response status\n")
	fmt.Fprintf(w, "# TYPE confix_webhook_log_entries gauge\n")
	for _, c := range counts {
		fmt.Fprintf(w, "confix_webhook_log_entries{event=%q,status=\"%d\"} %d\n", c.EventType, c.Status, c.Count)
	}
}
