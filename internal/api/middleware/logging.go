package middleware

import (
	"context"
	"net/http"
	"time"

	apiContext "confix/internal/api/context"
	"confix/internal/pkg/clientip"
	"confix/internal/pkg/errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const RequestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// RequestContext tags every request with an id and the resolved client ip, recovers panics
// into a generic 500 and writes one access log line.
func RequestContext(next http.Handler, ips *clientip.Resolver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		ip := ips.Resolve(r)

		ctx := context.WithValue(r.Context(), apiContext.RequestID, requestID)
		ctx = context.WithValue(ctx, apiContext.ClientIP, ip)
		w.Header().Set(RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w}
		defer func() {
			if p := recover(); p != nil {
				log.Error().Interface("panic", p).Str("request_id", requestID).Str("path", r.URL.Path).Msg("handler panicked")
				if rec.status == 0 {
					errors.WriteError(rec, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
				}
			}

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			event := log.Info()
			if rec.status >= 500 {
				event = log.Error()
			} else if rec.status >= 400 {
				event = log.Warn()
			}
			event.
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Int("bytes", rec.bytes).
				Str("ip", ip).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(rec, r.WithContext(ctx))
	})
}

// ClientIPFrom returns the address RequestContext resolved, or the socket peer when the
// request did not pass through it.
func ClientIPFrom(r *http.Request) string {
	if ip, ok := r.Context().Value(apiContext.ClientIP).(string); ok && ip != "" {
		return ip
	}
	return clientip.Remote(r)
}

func RequestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(apiContext.RequestID).(string)
	return id
}
