package handlers

import (
	"net/http"

	apiContext "confix/internal/api/context"
	"confix/internal/api/middleware"
	"confix/internal/pkg/errors"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

func param(r *http.Request, name string) string {
	params, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName(name)
}

func clientIP(r *http.Request) string {
	return middleware.ClientIPFrom(r)
}

// logBoundaryError logs internal failures at error level with their cause; caller mistakes stay at debug.
func logBoundaryError(r *http.Request, err error, msg string) {
	event := log.Debug()
	if errors.StatusOf(err) >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", middleware.RequestIDFrom(r)).
		Str("path", r.URL.Path).
		Msg(msg)
}
