package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("bad"), http.StatusBadRequest},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"blocked", SecurityBlocked("blocked"), http.StatusForbidden},
		{"duplicate is success", DuplicateEvent("already processed"), http.StatusOK},
		{"wrapped validation", fmt.Errorf("parse: %w", Validation("bad")), http.StatusBadRequest},
		{"plain error is internal", stderrors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestWriteFrom_HidesInternalCause(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteFrom(rr, Internal("update quote", stderrors.New("database is locked")))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "database is locked")
	assert.Contains(t, rr.Body.String(), "Internal server error")
}

func TestError_Unwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := UpstreamDelivery("integration erp", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, Is(err, KindUpstreamDelivery))
	assert.Equal(t, "integration erp: connection refused", err.Error())
}
