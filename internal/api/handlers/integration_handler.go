package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"confix/internal/pkg/errors"
	"confix/internal/platform/models"
)

type IntegrationStore interface {
	Create(ctx context.Context, integration *models.Integration) error
	List(ctx context.Context) ([]*models.Integration, error)
}

type SecretSealer interface {
	Seal(ctx context.Context, plaintext string) (string, error)
}

type IntegrationHandler struct {
	integrations IntegrationStore
	secrets      SecretSealer
}

func NewIntegrationHandler(integrations IntegrationStore, secrets SecretSealer) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations, secrets: secrets}
}

func (h *IntegrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		WebhookURL string `json:"webhook_url"`
		Secret     string `json:"secret"`
		Active     *bool  `json:"active"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "name is required", nil)
		return
	}
	u, err := url.Parse(req.WebhookURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "webhook_url must be an absolute http(s) URL", nil)
		return
	}

	integration := &models.Integration{
		Name:       req.Name,
		WebhookURL: u.String(),
		Active:     req.Active == nil || *req.Active,
	}

	if req.Secret != "" {
		ref, err := h.secrets.Seal(r.Context(), req.Secret)
		if err != nil {
			logBoundaryError(r, errors.Internal("seal secret", err), "integration secret not stored")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
			return
		}
		integration.SecretRef = ref
	}

	if err := h.integrations.Create(r.Context(), integration); err != nil {
		logBoundaryError(r, errors.Internal("create integration", err), "integration not created")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
		return
	}

	errors.WriteJSON(w, http.StatusCreated, integration)
}

func (h *IntegrationHandler) List(w http.ResponseWriter, r *http.Request) {
	integrations, err := h.integrations.List(r.Context())
	if err != nil {
		logBoundaryError(r, errors.Internal("list integrations", err), "integrations not listed")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
		return
	}
	if integrations == nil {
		integrations = []*models.Integration{}
	}

	errors.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"integrations": integrations,
	})
}
