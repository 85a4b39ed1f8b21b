package api

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"confix/internal/api/handlers"
	"confix/internal/api/middleware"
	"confix/internal/engine/payments"
	"confix/internal/engine/shipments"
	"confix/internal/engine/tracking"
	"confix/internal/engine/webhooks"
	"confix/internal/pkg/clientip"
	"confix/internal/pkg/ratelimit"
	"confix/internal/platform/audit"
	"confix/internal/platform/auth"
	"confix/internal/platform/config"
	"confix/internal/platform/database/dbtest"
	"confix/internal/platform/repositories"
	"confix/internal/platform/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (http.Handler, *auth.TokenService) {
	t.Helper()
	router, tokens, _ := newConfiguredRouter(t, nil)
	return router, tokens
}

func newConfiguredRouter(t *testing.T, mutate func(*config.Config)) (http.Handler, *auth.TokenService, *sql.DB) {
	t.Helper()
	db := dbtest.New(t)
	cfg := config.Default()
	cfg.JWT.Secret = "router-test"
	if mutate != nil {
		mutate(cfg)
	}

	quotes := repositories.NewQuoteRepository(db)
	shipmentRepo := repositories.NewShipmentRepository(db)
	integrations := repositories.NewIntegrationRepository(db)
	logs := repositories.NewWebhookLogRepository(db)
	store, err := secrets.NewStore(db, "router-test-key")
	require.NoError(t, err)

	limiter := ratelimit.New()
	t.Cleanup(limiter.Stop)
	auditor := audit.NewLogger(logs)
	dispatcher := webhooks.NewDispatcher(shipmentRepo, integrations, logs, store, cfg.Webhooks)
	gateway := tracking.NewGateway(repositories.NewIPBlockRepository(db),
		repositories.NewTrackingRepository(db, cfg.Tracking.ViewRequestsPerMinute), logs, limiter, auditor, cfg.Tracking)
	tokens := auth.NewTokenService(cfg.JWT)
	ips, err := clientip.NewResolver(cfg.Tracking.TrustedProxyHeaders, cfg.Tracking.TrustedProxies)
	require.NoError(t, err)
	rateLimiter := middleware.NewRateLimiter(limiter)
	for family, perMinute := range cfg.Server.RateLimits {
		rateLimiter = rateLimiter.WithLimit(family, perMinute)
	}

	router := NewRouter(&Dependencies{
		PaymentWebhookHandler:  handlers.NewPaymentWebhookHandler(payments.NewReceiver(quotes, logs, cfg.Payments)),
		CarrierCallbackHandler: handlers.NewCarrierCallbackHandler(shipments.NewService(shipmentRepo), dispatcher, auditor),
		TrackingHandler:        handlers.NewTrackingHandler(gateway),
		DispatchHandler:        handlers.NewDispatchHandler(dispatcher),
		IntegrationHandler:     handlers.NewIntegrationHandler(integrations, store),
		WebhookLogHandler:      handlers.NewWebhookLogHandler(logs),
		HealthHandler:          handlers.NewHealthHandler(db),
		MetricsHandler:         handlers.NewMetricsHandler(logs),
		AuthMiddleware:         middleware.NewAuthMiddleware(tokens),
		RateLimiter:            rateLimiter,
		ClientIP:               ips,
		PaymentWebhookToken:    cfg.Payments.WebhookToken != "",
	})
	return router, tokens, db
}

func serve(h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_PublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/webhooks/payments", "", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/tracking", `{"trackingCode":"CFX000000"}`, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/carrier/callback", `{"shipmentId":"shp_missing"}`, "").Code)

	rr := serve(router, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Route not found")
	assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_AdminRequiresAdminToken(t *testing.T) {
	router, tokens := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/api/v1/admin/integrations", "", "").Code)

	viewer, err := tokens.GenerateAccessToken("viewer", "viewer")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/api/v1/admin/integrations", "", viewer).Code)

	admin, err := tokens.GenerateAccessToken("ops", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/admin/integrations", "", admin).Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/v1/admin/webhook-logs", "", admin).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/admin/shipments/shp_missing/dispatch", "", admin).Code)
	assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/api/v1/admin/shipments/shp_1/dispatch?mode=queue", "", admin).Code)
}

func TestRouter_CarrierToken(t *testing.T) {
	hash, err := auth.HashCallbackToken("carrier-secret")
	require.NoError(t, err)

	db := dbtest.New(t)
	shipmentRepo := repositories.NewShipmentRepository(db)
	logs := repositories.NewWebhookLogRepository(db)
	limiter := ratelimit.New()
	t.Cleanup(limiter.Stop)
	dispatcher := webhooks.NewDispatcher(shipmentRepo, repositories.NewIntegrationRepository(db), logs, nil, config.Default().Webhooks)

	router := NewRouter(&Dependencies{
		CarrierCallbackHandler: handlers.NewCarrierCallbackHandler(shipments.NewService(shipmentRepo), dispatcher, audit.NewLogger(logs)),
		RateLimiter:            middleware.NewRateLimiter(limiter),
		CarrierTokenHash:       hash,
		// handlers not exercised by this test
		PaymentWebhookHandler: &handlers.PaymentWebhookHandler{},
		TrackingHandler:       &handlers.TrackingHandler{},
		DispatchHandler:       &handlers.DispatchHandler{},
		IntegrationHandler:    &handlers.IntegrationHandler{},
		WebhookLogHandler:     &handlers.WebhookLogHandler{},
		HealthHandler:         &handlers.HealthHandler{},
		MetricsHandler:        &handlers.MetricsHandler{},
		AuthMiddleware:        middleware.NewAuthMiddleware(auth.NewTokenService(config.JWTConfig{Secret: "x", AccessTokenTTL: time.Hour})),
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodPost, "/api/v1/carrier/callback", `{"shipmentId":"shp_1"}`, "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodPost, "/api/v1/carrier/callback", `{"shipmentId":"shp_1"}`, "carrier-secret").Code)
}

func TestRouter_ForwardedHeaderCannotEscapeBlock(t *testing.T) {
	router, _, db := newConfiguredRouter(t, func(cfg *config.Config) {
		cfg.Tracking.TrustedProxies = []string{"10.0.0.0/8"}
	})
	now := time.Now()
	require.NoError(t, repositories.NewIPBlockRepository(db).Block(context.Background(), "203.0.113.7", "manual", now.Add(time.Hour), now))

	lookup := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tracking", strings.NewReader(`{"trackingCode":"CFX000000"}`))
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusForbidden, lookup("203.0.113.7:4000", ""))
	assert.Equal(t, http.StatusForbidden, lookup("203.0.113.7:4000", "198.51.100.1"), "header from an untrusted peer")
	assert.Equal(t, http.StatusForbidden, lookup("10.0.0.2:80", "198.51.100.1, 203.0.113.7"), "left-most hop is caller supplied")
	assert.Equal(t, http.StatusNotFound, lookup("10.0.0.2:80", "203.0.113.8"))
}

func TestRouter_AuthenticatedPaymentWebhookIsNotThrottled(t *testing.T) {
	post := func(router http.Handler) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(`{}`))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	open, _, _ := newConfiguredRouter(t, func(cfg *config.Config) {
		cfg.Server.RateLimits = map[string]int{"payment_webhook": 1}
	})
	post(open)
	assert.Equal(t, http.StatusTooManyRequests, post(open))

	authenticated, _, _ := newConfiguredRouter(t, func(cfg *config.Config) {
		cfg.Server.RateLimits = map[string]int{"payment_webhook": 1}
		cfg.Payments.WebhookToken = "provider-token"
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusUnauthorized, post(authenticated))
	}
}
