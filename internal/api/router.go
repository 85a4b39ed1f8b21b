package api

import (
	"context"
	"net/http"

	apiContext "confix/internal/api/context"
	"confix/internal/api/handlers"
	"confix/internal/api/middleware"
	"confix/internal/pkg/clientip"
	"confix/internal/pkg/errors"
	"confix/internal/platform/auth"

	"github.com/julienschmidt/httprouter"
)

type Dependencies struct {
	PaymentWebhookHandler  *handlers.PaymentWebhookHandler
	CarrierCallbackHandler *handlers.CarrierCallbackHandler
	TrackingHandler        *handlers.TrackingHandler
	DispatchHandler        *handlers.DispatchHandler
	IntegrationHandler     *handlers.IntegrationHandler
	WebhookLogHandler      *handlers.WebhookLogHandler
	HealthHandler          *handlers.HealthHandler
	MetricsHandler         *handlers.MetricsHandler
	AuthMiddleware         *middleware.AuthMiddleware
	RateLimiter            *middleware.RateLimiter
	CarrierTokenHash       string
	ClientIP               *clientip.Resolver
	// PaymentWebhookToken reports whether the provider authenticates with a shared token.
	PaymentWebhookToken bool
}

// NewRouter registers every route and wraps the result with request context, access logging and panic recovery.
func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
	})
	router.MethodNotAllowed = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput, "Method not allowed", nil)
	})

	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Payment provider callbacks
	router.GET("/api/v1/webhooks/payments", wrap(deps.PaymentWebhookHandler.Probe))
	// A 429 makes the provider replay, so authenticated deliveries are not throttled.
	if deps.PaymentWebhookToken {
		router.POST("/api/v1/webhooks/payments", wrap(deps.PaymentWebhookHandler.Receive))
	} else {
		router.POST("/api/v1/webhooks/payments",
			chain(deps.PaymentWebhookHandler.Receive, deps.RateLimiter.Limit("payment_webhook")))
	}

	// Carrier/TMS callbacks
	router.POST("/api/v1/carrier/callback",
		chain(deps.CarrierCallbackHandler.Receive, deps.RateLimiter.Limit("carrier_callback"), middleware.CarrierAuth(deps.CarrierTokenHash)))

	// Public tracking; the gateway applies its own per-IP policy
	router.POST("/api/v1/tracking", wrap(deps.TrackingHandler.Lookup))

	authMid := deps.AuthMiddleware
	admin := deps.RateLimiter.Limit("admin")

	router.POST("/api/v1/admin/shipments/:shipment_id/dispatch",
		chain(deps.DispatchHandler.Dispatch, admin, authMid.Handle, requireRole(auth.RoleAdmin)))

	router.GET("/api/v1/admin/webhook-logs",
		chain(deps.WebhookLogHandler.List, admin, authMid.Handle, requireRole(auth.RoleAdmin)))
	router.GET("/api/v1/admin/webhook-logs/:log_id",
		chain(deps.WebhookLogHandler.Get, admin, authMid.Handle, requireRole(auth.RoleAdmin)))

	router.POST("/api/v1/admin/integrations",
		chain(deps.IntegrationHandler.Create, admin, authMid.Handle, requireRole(auth.RoleAdmin)))
	router.GET("/api/v1/admin/integrations",
		chain(deps.IntegrationHandler.List, admin, authMid.Handle, requireRole(auth.RoleAdmin)))

	return middleware.RequestContext(router, deps.ClientIP)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func requireRole(roles ...string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := r.Context().Value(apiContext.Claims).(*auth.Claims)

			allowed := false
			for _, role := range roles {
				if ok && claims.Role == role {
					allowed = true
					break
				}
			}

			if !allowed {
				errors.WriteError(w, http.StatusForbidden, errors.ErrCodeForbidden, "Insufficient permissions", nil)
				return
			}

			next(w, r)
		}
	}
}
