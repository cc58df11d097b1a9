package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/config"
	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/internal/wizard"
	"github.com/pitabwire/vesselwizard/model"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config             *config.Config
	Logger             *zap.Logger
	Authenticate       func(http.Handler) http.Handler
	Locales            LocaleNegotiator
	CapabilityResolver model.CapabilityResolver
	Definitions        *definition.Registry
	Wizard             *wizard.Engine
	Metrics            *observability.Metrics
	Readiness          observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public routes.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		r.Handle(deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api/wizard", func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(auth)
		r.Use(BuildRequestContext(deps.Config.Auth.ClaimPaths, deps.Locales))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Get("/transactions", handleTransactions(deps.Definitions, deps.CapabilityResolver))

		r.Post("/sessions", handleSessionStart(deps.Wizard))
		r.Get("/sessions", handleSessionList(deps.Wizard))
		r.Route("/sessions/{sessionId}", func(r chi.Router) {
			r.Get("/", handleSessionGet(deps.Wizard))
			r.Put("/fields", handleSessionFields(deps.Wizard))
			r.Post("/next", handleSessionNext(deps.Wizard))
			r.Post("/back", handleSessionBack(deps.Wizard))
			r.Post("/jump", handleSessionJump(deps.Wizard))
			r.Get("/units", handleSessionUnits(deps.Wizard))
			r.Post("/units", handleSessionSelectUnits(deps.Wizard))
			r.Post("/confirm", handleSessionConfirm(deps.Wizard))
			r.Post("/cancel", handleSessionCancel(deps.Wizard))
		})
	})

	return r
}
