package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/auth"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/metrics"
)

// RouterConfig collects what NewRouter wires together.
type RouterConfig struct {
	Events      *EventHandler
	Tokens      *auth.TokenService
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
	CORSOrigins string
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := cfg.Events
	authn := Authenticate(cfg.Tokens)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))          // structured access log
	r.Use(Instrument(cfg.Metrics))
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/health", HealthCheck)
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/locations", h.ListLocations)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/fields", h.ListCustomFields)

		r.Group(func(r chi.Router) {
			r.Use(authn)
			r.Post("/", h.CreateEvent)
			r.Patch("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.DeleteEvent)
			r.Put("/{id}/fields", h.ReplaceCustomFields)
			r.Post("/{id}/register", h.Register)
			r.Delete("/{id}/register", h.Withdraw)
			r.Get("/{id}/participants", h.ListParticipants)
			r.Post("/{id}/participants", h.AddParticipant)
		})
	})

	r.Route("/registrations", func(r chi.Router) {
		r.Use(authn)
		r.Delete("/{id}", h.RemoveParticipant)
		r.Post("/{id}/promote", h.Promote)
		r.Post("/{id}/demote", h.Demote)
	})

	r.With(authn).Get("/me/registrations", h.MyRegistrations)

	return r
}
