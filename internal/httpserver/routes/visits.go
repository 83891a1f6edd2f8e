package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
	"github.com/MrSnakeDoc/visits/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/visits/internal/httpserver/mw"
)

func init() { Register(registerVisits) }

func registerVisits(r chi.Router, d deps.Deps) {
	r.Get("/", handlers.Root(d))
	r.With(mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.RateLimitBurst,
		RefillPerIPPerMin: d.RateLimitPerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})).Get("/ping", handlers.Ping(d))
	r.Get("/visits", handlers.Visits(d))
	r.Get("/visits/cache", handlers.VisitsCache(d))
}
