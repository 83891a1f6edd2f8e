package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/visits/internal/httpserver/deps"
	"github.com/MrSnakeDoc/visits/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/visits/internal/httpserver/mw"
)

func init() { Register(registerCache) }

func registerCache(r chi.Router, d deps.Deps) {
	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger), mw.EnforceHost(d.AllowedHosts, d.Logger))
	admin.Post("/cache/clear", handlers.ClearCache(d))
	admin.Post("/cache/warm", handlers.WarmCache(d))
	admin.Get("/visits/recent", handlers.RecentVisits(d))
}
