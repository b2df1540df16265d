package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tariff-routing-service/internal/handler"
)

func SetupRoutes(
	r chi.Router,
	h *handler.EngineHandler,
	rdb *redis.Client,
	logger *zap.Logger,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-ID", "X-Admin-Role"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false, // must be false when using "*"
		MaxAge:           300,
	}))
	r.Use(RateLimiter(rdb, 300, time.Minute, 10*time.Minute, "global"))

	// ---- Mount all routes under /engine/svc ----
	r.Route("/engine/svc", func(er chi.Router) {

		// ---- Public routes ----
		er.Group(func(pub chi.Router) {
			pub.Get("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
		})

		// ---- Resolution ----
		er.Route("/resolve", func(res chi.Router) {
			res.Post("/fee", h.ResolveFee)
			res.Post("/partner", h.RoutePartner)
		})
		er.Post("/meter/record", h.RecordUsage)
		er.Get("/audit/{transactionRef}", h.GetAuditTrail)

		// ---- Tariff administration ----
		er.Route("/tariffs", func(t chi.Router) {
			t.Post("/", h.CreateTariff)
			t.Get("/", h.ListTariffs)
			t.Get("/{id}", h.GetTariff)
			t.Put("/{id}", h.UpdateTariff)
			t.Post("/{id}/decision", h.DecideTariff)
			t.Post("/{id}/deactivate", h.DeactivateTariff)
		})

		// ---- Partner administration ----
		er.Route("/partners", func(p chi.Router) {
			p.Post("/", h.CreatePartner)
			p.Get("/", h.ListPartners)
			p.Get("/{id}", h.GetPartner)
			p.Put("/{id}", h.UpdatePartner)
			p.Post("/{id}/decision", h.DecidePartner)
			p.Post("/{id}/deactivate", h.DeactivatePartner)
			p.Post("/{id}/suspend", h.SuspendPartner)
			p.With(PartnerRateLimit(rdb, 600, logger)).Post("/{id}/admit", h.CheckAdmission)
			p.Post("/{id}/keys", h.IssueAPIKey)
			p.Delete("/{id}/keys/{keyID}", h.RevokeAPIKey)
		})
	})

	return r
}
