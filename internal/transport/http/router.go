package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the engine's HTTP surface.
func NewRouter(reservations ReservationManager, checkout CheckoutCoordinator, admin AdminAPI, corsOrigins []string, logger *logrus.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", HealthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/reservations", func(r chi.Router) {
		r.Post("/", HandleCreateReservation(reservations))
		r.Get("/", HandleListReservations(reservations))
		r.Post("/{id}/extend", HandleExtendReservation(reservations))
		r.Put("/{id}/quantity", HandleReplaceQuantity(reservations))
		r.Delete("/{id}", HandleReleaseReservation(reservations))
		r.Get("/{id}/events", HandleReservationHistory(reservations))
		r.Post("/{id}/commit", HandleCommitReservation(checkout))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/variants", HandleCreateVariant(admin))
		r.Get("/variants", HandleListVariants(admin))
		r.Get("/variants/{id}/inventory", HandleGetInventory(admin))
		r.Post("/variants/{id}/stock-adjustments", HandleAdjustStock(admin))
		r.Get("/low-stock", HandleListLowStock(admin))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})

	return r
}
