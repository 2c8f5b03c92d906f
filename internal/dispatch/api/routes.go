package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rabbitmq/amqp091-go"

	"ride-dispatch/internal/shared/health"
	"ride-dispatch/internal/shared/middleware"
	"ride-dispatch/internal/shared/util"
)

// Routes builds the coordinator's HTTP surface: the two websocket
// endpoints plus health. The websocket routes skip the logging wrapper so
// the upgrade hijack works on the raw ResponseWriter.
func Routes(h *WSHandler, db *pgxpool.Pool, rmq *amqp091.Connection, log *util.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/drivers", h.Drivers)
	mux.HandleFunc("/ws/riders", h.Riders)
	mux.Handle("/healthz", middleware.Logging(log, health.Handler("dispatch-coordinator", db, rmq)))
	mux.Handle("/", middleware.Logging(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			util.WriteJSONError(w, "not found", http.StatusNotFound)
			return
		}
		util.ResponseInJson(w, http.StatusOK, map[string]string{"service": "dispatch-coordinator"})
	})))
	return mux
}

// MetricsRoutes serves Prometheus scrapes on the side listener.
func MetricsRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
