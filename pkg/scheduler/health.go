package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/gabriel-ai-assistant/police-scanner/pkg/common/logger"
	"github.com/gabriel-ai-assistant/police-scanner/pkg/observability/metrics"
)

type statusSource interface {
	ActiveJobs() int
	ShuttingDown() bool
}

// HealthServer answers container liveness probes and exposes the
// process metrics snapshot.
type HealthServer struct {
	server *http.Server
	status statusSource
}

func NewHealthServer(host, port string, status statusSource) *HealthServer {
	h := &HealthServer{status: status}

	router := mux.NewRouter()
	router.Use(recovery, requestLogging)
	router.HandleFunc("/health", h.handleHealth).Methods("GET")
	router.HandleFunc("/healthz", h.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", h.handleMetrics).Methods("GET")

	h.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%s", host, port),
		Handler: router,
	}
	return h
}

func (h *HealthServer) Start() {
	go func() {
		logger.Log.WithField("addr", h.server.Addr).Info("Health endpoint listening")
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start health server")
		}
	}()
}

func (h *HealthServer) Stop(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.status.ShuttingDown() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      "shutting_down",
			"active_jobs": h.status.ActiveJobs(),
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "healthy",
		"active_jobs": h.status.ActiveJobs(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}
