package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/aegis/internal/adapters/web/middleware"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.DashboardHandler.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.Hub.HandleWebSocket)

	// Views
	r.HandleFunc("/api/view", s.DashboardHandler.HandleGetView).Methods(http.MethodGet)
	r.HandleFunc("/api/view", s.DashboardHandler.HandleSetView).Methods(http.MethodPut)
	r.HandleFunc("/api/views", s.DashboardHandler.HandleNavigation).Methods(http.MethodGet)
	r.HandleFunc("/api/views/{id}", s.DashboardHandler.HandleRenderView).Methods(http.MethodGet)

	// Telemetry
	r.HandleFunc("/api/events", s.DashboardHandler.HandleEvents).Methods(http.MethodGet)
	r.HandleFunc("/api/events/{id}/frame", s.DashboardHandler.HandleFrame).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.DashboardHandler.HandleStats).Methods(http.MethodGet)
	r.HandleFunc("/api/capture.pcap", s.DashboardHandler.HandleCapture).Methods(http.MethodGet)

	// Forensic analyzer
	r.Handle("/api/analyze", middleware.RateLimitMiddleware(s.AnalyzeLimiter)(http.HandlerFunc(s.AnalysisHandler.HandleAnalyze))).Methods(http.MethodPost)
	r.HandleFunc("/api/analyzer", s.AnalysisHandler.HandleGetAnalyzer).Methods(http.MethodGet)
	r.HandleFunc("/api/analyzer", s.AnalysisHandler.HandleResetAnalyzer).Methods(http.MethodDelete)
	r.HandleFunc("/api/reports/analysis", s.AnalysisHandler.HandleExportReport).Methods(http.MethodPost)

	return r
}
