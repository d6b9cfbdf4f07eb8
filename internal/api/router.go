// Tripcast - NYC Taxi Trip Duration Prediction and Monitoring
// Copyright 2026 Tripcast Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tripcast/tripcast

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Rate limits per endpoint class.
var (
	rateLimitPredict = 300
	rateLimitHealth  = 1000
)

// NewRouter assembles the Chi routing tree.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", h.HealthLive)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitHealth, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitPredict, time.Minute))
		r.Use(securityHeaders())

		r.Post("/predict", h.Predict)
		r.Get("/model", h.ModelInfo)
		r.Get("/monitor/report", h.MonitorReport)
		r.Post("/monitor/actuals", h.BackfillActual)
	})

	return r
}
