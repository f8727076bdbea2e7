package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Metrics)
	r.Use(middleware.Recoverer)

	r.Get("/v1/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/scheduler", func(r chi.Router) {
		r.Get("/status", h.SchedulerStatus)
		r.Post("/start", h.SchedulerStart)
		r.Post("/stop", h.SchedulerStop)
	})

	r.Route("/v1/schedules", func(r chi.Router) {
		r.Post("/", h.CreateSchedule)
		r.Get("/", h.ListSchedules)
		r.Get("/active", h.ListActiveSchedules)
		r.Post("/sweep", h.SweepSchedules)
		r.Get("/{id}", h.GetSchedule)
		r.Patch("/{id}", h.UpdateSchedule)
		r.Put("/{id}", h.UpdateSchedule)
		r.Delete("/{id}", h.CancelSchedule)
	})

	r.Route("/v1/messages", func(r chi.Router) {
		r.Post("/send", h.SendMessage)
		r.Get("/history", h.ListHistory)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("message-scheduler"))
	})

	return r
}
