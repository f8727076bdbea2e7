package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeventeLantos/message-scheduler/internal/model"
	"github.com/LeventeLantos/message-scheduler/internal/service"
)

type createScheduleRequest struct {
	Channel     string  `json:"channel"`
	ContactID   int64   `json:"contact_id" validate:"required,gt=0"`
	Subject     *string `json:"subject"`
	Body        string  `json:"body"`
	ScheduledAt string  `json:"scheduled_at" validate:"required"`
}

type updateScheduleRequest struct {
	Subject     *string `json:"subject"`
	Body        *string `json:"body" validate:"required_without_all=Subject ScheduledAt"`
	ScheduledAt *string `json:"scheduled_at"`
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req createScheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	at, err := parseTime(req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := h.svc.Create(r.Context(), service.CreateInput{
		Channel:     req.Channel,
		ContactID:   req.ContactID,
		Subject:     req.Subject,
		Body:        req.Body,
		ScheduledAt: at,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.ScheduleFilter{
		ContactID: int64(parseInt(q.Get("contact_id"), 0)),
		Limit:     parseInt(q.Get("limit"), 100),
		Offset:    parseInt(q.Get("offset"), 0),
	}
	if raw := q.Get("status"); raw != "" {
		st, ok := model.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid status "+strconv.Quote(raw))
			return
		}
		f.Status = st
	}

	items, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListActiveSchedules(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	e, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	var req updateScheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	patch := model.SchedulePatch{Subject: req.Subject, Body: req.Body}
	if req.ScheduledAt != nil {
		at, err := parseTime(*req.ScheduledAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		patch.ScheduledAt = &at
	}

	e, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) CancelSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := scheduleID(w, r)
	if !ok {
		return
	}

	e, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": e.ID, "status": e.Status})
}

func (h *Handler) SweepSchedules(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n, err := h.svc.Sweep(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"processed":   n,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func scheduleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return 0, false
	}
	return id, true
}
