package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LeventeLantos/message-scheduler/internal/model"
	"github.com/LeventeLantos/message-scheduler/internal/scheduler"
	"github.com/LeventeLantos/message-scheduler/internal/service"
)

// Schedules is the lifecycle surface the handlers drive.
type Schedules interface {
	Create(ctx context.Context, in service.CreateInput) (model.ScheduleEntry, error)
	Get(ctx context.Context, id int64) (model.ScheduleEntry, error)
	List(ctx context.Context, f model.ScheduleFilter) ([]model.ScheduleEntry, error)
	ListActive(ctx context.Context) ([]model.ScheduleEntry, error)
	Update(ctx context.Context, id int64, p model.SchedulePatch) (model.ScheduleEntry, error)
	Cancel(ctx context.Context, id int64) (model.ScheduleEntry, error)
	Sweep(ctx context.Context) (int, error)
	SendNow(ctx context.Context, in service.SendInput) (model.DispatchRecord, error)
	History(ctx context.Context, limit, offset int) ([]model.DispatchRecord, error)
}

type Handler struct {
	sched *scheduler.Scheduler
	svc   Schedules
}

func NewHandler(s *scheduler.Scheduler, svc Schedules) *Handler {
	return &Handler{sched: s, svc: svc}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, h.sched.Status())
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// writeServiceError maps service errors onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var dErr *service.DispatchError

	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &dErr):
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   service.ErrDispatchFailure.Error(),
			"channel": dErr.Channel,
			"detail":  dErr.Detail,
		})
	case errors.Is(err, service.ErrInvalidChannel),
		errors.Is(err, service.ErrMissingRecipientAddress),
		errors.Is(err, service.ErrPastSchedule),
		errors.Is(err, service.ErrInvalidBody),
		errors.Is(err, service.ErrInvalidState):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
