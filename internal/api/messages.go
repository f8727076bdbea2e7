package api

import (
	"net/http"

	"github.com/LeventeLantos/message-scheduler/internal/service"
)

type sendRequest struct {
	Channel   string  `json:"channel"`
	ContactID int64   `json:"contact_id" validate:"required,gt=0"`
	Subject   *string `json:"subject"`
	Body      string  `json:"body"`
}

// SendMessage dispatches immediately, bypassing the schedule.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rec, err := h.svc.SendNow(r.Context(), service.SendInput{
		Channel:   req.Channel,
		ContactID: req.ContactID,
		Subject:   req.Subject,
		Body:      req.Body,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.svc.History(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
