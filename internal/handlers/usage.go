package handlers

import (
	"net/http"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/services"
)

// UsageHandler serves the caller's usage rollups.
type UsageHandler struct {
	usage *services.Aggregator
}

func NewUsageHandler(usage *services.Aggregator) *UsageHandler {
	return &UsageHandler{usage: usage}
}

func (h *UsageHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.usage.Summary(r.Context(), caller(r).UserID())
	respond(w, r, s, err)
}

func (h *UsageHandler) Daily(w http.ResponseWriter, r *http.Request) {
	rows, err := h.usage.Daily(r.Context(), caller(r).UserID())
	respond(w, r, rows, err)
}

func (h *UsageHandler) Trend(w http.ResponseWriter, r *http.Request) {
	rows, err := h.usage.Trend(r.Context(), caller(r).UserID())
	respond(w, r, rows, err)
}

func (h *UsageHandler) History(w http.ResponseWriter, r *http.Request) {
	hist, err := h.usage.History(r.Context(), caller(r).UserID(), queryInt(r, "days"))
	respond(w, r, hist, err)
}

func respond(w http.ResponseWriter, r *http.Request, v any, err error) {
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}
