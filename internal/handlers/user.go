package handlers

import (
	"net/http"
	"time"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/services"
)

// UserHandler serves the self-service surface: dashboard, usage views and
// key management.
type UserHandler struct {
	keys  *services.KeyService
	usage *services.Aggregator
}

func NewUserHandler(keys *services.KeyService, usage *services.Aggregator) *UserHandler {
	return &UserHandler{keys: keys, usage: usage}
}

func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.usage.Dashboard(r.Context(), caller(r).UserID())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

// Usage accepts an optional date (YYYY-MM-DD, UTC) and status filter.
func (h *UserHandler) Usage(w http.ResponseWriter, r *http.Request) {
	var filter services.UsageFilter
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			httpx.BadRequest(w, "date must be YYYY-MM-DD")
			return
		}
		filter.Date = day
	}
	filter.Status = queryInt(r, "status")

	v, err := h.usage.Usage(r.Context(), caller(r).UserID(), filter)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *UserHandler) Logs(w http.ResponseWriter, r *http.Request) {
	page, err := h.usage.Logs(r.Context(), caller(r).UserID(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *UserHandler) Explore(w http.ResponseWriter, r *http.Request) {
	items, err := h.usage.Explore(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *UserHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.keys.List(r.Context(), caller(r).UserID())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"apiKeys": keys})
}

type issuedKeyResponse struct {
	Message string `json:"message"`
	*services.IssuedKey
}

func (h *UserHandler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	issued, err := h.keys.Generate(r.Context(), caller(r).UserID(), services.LiveKeyPrefix)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issuedKeyResponse{Message: "API key generated successfully", IssuedKey: issued})
}

func (h *UserHandler) UpdateKeyStatus(w http.ResponseWriter, r *http.Request) {
	keyID, err := pathID(r, "id", "API key")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req struct {
		Status models.KeyStatus `json:"status"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	if err := h.keys.SetStatus(r.Context(), caller(r).UserID(), keyID, req.Status); err != nil {
		httpx.Error(w, r, err)
		return
	}
	verb := "disabled"
	if req.Status == models.KeyActive {
		verb = "enabled"
	}
	httpx.Message(w, http.StatusOK, "API key "+verb+" successfully")
}

// RevokeKey flips the key to revoked. The row and its history are kept.
func (h *UserHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	keyID, err := pathID(r, "id", "API key")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.keys.Revoke(r.Context(), caller(r).UserID(), keyID); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "API key revoked successfully")
}

func (h *UserHandler) RegenerateKey(w http.ResponseWriter, r *http.Request) {
	keyID, err := pathID(r, "id", "API key")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	issued, err := h.keys.Regenerate(r.Context(), caller(r).UserID(), keyID)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, issuedKeyResponse{Message: "API key regenerated successfully", IssuedKey: issued})
}
