package handlers

import (
	"net/http"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/services"
)

// AdminHandler serves the admin console: user management, catalog and key
// listings, and the monitoring views.
type AdminHandler struct {
	admin *services.AdminService
	usage *services.Aggregator
	games *services.GameService
}

func NewAdminHandler(admin *services.AdminService, usage *services.Aggregator, games *services.GameService) *AdminHandler {
	return &AdminHandler{admin: admin, usage: usage, games: games}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.usage.AdminDashboard(r.Context())
	respond(w, r, d, err)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	respond(w, r, users, err)
}

func (h *AdminHandler) UpdateUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "User")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req struct {
		Status models.UserStatus `json:"status"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.admin.SetUserStatus(r.Context(), id, req.Status); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "User updated", "status": req.Status})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "User")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req services.UserUpdate
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.admin.UpdateUser(r.Context(), id, req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "User updated successfully")
}

func (h *AdminHandler) SetQuota(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "User")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req struct {
		MonthlyLimit *int64 `json:"monthly_limit"`
	}
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if req.MonthlyLimit == nil {
		httpx.BadRequest(w, "monthly_limit is required")
		return
	}
	if err := h.admin.SetMonthlyLimit(r.Context(), id, *req.MonthlyLimit); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Quota updated successfully")
}

type adminGame struct {
	models.Game
	APIAvailable bool `json:"apiAvailable"`
}

func (h *AdminHandler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.ListRaw(r.Context())
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	out := make([]adminGame, 0, len(games))
	for _, g := range games {
		out = append(out, adminGame{Game: g, APIAvailable: g.Status == models.GameAvailable})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *AdminHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.admin.ListAPIKeys(r.Context())
	respond(w, r, keys, err)
}

func (h *AdminHandler) Logs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.usage.RecentLogs(r.Context())
	respond(w, r, logs, err)
}

func (h *AdminHandler) LogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.usage.LogStats(r.Context())
	respond(w, r, stats, err)
}

func (h *AdminHandler) MonitoringStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.usage.MonitoringStats(r.Context())
	respond(w, r, stats, err)
}

func (h *AdminHandler) StatusDistribution(w http.ResponseWriter, r *http.Request) {
	dist, err := h.usage.StatusDistribution(r.Context())
	respond(w, r, dist, err)
}

func (h *AdminHandler) TopEndpoints(w http.ResponseWriter, r *http.Request) {
	top, err := h.usage.TopEndpoints(r.Context())
	respond(w, r, top, err)
}

func (h *AdminHandler) Volume(w http.ResponseWriter, r *http.Request) {
	vol, err := h.usage.Volume(r.Context())
	respond(w, r, vol, err)
}

func (h *AdminHandler) ResponseTime(w http.ResponseWriter, r *http.Request) {
	rt, err := h.usage.ResponseTime(r.Context())
	respond(w, r, rt, err)
}
