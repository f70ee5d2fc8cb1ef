package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/services"
)

// GameHandler serves the catalog.
type GameHandler struct {
	games *services.GameService
}

func NewGameHandler(games *services.GameService) *GameHandler {
	return &GameHandler{games: games}
}

func (h *GameHandler) List(w http.ResponseWriter, r *http.Request) {
	games, err := h.games.List(r.Context(), r.URL.Query().Get("search"))
	respond(w, r, games, err)
}

func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Game")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	game, err := h.games.Get(r.Context(), id)
	respond(w, r, game, err)
}

type createGameResponse struct {
	Message string    `json:"message"`
	GameID  uuid.UUID `json:"gameId"`
}

func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.GameInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	id, err := h.games.Create(r.Context(), req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, createGameResponse{Message: "Game created successfully", GameID: id})
}

func (h *GameHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Game")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	var req services.GameInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.games.Update(r.Context(), id, req); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Game updated successfully")
}

func (h *GameHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "Game")
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	if err := h.games.Delete(r.Context(), id); err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.Message(w, http.StatusOK, "Game deleted successfully")
}
