package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
)

// GameStore is the catalog part of the store.
type GameStore interface {
	ListGames(ctx context.Context, search string) ([]models.Game, error)
	GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error)
	CreateGame(ctx context.Context, g *models.Game) error
	UpdateGame(ctx context.Context, g *models.Game) error
	DeleteGame(ctx context.Context, id uuid.UUID) error
}

// CacheInvalidator drops cached catalog responses after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// GameService is the catalog.
type GameService struct {
	store GameStore
	cache CacheInvalidator
}

// NewGameService returns a catalog service. cache may be nil.
func NewGameService(store GameStore, cache CacheInvalidator) *GameService {
	return &GameService{store: store, cache: cache}
}

var genreIcons = map[string]string{
	"Action":     "⚔️",
	"RPG":        "🐉",
	"Strategy":   "🏰",
	"Sports":     "🏎️",
	"Adventure":  "🚀",
	"Racing":     "🏁",
	"Puzzle":     "🧩",
	"Simulation": "🎮",
}

const defaultGameIcon = "🎮"

// GameIcon returns the icon shown for a genre.
func GameIcon(genre string) string {
	if icon, ok := genreIcons[genre]; ok {
		return icon
	}
	return defaultGameIcon
}

// GameView is how a catalog item is presented to callers.
type GameView struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Genre        string    `json:"genre"`
	Platform     string    `json:"platform"`
	Rating       float64   `json:"rating"`
	Icon         string    `json:"icon"`
	Description  string    `json:"description"`
	APIAvailable bool      `json:"apiAvailable"`
	APIEndpoint  *string   `json:"apiEndpoint"`
}

func toGameView(g models.Game) GameView {
	return GameView{
		ID:           g.ID,
		Title:        g.Title,
		Genre:        g.Genre,
		Platform:     g.Platform,
		Rating:       g.Rating,
		Icon:         GameIcon(g.Genre),
		Description:  fmt.Sprintf("%s - %s game available on %s", g.Title, g.Genre, g.Platform),
		APIAvailable: g.Status == models.GameAvailable,
		APIEndpoint:  g.APIEndpoint,
	}
}

// List returns games whose title or genre matches search.
func (s *GameService) List(ctx context.Context, search string) ([]GameView, error) {
	games, err := s.store.ListGames(ctx, strings.TrimSpace(search))
	if err != nil {
		return nil, internal("list games", err)
	}
	out := make([]GameView, 0, len(games))
	for _, g := range games {
		out = append(out, toGameView(g))
	}
	return out, nil
}

// ListRaw returns the stored games as they are, for the admin view.
func (s *GameService) ListRaw(ctx context.Context) ([]models.Game, error) {
	games, err := s.store.ListGames(ctx, "")
	if err != nil {
		return nil, internal("list games", err)
	}
	return games, nil
}

func (s *GameService) Get(ctx context.Context, id uuid.UUID) (*GameView, error) {
	g, err := s.store.GetGame(ctx, id)
	if err != nil {
		return nil, gameError(err, "get game")
	}
	v := toGameView(*g)
	return &v, nil
}

// GameInput is the body of create and update requests.
type GameInput struct {
	Title       string            `json:"title"`
	Genre       string            `json:"genre"`
	Platform    string            `json:"platform"`
	Rating      *float64          `json:"rating"`
	APIEndpoint *string           `json:"api_endpoint"`
	Status      models.GameStatus `json:"status"`
}

func (in GameInput) toModel() (*models.Game, error) {
	g := &models.Game{
		Title:    strings.TrimSpace(in.Title),
		Genre:    strings.TrimSpace(in.Genre),
		Platform: strings.TrimSpace(in.Platform),
		Status:   in.Status,
	}
	if g.Title == "" || g.Genre == "" || g.Platform == "" {
		return nil, newError(KindValidation, "Title, genre, and platform are required")
	}
	if in.Rating != nil {
		g.Rating = *in.Rating
	}
	if g.Status == "" {
		g.Status = models.GameAvailable
	}
	if !g.Status.Valid() {
		return nil, newError(KindValidation, "Status must be available or unavailable")
	}
	if in.APIEndpoint != nil {
		if ep := strings.TrimSpace(*in.APIEndpoint); ep != "" {
			g.APIEndpoint = &ep
		}
	}
	return g, nil
}

func (s *GameService) Create(ctx context.Context, in GameInput) (uuid.UUID, error) {
	g, err := in.toModel()
	if err != nil {
		return uuid.Nil, err
	}
	if err := s.store.CreateGame(ctx, g); err != nil {
		return uuid.Nil, internal("create game", err)
	}
	s.invalidate(ctx)
	return g.ID, nil
}

// Update replaces every mutable field of a game.
func (s *GameService) Update(ctx context.Context, id uuid.UUID, in GameInput) error {
	g, err := in.toModel()
	if err != nil {
		return err
	}
	g.ID = id
	if err := s.store.UpdateGame(ctx, g); err != nil {
		return gameError(err, "update game")
	}
	s.invalidate(ctx)
	return nil
}

func (s *GameService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteGame(ctx, id); err != nil {
		return gameError(err, "delete game")
	}
	s.invalidate(ctx)
	return nil
}

// invalidate is best effort; stale entries expire with their TTL.
func (s *GameService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx)
}

func gameError(err error, op string) error {
	if errors.Is(err, database.ErrNotFound) {
		return newError(KindNotFound, "Game not found")
	}
	return internal(op, err)
}
