package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/testutil"
)

func TestGameIcon(t *testing.T) {
	assert.Equal(t, "🐉", GameIcon("RPG"))
	assert.Equal(t, "🏁", GameIcon("Racing"))
	assert.Equal(t, "🎮", GameIcon("Rhythm"))
}

func TestGameListView(t *testing.T) {
	endpoint := "/api/games/zelda"
	store := new(testutil.MockStore)
	store.On("ListGames", "zel").Return([]models.Game{{
		ID: uuid.New(), Title: "Zelda", Genre: "Adventure", Platform: "Switch",
		Rating: 4.8, APIEndpoint: &endpoint, Status: models.GameAvailable,
	}}, nil)

	games, err := NewGameService(store, nil).List(context.Background(), " zel ")
	require.NoError(t, err)
	require.Len(t, games, 1)
	g := games[0]
	assert.Equal(t, "🚀", g.Icon)
	assert.Equal(t, "Zelda - Adventure game available on Switch", g.Description)
	assert.True(t, g.APIAvailable)
	assert.Equal(t, &endpoint, g.APIEndpoint)
}

func TestGameCreateDefaults(t *testing.T) {
	store := new(testutil.MockStore)
	cache := new(testutil.MockCache)
	store.On("CreateGame", mock.MatchedBy(func(g *models.Game) bool {
		return g.Rating == 0 && g.Status == models.GameAvailable && g.APIEndpoint == nil
	})).Run(func(args mock.Arguments) {
		args.Get(0).(*models.Game).ID = uuid.New()
	}).Return(nil)
	cache.On("Invalidate").Return(nil)

	id, err := NewGameService(store, cache).Create(context.Background(), GameInput{
		Title: "Tetris", Genre: "Puzzle", Platform: "PC",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	cache.AssertExpectations(t)
}

func TestGameValidation(t *testing.T) {
	svc := NewGameService(new(testutil.MockStore), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, GameInput{Title: "Tetris", Genre: "Puzzle"})
	requireKind(t, err, KindValidation)

	_, err = svc.Create(ctx, GameInput{Title: "Tetris", Genre: "Puzzle", Platform: "PC", Status: "retired"})
	requireKind(t, err, KindValidation)

	err = svc.Update(ctx, uuid.New(), GameInput{Genre: "Puzzle", Platform: "PC"})
	requireKind(t, err, KindValidation)
}

func TestGameNotFound(t *testing.T) {
	id := uuid.New()
	store := new(testutil.MockStore)
	store.On("GetGame", id).Return(nil, database.ErrNotFound)
	store.On("UpdateGame", mock.Anything).Return(database.ErrNotFound)
	store.On("DeleteGame", id).Return(database.ErrNotFound)
	svc := NewGameService(store, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, id)
	requireKind(t, err, KindNotFound)
	assert.Equal(t, "Game not found", err.(*Error).Message)

	requireKind(t, svc.Update(ctx, id, GameInput{Title: "T", Genre: "G", Platform: "P"}), KindNotFound)
	requireKind(t, svc.Delete(ctx, id), KindNotFound)
}
