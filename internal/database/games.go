package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/models"
)

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

const gameColumns = `id, title, genre, platform, rating, api_endpoint, status, created_at`

// ListGames returns games whose title or genre contains search, ordered by
// title. Matching is case-insensitive on every driver.
func (db *DB) ListGames(ctx context.Context, search string) ([]models.Game, error) {
	pattern := "%" + search + "%"
	games := []models.Game{}
	err := db.conn.SelectContext(ctx, &games, db.rebind(`
		SELECT `+gameColumns+` FROM games
		WHERE LOWER(title) LIKE LOWER(?) OR LOWER(genre) LIKE LOWER(?)
		ORDER BY title ASC`), pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// ListExplorableGames returns games that expose an API endpoint.
func (db *DB) ListExplorableGames(ctx context.Context) ([]models.Game, error) {
	games := []models.Game{}
	err := db.conn.SelectContext(ctx, &games, `
		SELECT `+gameColumns+` FROM games
		WHERE api_endpoint IS NOT NULL
		ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list explorable games: %w", err)
	}
	return games, nil
}

func (db *DB) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	var g models.Game
	if err := db.conn.GetContext(ctx, &g, db.rebind(`SELECT `+gameColumns+` FROM games WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("get game: %w", classify(err))
	}
	return &g, nil
}

// CreateGame inserts a game. ID and CreatedAt are populated.
func (db *DB) CreateGame(ctx context.Context, g *models.Game) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO games (id, title, genre, platform, rating, api_endpoint, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		g.ID, g.Title, g.Genre, g.Platform, g.Rating, g.APIEndpoint, g.Status, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert game: %w", classify(err))
	}
	return nil
}

// UpdateGame replaces every mutable field of a game.
func (db *DB) UpdateGame(ctx context.Context, g *models.Game) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE games SET title = ?, genre = ?, platform = ?, rating = ?, api_endpoint = ?, status = ?
		WHERE id = ?`),
		g.Title, g.Genre, g.Platform, g.Rating, g.APIEndpoint, g.Status, g.ID)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return expectOne(result, "update game")
}

func (db *DB) DeleteGame(ctx context.Context, id uuid.UUID) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM games WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return expectOne(result, "delete game")
}

func (db *DB) CountGames(ctx context.Context) (int64, error) {
	var n int64
	if err := db.conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM games`); err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}
