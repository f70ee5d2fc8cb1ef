package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
)

// MockStore implements the store interfaces the services depend on.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user *models.User, monthlyLimit int64) error {
	args := m.Called(user, monthlyLimit)
	return args.Error(0)
}

func (m *MockStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockStore) GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	args := m.Called(hash)
	key, _ := args.Get(0).(*models.APIKey)
	return key, args.Error(1)
}

func (m *MockStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockStore) ListUserAPIKeys(ctx context.Context, userID uuid.UUID) ([]database.KeyUsage, error) {
	args := m.Called(userID)
	keys, _ := args.Get(0).([]database.KeyUsage)
	return keys, args.Error(1)
}

func (m *MockStore) SetAPIKeyStatus(ctx context.Context, id, userID uuid.UUID, status models.KeyStatus) error {
	args := m.Called(id, userID, status)
	return args.Error(0)
}

func (m *MockStore) RevokeAPIKey(ctx context.Context, id, userID uuid.UUID) error {
	args := m.Called(id, userID)
	return args.Error(0)
}

func (m *MockStore) ReplaceAPIKeyHash(ctx context.Context, id, userID uuid.UUID, hash, prefix string) error {
	args := m.Called(id, userID, hash, prefix)
	return args.Error(0)
}

func (m *MockStore) LogRequest(ctx context.Context, entry *models.RequestLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

func (m *MockStore) IncrementUsage(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStore) ReserveUsage(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ReleaseUsage(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(userID)
	return args.Error(0)
}

func (m *MockStore) TouchAPIKey(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(id, at)
	return args.Error(0)
}

func (m *MockStore) ListGames(ctx context.Context, search string) ([]models.Game, error) {
	args := m.Called(search)
	games, _ := args.Get(0).([]models.Game)
	return games, args.Error(1)
}

func (m *MockStore) GetGame(ctx context.Context, id uuid.UUID) (*models.Game, error) {
	args := m.Called(id)
	game, _ := args.Get(0).(*models.Game)
	return game, args.Error(1)
}

func (m *MockStore) CreateGame(ctx context.Context, g *models.Game) error {
	args := m.Called(g)
	return args.Error(0)
}

func (m *MockStore) UpdateGame(ctx context.Context, g *models.Game) error {
	args := m.Called(g)
	return args.Error(0)
}

func (m *MockStore) DeleteGame(ctx context.Context, id uuid.UUID) error {
	args := m.Called(id)
	return args.Error(0)
}

// MockCache records catalog invalidations.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Invalidate(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
