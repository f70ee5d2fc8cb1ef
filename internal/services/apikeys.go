package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
)

// Key prefixes. Live keys are issued to users; test keys only from the CLI.
const (
	LiveKeyPrefix = "gv_live_"
	TestKeyPrefix = "gv_test_"
)

const (
	keyRandomBytes   = 24
	keyDisplayLength = 12
)

// GenerateKey returns prefix followed by 48 random hex characters.
func GenerateKey(prefix string) (string, error) {
	b := make([]byte, keyRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return prefix + hex.EncodeToString(b), nil
}

// HashKey returns the hex-encoded SHA-256 of a raw key. Only the hash is
// stored.
func HashKey(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

func displayPrefix(raw string) string {
	if len(raw) <= keyDisplayLength {
		return raw
	}
	return raw[:keyDisplayLength]
}

// KeyStore is the part of the store used for key management.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListUserAPIKeys(ctx context.Context, userID uuid.UUID) ([]database.KeyUsage, error)
	SetAPIKeyStatus(ctx context.Context, id, userID uuid.UUID, status models.KeyStatus) error
	RevokeAPIKey(ctx context.Context, id, userID uuid.UUID) error
	ReplaceAPIKeyHash(ctx context.Context, id, userID uuid.UUID, hash, prefix string) error
}

// KeyService issues and manages API keys for their owners.
type KeyService struct {
	store KeyStore
}

func NewKeyService(store KeyStore) *KeyService {
	return &KeyService{store: store}
}

// IssuedKey is returned once, when key material is created.
type IssuedKey struct {
	ID     uuid.UUID `json:"key_id"`
	RawKey string    `json:"apiKey"`
}

// Generate creates an active key for userID.
func (s *KeyService) Generate(ctx context.Context, userID uuid.UUID, prefix string) (*IssuedKey, error) {
	raw, err := GenerateKey(prefix)
	if err != nil {
		return nil, internal("generate api key", err)
	}
	key := &models.APIKey{
		UserID:    userID,
		KeyHash:   HashKey(raw),
		KeyPrefix: displayPrefix(raw),
		Status:    models.KeyActive,
	}
	if err := s.store.CreateAPIKey(ctx, key); err != nil {
		return nil, internal("create api key", err)
	}
	return &IssuedKey{ID: key.ID, RawKey: raw}, nil
}

// KeyView is how an owner sees one of their keys. The raw key is never
// shown again after creation.
type KeyView struct {
	ID           uuid.UUID        `json:"id"`
	KeyPrefix    string           `json:"key_prefix"`
	Status       models.KeyStatus `json:"status"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	LastUsed     *time.Time       `json:"last_used"`
	RequestCount int64            `json:"request_count"`
}

func (s *KeyService) List(ctx context.Context, userID uuid.UUID) ([]KeyView, error) {
	keys, err := s.store.ListUserAPIKeys(ctx, userID)
	if err != nil {
		return nil, internal("list api keys", err)
	}
	out := make([]KeyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyView{
			ID:           k.ID,
			KeyPrefix:    k.KeyPrefix,
			Status:       k.Status,
			IsActive:     k.Status == models.KeyActive,
			CreatedAt:    k.CreatedAt,
			LastUsed:     k.LastUsed,
			RequestCount: k.RequestCount,
		})
	}
	return out, nil
}

// SetStatus enables or disables a key. Revoked keys cannot change status.
func (s *KeyService) SetStatus(ctx context.Context, userID, keyID uuid.UUID, status models.KeyStatus) error {
	if status != models.KeyActive && status != models.KeyDisabled {
		return newError(KindValidation, "Invalid status")
	}
	return keyWriteError(s.store.SetAPIKeyStatus(ctx, keyID, userID, status), "update api key")
}

// Revoke permanently disables a key. The row is kept for history.
func (s *KeyService) Revoke(ctx context.Context, userID, keyID uuid.UUID) error {
	return keyWriteError(s.store.RevokeAPIKey(ctx, keyID, userID), "revoke api key")
}

// Regenerate replaces a key's material in place and returns the new raw key.
func (s *KeyService) Regenerate(ctx context.Context, userID, keyID uuid.UUID) (*IssuedKey, error) {
	raw, err := GenerateKey(LiveKeyPrefix)
	if err != nil {
		return nil, internal("generate api key", err)
	}
	if err := s.store.ReplaceAPIKeyHash(ctx, keyID, userID, HashKey(raw), displayPrefix(raw)); err != nil {
		return nil, keyWriteError(err, "regenerate api key")
	}
	return &IssuedKey{ID: keyID, RawKey: raw}, nil
}

func keyWriteError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrNotFound):
		return newError(KindNotFound, "API key not found")
	case errors.Is(err, database.ErrConflict):
		return newError(KindConflict, "API key has been revoked")
	default:
		return internal(op, err)
	}
}
