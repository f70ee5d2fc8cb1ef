package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the privilege level of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// UserStatus controls whether a user may authenticate.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

func (s UserStatus) Valid() bool {
	return s == UserActive || s == UserSuspended
}

// KeyStatus is the lifecycle state of an API key. Revoked is terminal.
type KeyStatus string

const (
	KeyActive   KeyStatus = "active"
	KeyDisabled KeyStatus = "disabled"
	KeyRevoked  KeyStatus = "revoked"
)

// GameStatus tells whether a catalog item's API is available.
type GameStatus string

const (
	GameAvailable   GameStatus = "available"
	GameUnavailable GameStatus = "unavailable"
)

func (s GameStatus) Valid() bool {
	return s == GameAvailable || s == GameUnavailable
}

// User represents a registered account
type User struct {
	ID           uuid.UUID  `db:"id" json:"user_id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         Role       `db:"role" json:"role"`
	Status       UserStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// APIKey represents an issued API key. Only the hash of the key is stored.
type APIKey struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	UserID    uuid.UUID  `db:"user_id" json:"user_id"`
	KeyHash   string     `db:"key_hash" json:"-"`
	KeyPrefix string     `db:"key_prefix" json:"key_prefix"`
	Status    KeyStatus  `db:"status" json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	LastUsed  *time.Time `db:"last_used" json:"last_used"`
}

// Quota is the monthly allowance of successful requests for a user.
type Quota struct {
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	MonthlyLimit int64     `db:"monthly_limit" json:"limit"`
	CurrentUsage int64     `db:"current_usage" json:"used"`
}

// Remaining never goes below zero.
func (q Quota) Remaining() int64 {
	if q.CurrentUsage >= q.MonthlyLimit {
		return 0
	}
	return q.MonthlyLimit - q.CurrentUsage
}

// RequestLog represents a logged HTTP request
type RequestLog struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         *uuid.UUID `db:"user_id" json:"user_id,omitempty"`    // Nullable for unauthenticated requests
	APIKeyID       *uuid.UUID `db:"api_key_id" json:"api_key_id,omitempty"` // Set only for key-authenticated requests
	Endpoint       string     `db:"endpoint" json:"endpoint"`
	Method         string     `db:"method" json:"method"`
	StatusCode     int        `db:"status_code" json:"status_code"`
	ResponseTimeMs int64      `db:"response_time_ms" json:"response_time_ms"`
	CreatedAt      time.Time  `db:"created_at" json:"timestamp"`
}

// Game is a catalog item.
type Game struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	Genre       string     `db:"genre" json:"genre"`
	Platform    string     `db:"platform" json:"platform"`
	Rating      float64    `db:"rating" json:"rating"`
	APIEndpoint *string    `db:"api_endpoint" json:"api_endpoint"`
	Status      GameStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
