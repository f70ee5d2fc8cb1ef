package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gamevault/api-gateway/internal/database"
	"github.com/gamevault/api-gateway/internal/models"
)

// AuthMethod tells how a principal proved its identity.
type AuthMethod string

const (
	MethodSession AuthMethod = "session"
	MethodAPIKey  AuthMethod = "api_key"
)

// Principal is a resolved caller. Handlers only rely on this interface; the
// concrete type says which credential was used.
type Principal interface {
	UserID() uuid.UUID
	Role() models.Role
	Method() AuthMethod
}

// SessionPrincipal comes from a verified session token. Its role is taken
// from the token claims, not from the store.
type SessionPrincipal struct {
	ID       uuid.UUID
	UserRole models.Role
}

func (p SessionPrincipal) UserID() uuid.UUID  { return p.ID }
func (p SessionPrincipal) Role() models.Role  { return p.UserRole }
func (p SessionPrincipal) Method() AuthMethod { return MethodSession }

// KeyPrincipal comes from an API key. Owner details are read from the store
// on every request.
type KeyPrincipal struct {
	ID       uuid.UUID
	UserRole models.Role
	Name     string
	Email    string
	KeyID    uuid.UUID
}

func (p KeyPrincipal) UserID() uuid.UUID  { return p.ID }
func (p KeyPrincipal) Role() models.Role  { return p.UserRole }
func (p KeyPrincipal) Method() AuthMethod { return MethodAPIKey }

// AuthMode selects which credentials a route accepts.
type AuthMode int

const (
	// ModeFlexible accepts an API key or a session token. A present key wins.
	ModeFlexible AuthMode = iota
	// ModeAPIKey accepts only API keys.
	ModeAPIKey
	// ModeSession accepts only session tokens.
	ModeSession
)

// Credentials is the raw credential material of one request.
type Credentials struct {
	APIKey      string
	BearerToken string
}

// AuthError is a failed authentication. When an API key resolved to its
// owner before being refused, Owner and KeyID identify them so the attempt
// can be attributed.
type AuthError struct {
	Err   *Error
	Owner *uuid.UUID
	KeyID *uuid.UUID
}

func (e *AuthError) Error() string { return e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

const (
	msgInvalidKey   = "Invalid or inactive API key"
	msgInvalidToken = "Invalid or expired token"
)

// UserStore is the part of the store used for accounts and authentication.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User, monthlyLimit int64) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetAPIKeyByHash(ctx context.Context, hash string) (*models.APIKey, error)
}

// AuthService registers users, issues session tokens and resolves
// credentials to principals.
type AuthService struct {
	store        UserStore
	jwtSecret    []byte
	tokenTTL     time.Duration
	monthlyLimit int64
	now          func() time.Time
}

func NewAuthService(store UserStore, jwtSecret string, tokenTTL time.Duration, monthlyLimit int64) *AuthService {
	return &AuthService{
		store:        store,
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		monthlyLimit: monthlyLimit,
		now:          time.Now,
	}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a user with the user role and a fresh quota.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.createUser(ctx, in, models.RoleUser)
}

// CreateAdmin creates a user with the admin role.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.createUser(ctx, in, models.RoleAdmin)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, newError(KindValidation, "All fields are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, newError(KindValidation, "Invalid email address")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internal("hash password", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		Status:       models.UserActive,
	}
	if err := s.store.CreateUser(ctx, user, s.monthlyLimit); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return nil, newError(KindConflict, "Email already registered")
		}
		return nil, internal("create user", err)
	}
	return user, nil
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies a password and issues a session token. Unknown users,
// suspended users and wrong passwords all fail the same way.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (string, *models.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return "", nil, newError(KindValidation, "Email and password are required")
	}

	invalid := newError(KindUnauthenticated, "Invalid credentials")
	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return "", nil, invalid
	}
	if err != nil {
		return "", nil, internal("load user", err)
	}
	if user.Status != models.UserActive {
		return "", nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return "", nil, invalid
	}

	token, err := s.IssueToken(user.ID, user.Role)
	if err != nil {
		return "", nil, internal("issue token", err)
	}
	return token, user, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ---------------------------------------------------------------------------
// Session tokens
// ---------------------------------------------------------------------------

type tokenClaims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken creates a signed HS256 session token.
func (s *AuthService) IssueToken(userID uuid.UUID, role models.Role) (string, error) {
	now := s.now()
	claims := tokenClaims{
		UserID: userID.String(),
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Issuer:    "gamevault",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken verifies signature and expiry and returns the principal
// encoded in the token.
func (s *AuthService) ValidateToken(tokenStr string) (SessionPrincipal, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return SessionPrincipal{}, newError(KindUnauthenticated, msgInvalidToken)
	}

	id, err := uuid.Parse(claims.UserID)
	if err != nil || !claims.Role.Valid() {
		return SessionPrincipal{}, newError(KindUnauthenticated, msgInvalidToken)
	}
	return SessionPrincipal{ID: id, UserRole: claims.Role}, nil
}

// ---------------------------------------------------------------------------
// Credential resolution
// ---------------------------------------------------------------------------

// Authenticate resolves credentials according to mode. A present API key is
// tried first and exclusively: if it is refused the request fails even when a
// valid session token is also present.
func (s *AuthService) Authenticate(ctx context.Context, c Credentials, mode AuthMode) (Principal, error) {
	if c.APIKey != "" && mode != ModeSession {
		return s.authenticateKey(ctx, c.APIKey)
	}
	if c.BearerToken != "" && mode != ModeAPIKey {
		p, err := s.ValidateToken(c.BearerToken)
		if err != nil {
			return nil, &AuthError{Err: newError(KindUnauthenticated, msgInvalidToken)}
		}
		return p, nil
	}
	return nil, &AuthError{Err: newError(KindUnauthenticated, missingCredentialMessage(mode))}
}

func missingCredentialMessage(mode AuthMode) string {
	switch mode {
	case ModeAPIKey:
		return "API key required. Provide the x-api-key header."
	case ModeSession:
		return "Authentication required. Provide an Authorization: Bearer token."
	default:
		return "Authentication required. Provide either x-api-key or Authorization header."
	}
}

func (s *AuthService) authenticateKey(ctx context.Context, raw string) (Principal, error) {
	key, err := s.store.GetAPIKeyByHash(ctx, HashKey(raw))
	if errors.Is(err, database.ErrNotFound) {
		return nil, &AuthError{Err: newError(KindForbidden, msgInvalidKey)}
	}
	if err != nil {
		return nil, &AuthError{Err: internal("load api key", err)}
	}

	refused := &AuthError{Err: newError(KindForbidden, msgInvalidKey), Owner: &key.UserID, KeyID: &key.ID}
	if key.Status != models.KeyActive {
		return nil, refused
	}

	user, err := s.store.GetUserByID(ctx, key.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &AuthError{Err: newError(KindForbidden, msgInvalidKey)}
	}
	if err != nil {
		return nil, &AuthError{Err: internal("load key owner", err)}
	}
	if user.Status != models.UserActive {
		return nil, refused
	}

	return KeyPrincipal{
		ID:       user.ID,
		UserRole: user.Role,
		Name:     user.Name,
		Email:    user.Email,
		KeyID:    key.ID,
	}, nil
}
