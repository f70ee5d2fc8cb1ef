package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/gamevault/api-gateway/internal/httpx"
	"github.com/gamevault/api-gateway/internal/models"
	"github.com/gamevault/api-gateway/internal/services"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"user_id"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, registerResponse{Message: "User registered successfully", UserID: user.ID})
}

type loginUser struct {
	UserID uuid.UUID   `json:"user_id"`
	Name   string      `json:"name"`
	Email  string      `json:"email"`
	Role   models.Role `json:"role"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Token   string    `json:"token"`
	User    loginUser `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginInput
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, r, err)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req)
	if err != nil {
		httpx.Error(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   token,
		User:    loginUser{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role},
	})
}
