package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/handlers/render"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/service/auth"
)

type authService interface {
	// Register user and log it in right away
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	Register(ctx context.Context, params auth.RegisterParams) (models.User, models.TokenPair, error)

	// Login with username or email
	// Has to return apperrors.ErrInvalidCredentials on unknown user or wrong password
	Login(ctx context.Context, login string, password string) (models.User, models.TokenPair, error)

	// Exchange refresh token for a fresh pair
	// Has to return a token error or apperrors.ErrRefreshTokenRevoked on failure
	RefreshPair(ctx context.Context, refresh string) (models.TokenPair, error)

	// Invalidate the active refresh token. Idempotent
	Logout(ctx context.Context, userID uuid.UUID) error

	// Token transport over http
	SetTokenPair(w http.ResponseWriter, pair models.TokenPair)
	ClearTokenPair(w http.ResponseWriter)
	ReadRefreshToken(r *http.Request) (string, error)
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

type TokenPairResponse struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Public user profile: never carries the password hash or the fingerprint
func toUserResponse(u models.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toTokenPairResponse(pair models.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:      pair.Access.Value,
		AccessExpiresAt:  pair.Access.ExpiresAt,
		RefreshToken:     pair.Refresh.Value,
		RefreshExpiresAt: pair.Refresh.ExpiresAt,
	}
}

type AuthHandler struct {
	authService authService
}

func NewAuth(auth authService) *AuthHandler {
	return &AuthHandler{authService: auth}
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	type RegisterRequest struct {
		Username    string `json:"username" validate:"required,username,min=2,max=50"`
		Email       string `json:"email" validate:"required,email"`
		DisplayName string `json:"displayName" validate:"max=100"`
		Password    string `json:"password" validate:"required,min=8"`
	}
	type RegisterSuccessResponse struct {
		Message string            `json:"message"`
		User    UserResponse      `json:"user"`
		Tokens  TokenPairResponse `json:"tokens"`
	}

	data, err := render.BindAndValidate[RegisterRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Register(r.Context(), auth.RegisterParams{
		Username:    data.Username,
		Email:       data.Email,
		DisplayName: data.DisplayName,
		Password:    data.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.authService.SetTokenPair(w, pair)
	render.JSONWithStatus(w, RegisterSuccessResponse{
		Message: "User registered successfully",
		User:    toUserResponse(user),
		Tokens:  toTokenPairResponse(pair),
	}, http.StatusCreated)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type LoginSuccessResponse struct {
		Message string            `json:"message"`
		User    UserResponse      `json:"user"`
		Tokens  TokenPairResponse `json:"tokens"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	user, pair, err := h.authService.Login(r.Context(), data.Login, data.Password)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid login or password", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.authService.SetTokenPair(w, pair)
	render.JSON(w, LoginSuccessResponse{
		Message: "User logged in successfully",
		User:    toUserResponse(user),
		Tokens:  toTokenPairResponse(pair),
	})
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken"`
	}
	type RefreshSuccessResponse struct {
		Message string            `json:"message"`
		Tokens  TokenPairResponse `json:"tokens"`
	}

	// Cookie first, JSON body as fallback for header based clients
	refresh, err := h.authService.ReadRefreshToken(r)
	if err != nil {
		var data RefreshRequest
		if decodeErr := json.NewDecoder(r.Body).Decode(&data); decodeErr != nil || data.RefreshToken == "" {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}
		refresh = data.RefreshToken
	}

	pair, err := h.authService.RefreshPair(r.Context(), refresh)
	if err != nil {
		// The exact failure (expired, forged, replayed) stays server side
		switch {
		case auth.IsTokenError(err):
			render.ServiceError(w, "Invalid refresh token", http.StatusUnauthorized)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.authService.SetTokenPair(w, pair)
	render.JSON(w, RefreshSuccessResponse{
		Message: "Tokens refreshed successfully",
		Tokens:  toTokenPairResponse(pair),
	})
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutSuccessResponse struct {
		Message string `json:"message"`
	}

	user, ok := UserFromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.authService.Logout(r.Context(), user.ID); err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.authService.ClearTokenPair(w)
	render.JSON(w, LogoutSuccessResponse{Message: "User logged out successfully"})
}
