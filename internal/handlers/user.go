package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/handlers/render"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/repository"
)

type userService interface {
	// Has to return apperrors.ErrEmailAlreadyTaken if the new email is taken
	UpdateUser(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error)
}

type UserHandler struct {
	userService userService
}

func NewUser(user userService) *UserHandler {
	return &UserHandler{userService: user}
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, toUserResponse(user))
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateUserRequest struct {
		DisplayName *string `json:"displayName" validate:"omitempty,max=100"`
		Email       *string `json:"email" validate:"omitempty,email"`
	}

	user, ok := UserFromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[UpdateUserRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.UpdateUser(r.Context(), user.ID, repository.UpdateUserParams{
		DisplayName: data.DisplayName,
		Email:       data.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrEmailAlreadyTaken):
			render.ServiceError(w, "Email already taken", http.StatusConflict)
		default:
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	render.JSON(w, toUserResponse(updated))
}
