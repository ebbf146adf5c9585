package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/repository"
)

type userServiceStub struct {
	updateFn func(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error)
}

func (s *userServiceStub) UpdateUser(ctx context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error) {
	return s.updateFn(ctx, userID, params)
}

func Test_UserHandler_Me(t *testing.T) {
	t.Run("returns the authenticated user", func(t *testing.T) {
		user := testUser()
		h := NewUser(&userServiceStub{})

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		req = req.WithContext(NewContextWithUser(req.Context(), user))

		rr := httptest.NewRecorder()
		h.me(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), user.ID.String())
		assert.Contains(t, rr.Body.String(), `"username":"alice"`)
	})

	t.Run("no user in context", func(t *testing.T) {
		h := NewUser(&userServiceStub{})

		rr := httptest.NewRecorder()
		h.me(rr, httptest.NewRequest(http.MethodGet, "/users/me", nil))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func Test_UserHandler_Update(t *testing.T) {
	user := testUser()

	newRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPatch, "/users/me", strings.NewReader(body))
		return req.WithContext(NewContextWithUser(req.Context(), user))
	}

	t.Run("partial update passes only the given fields", func(t *testing.T) {
		stub := &userServiceStub{
			updateFn: func(_ context.Context, userID uuid.UUID, params repository.UpdateUserParams) (models.User, error) {
				assert.Equal(t, user.ID, userID)
				require.NotNil(t, params.DisplayName)
				assert.Equal(t, "New Name", *params.DisplayName)
				assert.Nil(t, params.Email, "untouched fields stay nil")

				updated := user
				updated.DisplayName = *params.DisplayName
				return updated, nil
			},
		}
		h := NewUser(stub)

		rr := httptest.NewRecorder()
		h.update(rr, newRequest(`{"displayName": "New Name"}`))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"displayName":"New Name"`)
	})

	t.Run("taken email is a conflict", func(t *testing.T) {
		stub := &userServiceStub{
			updateFn: func(_ context.Context, _ uuid.UUID, _ repository.UpdateUserParams) (models.User, error) {
				return models.User{}, apperrors.ErrEmailAlreadyTaken
			},
		}
		h := NewUser(stub)

		rr := httptest.NewRecorder()
		h.update(rr, newRequest(`{"email": "taken@example.com"}`))

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		h := NewUser(&userServiceStub{
			updateFn: func(_ context.Context, _ uuid.UUID, _ repository.UpdateUserParams) (models.User, error) {
				t.Fatal("service must not be called")
				return models.User{}, nil
			},
		})

		rr := httptest.NewRecorder()
		h.update(rr, newRequest(`{"email": "not-an-email"}`))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
