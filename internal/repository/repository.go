package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/ovoronin/scribe/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	DisplayName    string
	HashedPassword string
}

type UpdateUserParams struct {
	// Only non-nil fields are updated
	DisplayName *string
	Email       *string
}

// User repository interface
type UserRepo interface {
	// Create user
	// Has to return apperrors.ErrUserAlreadyExists if username or email is taken
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id, username or either username/email (login form input)
	// Has to return apperrors.ErrUserNotFound if user not found
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByLogin(ctx context.Context, login string) (models.User, error)

	// Update profile fields
	// Has to return apperrors.ErrEmailAlreadyTaken if the new email is taken
	UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (models.User, error)

	// Overwrite the stored refresh fingerprint whatever it was (login point)
	SetRefreshFingerprint(ctx context.Context, userID uuid.UUID, fingerprint string) error

	// Swap fingerprint old -> new in a single statement
	// Has to return apperrors.ErrRefreshTokenRevoked if the stored value is not 'old':
	// exactly one of two concurrent rotations with the same 'old' may succeed
	RotateRefreshFingerprint(ctx context.Context, userID uuid.UUID, old string, new string) error

	// Clear the stored fingerprint. Idempotent: clearing twice is not an error
	ClearRefreshFingerprint(ctx context.Context, userID uuid.UUID) error
}

type CreatePostParams struct {
	AuthorID uuid.UUID
	Title    string
	Content  string
	IsPublic bool
}

// Post repository interface
type PostRepo interface {
	CreatePost(ctx context.Context, params CreatePostParams) (models.Post, error)

	// Get post with author fields populated
	// Has to return apperrors.ErrPostNotFound if post not found
	GetPost(ctx context.Context, postID uuid.UUID) (models.Post, error)

	// Public posts only, newest first
	ListPublicPosts(ctx context.Context, limit int, offset int) ([]models.Post, error)
	CountPublicPosts(ctx context.Context) (int64, error)

	// All posts of one author, newest first
	ListUserPosts(ctx context.Context, authorID uuid.UUID) ([]models.Post, error)

	// Has to return apperrors.ErrPostNotFound if post not found
	DeletePost(ctx context.Context, postID uuid.UUID) error
}

// Storage aggregates repositories over one db connection or transaction
type Storage interface {
	User() UserRepo
	Post() PostRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
