package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/repository"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, display_name, password_hash)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, username, email, display_name, password_hash, refresh_fingerprint
`

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), params.Username, params.Email, params.DisplayName, params.HashedPassword)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, username, email, display_name, password_hash, refresh_fingerprint
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByUsername = `-- name: GetUserByUsername
SELECT id, created_at, username, email, display_name, password_hash, refresh_fingerprint
FROM users
WHERE username = $1
`

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByUsername, username)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByLogin = `-- name: GetUserByLogin
SELECT id, created_at, username, email, display_name, password_hash, refresh_fingerprint
FROM users
WHERE username = $1 OR email = $1
`

// Get user by whatever the login form sent: username or email
func (r *UserRepo) GetUserByLogin(ctx context.Context, login string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByLogin, login)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const updateUser = `-- name: UpdateUser
UPDATE users
SET display_name = COALESCE($2, display_name),
    email = COALESCE($3, email)
WHERE id = $1
RETURNING id, created_at, username, email, display_name, password_hash, refresh_fingerprint
`

func (r *UserRepo) UpdateUser(ctx context.Context, id uuid.UUID, params repository.UpdateUserParams) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updateUser, id, params.DisplayName, params.Email)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && strings.Contains(pgErr.ConstraintName, "email") {
			return user, apperrors.ErrEmailAlreadyTaken
		}
		return user, fmt.Errorf("db error: %w", err)
	}
}

const setFingerprint = `-- name: SetRefreshFingerprint
UPDATE users
SET refresh_fingerprint = $2
WHERE id = $1
`

// Overwrite the stored fingerprint whatever it was
// Any previously issued refresh token becomes unusable from here on
func (r *UserRepo) SetRefreshFingerprint(ctx context.Context, id uuid.UUID, fingerprint string) error {
	tag, err := r.DB.Exec(ctx, setFingerprint, id, fingerprint)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

const rotateFingerprint = `-- name: RotateRefreshFingerprint
UPDATE users
SET refresh_fingerprint = $3
WHERE id = $1 AND refresh_fingerprint = $2
`

// Compare-and-swap on the fingerprint column
// With two concurrent rotations of the same token postgres serializes the row
// updates: the second one sees the already rotated value and matches zero rows
func (r *UserRepo) RotateRefreshFingerprint(ctx context.Context, id uuid.UUID, old string, new string) error {
	tag, err := r.DB.Exec(ctx, rotateFingerprint, id, old, new)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrRefreshTokenRevoked
	}

	return nil
}

const clearFingerprint = `-- name: ClearRefreshFingerprint
UPDATE users
SET refresh_fingerprint = NULL
WHERE id = $1
`

// Idempotent: clearing an already NULL fingerprint still matches the row
func (r *UserRepo) ClearRefreshFingerprint(ctx context.Context, id uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, clearFingerprint, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.Username, &u.Email, &u.DisplayName, &u.HashedPassword, &u.RefreshFingerprint)
	return u, err
}
