package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/repository"
)

type PostRepo struct {
	DB DBTX
}

const createPost = `-- name: CreatePost
INSERT INTO posts (id, author_id, title, content, is_public)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, author_id, title, content, is_public, created_at, updated_at
`

func (r *PostRepo) CreatePost(ctx context.Context, params repository.CreatePostParams) (models.Post, error) {
	rows, _ := r.DB.Query(ctx, createPost, uuid.New(), params.AuthorID, params.Title, params.Content, params.IsPublic)
	post, err := pgx.CollectOneRow(rows, rowToPost)
	if err != nil {
		return post, fmt.Errorf("db error: %w", err)
	}

	return post, nil
}

const getPost = `-- name: GetPost
SELECT p.id, p.author_id, p.title, p.content, p.is_public, p.created_at, p.updated_at,
       u.username, u.display_name
FROM posts p
JOIN users u ON u.id = p.author_id
WHERE p.id = $1
`

func (r *PostRepo) GetPost(ctx context.Context, postID uuid.UUID) (models.Post, error) {
	rows, _ := r.DB.Query(ctx, getPost, postID)
	post, err := pgx.CollectOneRow(rows, rowToPostWithAuthor)

	switch {
	case err == nil:
		return post, nil
	case errors.Is(err, pgx.ErrNoRows):
		return post, apperrors.ErrPostNotFound
	default:
		return post, fmt.Errorf("db error: %w", err)
	}
}

const listPublicPosts = `-- name: ListPublicPosts
SELECT p.id, p.author_id, p.title, p.content, p.is_public, p.created_at, p.updated_at,
       u.username, u.display_name
FROM posts p
JOIN users u ON u.id = p.author_id
WHERE p.is_public
ORDER BY p.created_at DESC
LIMIT $1 OFFSET $2
`

func (r *PostRepo) ListPublicPosts(ctx context.Context, limit int, offset int) ([]models.Post, error) {
	rows, _ := r.DB.Query(ctx, listPublicPosts, limit, offset)
	posts, err := pgx.CollectRows(rows, rowToPostWithAuthor)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return posts, nil
}

const countPublicPosts = `-- name: CountPublicPosts
SELECT count(*) FROM posts WHERE is_public
`

func (r *PostRepo) CountPublicPosts(ctx context.Context) (int64, error) {
	rows, _ := r.DB.Query(ctx, countPublicPosts)
	count, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

const listUserPosts = `-- name: ListUserPosts
SELECT p.id, p.author_id, p.title, p.content, p.is_public, p.created_at, p.updated_at,
       u.username, u.display_name
FROM posts p
JOIN users u ON u.id = p.author_id
WHERE p.author_id = $1
ORDER BY p.created_at DESC
`

func (r *PostRepo) ListUserPosts(ctx context.Context, authorID uuid.UUID) ([]models.Post, error) {
	rows, _ := r.DB.Query(ctx, listUserPosts, authorID)
	posts, err := pgx.CollectRows(rows, rowToPostWithAuthor)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return posts, nil
}

const deletePost = `-- name: DeletePost
DELETE FROM posts WHERE id = $1
`

func (r *PostRepo) DeletePost(ctx context.Context, postID uuid.UUID) error {
	tag, err := r.DB.Exec(ctx, deletePost, postID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPostNotFound
	}

	return nil
}

func rowToPost(row pgx.CollectableRow) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func rowToPostWithAuthor(row pgx.CollectableRow) (models.Post, error) {
	var p models.Post
	err := row.Scan(&p.ID, &p.AuthorID, &p.Title, &p.Content, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorUsername, &p.AuthorDisplayName)
	return p, err
}
