package post

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/models"
	"github.com/ovoronin/scribe/internal/repository"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100

	// How many posts the unauthenticated landing page gets
	publicFeedLimit = 6
)

// PostService is a collaborator of the auth core: it trusts the user resolved
// by the authorization gate and never re-checks credentials itself
type PostService struct {
	postRepo repository.PostRepo
}

func NewService(postRepo repository.PostRepo) *PostService {
	return &PostService{postRepo: postRepo}
}

// CreatePost binds the new post to the authenticated author
func (s *PostService) CreatePost(ctx context.Context, author *models.User, title string, content string, isPublic bool) (models.Post, error) {
	post, err := s.postRepo.CreatePost(ctx, repository.CreatePostParams{
		AuthorID: author.ID,
		Title:    title,
		Content:  content,
		IsPublic: isPublic,
	})
	if err != nil {
		return post, fmt.Errorf("can't create post. Err: %w", err)
	}

	post.AuthorUsername = author.Username
	post.AuthorDisplayName = author.DisplayName
	return post, nil
}

// GetPost returns the post if the viewer may see it.
// A private post is visible to its author only; everyone else gets not found
// instead of forbidden so private post ids can't be probed
func (s *PostService) GetPost(ctx context.Context, postID uuid.UUID, viewer *models.User) (models.Post, error) {
	post, err := s.postRepo.GetPost(ctx, postID)
	if err != nil {
		return post, err
	}

	if !post.IsPublic && (viewer == nil || viewer.ID != post.AuthorID) {
		return models.Post{}, apperrors.ErrPostNotFound
	}

	return post, nil
}

// ListPublicPosts returns one page of public posts, newest first
func (s *PostService) ListPublicPosts(ctx context.Context, page int, limit int) ([]models.Post, models.PageInfo, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	posts, err := s.postRepo.ListPublicPosts(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, models.PageInfo{}, err
	}

	total, err := s.postRepo.CountPublicPosts(ctx)
	if err != nil {
		return nil, models.PageInfo{}, err
	}

	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	info := models.PageInfo{
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalPosts:  total,
		HasNextPage: page < totalPages,
		HasPrevPage: page > 1,
	}

	return posts, info, nil
}

// PublicFeed returns the newest public posts for the landing page
func (s *PostService) PublicFeed(ctx context.Context) ([]models.Post, error) {
	return s.postRepo.ListPublicPosts(ctx, publicFeedLimit, 0)
}

// ListUserPosts returns every post of one author, newest first
func (s *PostService) ListUserPosts(ctx context.Context, authorID uuid.UUID) ([]models.Post, error) {
	return s.postRepo.ListUserPosts(ctx, authorID)
}

// DeletePost deletes the post if the user wrote it
func (s *PostService) DeletePost(ctx context.Context, postID uuid.UUID, user *models.User) error {
	post, err := s.postRepo.GetPost(ctx, postID)
	if err != nil {
		return err
	}

	if post.AuthorID != user.ID {
		return apperrors.ErrNotPostAuthor
	}

	return s.postRepo.DeletePost(ctx, postID)
}
