package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ovoronin/scribe/internal/apperrors"
	"github.com/ovoronin/scribe/internal/handlers/render"
	"github.com/ovoronin/scribe/internal/models"
)

type postService interface {
	CreatePost(ctx context.Context, author *models.User, title string, content string, isPublic bool) (models.Post, error)
	GetPost(ctx context.Context, postID uuid.UUID, viewer *models.User) (models.Post, error)
	ListPublicPosts(ctx context.Context, page int, limit int) ([]models.Post, models.PageInfo, error)
	PublicFeed(ctx context.Context) ([]models.Post, error)
	ListUserPosts(ctx context.Context, authorID uuid.UUID) ([]models.Post, error)
	DeletePost(ctx context.Context, postID uuid.UUID, user *models.User) error
}

type PostResponse struct {
	ID        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	IsPublic  bool       `json:"isPublic"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Author    PostAuthor `json:"author"`
}

type PostAuthor struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
}

type PaginationResponse struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalPosts  int64 `json:"totalPosts"`
	HasNextPage bool  `json:"hasNextPage"`
	HasPrevPage bool  `json:"hasPrevPage"`
}

func toPostResponse(p models.Post) PostResponse {
	return PostResponse{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		IsPublic:  p.IsPublic,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Author: PostAuthor{
			ID:          p.AuthorID,
			Username:    p.AuthorUsername,
			DisplayName: p.AuthorDisplayName,
		},
	}
}

func toPostResponses(posts []models.Post) []PostResponse {
	res := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		res = append(res, toPostResponse(p))
	}
	return res
}

type PostHandler struct {
	postService postService
}

func NewPost(post postService) *PostHandler {
	return &PostHandler{postService: post}
}

func (h *PostHandler) create(w http.ResponseWriter, r *http.Request) {
	type CreatePostRequest struct {
		Title    string `json:"title" validate:"required_without=Content,max=120"`
		Content  string `json:"content" validate:"required_without=Title"`
		IsPublic *bool  `json:"isPublic"`
	}

	user, ok := UserFromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data, err := render.BindAndValidate[CreatePostRequest](w, r)
	if err != nil {
		return
	}

	// Posts are public unless the author said otherwise
	isPublic := data.IsPublic == nil || *data.IsPublic

	post, err := h.postService.CreatePost(r.Context(), &user, data.Title, data.Content, isPublic)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSONWithStatus(w, toPostResponse(post), http.StatusCreated)
}

func (h *PostHandler) get(w http.ResponseWriter, r *http.Request) {
	postID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Post not found", http.StatusNotFound)
		return
	}

	// Viewer is optional here: anonymous readers see public posts only
	var viewer *models.User
	if user, ok := UserFromContext(r.Context()); ok {
		viewer = &user
	}

	post, err := h.postService.GetPost(r.Context(), postID, viewer)
	switch {
	case err == nil:
		render.JSON(w, toPostResponse(post))
	case errors.Is(err, apperrors.ErrPostNotFound):
		render.ServiceError(w, "Post not found", http.StatusNotFound)
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *PostHandler) list(w http.ResponseWriter, r *http.Request) {
	type ListPostsResponse struct {
		Posts      []PostResponse     `json:"posts"`
		Pagination PaginationResponse `json:"pagination"`
	}

	// Bad page/limit values fall back to defaults, same as the usual blog UX
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	posts, info, err := h.postService.ListPublicPosts(r.Context(), page, limit)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, ListPostsResponse{
		Posts: toPostResponses(posts),
		Pagination: PaginationResponse{
			CurrentPage: info.CurrentPage,
			TotalPages:  info.TotalPages,
			TotalPosts:  info.TotalPosts,
			HasNextPage: info.HasNextPage,
			HasPrevPage: info.HasPrevPage,
		},
	})
}

func (h *PostHandler) publicFeed(w http.ResponseWriter, r *http.Request) {
	type FeedResponse struct {
		Posts []PostResponse `json:"posts"`
	}

	posts, err := h.postService.PublicFeed(r.Context())
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, FeedResponse{Posts: toPostResponses(posts)})
}

func (h *PostHandler) listUserPosts(w http.ResponseWriter, r *http.Request) {
	type UserPostsResponse struct {
		Posts []PostResponse `json:"posts"`
	}

	authorID, err := uuid.Parse(r.PathValue("userID"))
	if err != nil {
		render.ServiceError(w, "User not found", http.StatusNotFound)
		return
	}

	posts, err := h.postService.ListUserPosts(r.Context(), authorID)
	if err != nil {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	render.JSON(w, UserPostsResponse{Posts: toPostResponses(posts)})
}

func (h *PostHandler) delete(w http.ResponseWriter, r *http.Request) {
	type DeleteSuccessResponse struct {
		Message string `json:"message"`
	}

	user, ok := UserFromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	postID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		render.ServiceError(w, "Post not found", http.StatusNotFound)
		return
	}

	err = h.postService.DeletePost(r.Context(), postID, &user)
	switch {
	case err == nil:
		render.JSON(w, DeleteSuccessResponse{Message: "Post deleted successfully"})
	case errors.Is(err, apperrors.ErrPostNotFound):
		render.ServiceError(w, "Post not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrNotPostAuthor):
		render.ServiceError(w, "You can delete only your own posts", http.StatusForbidden)
	default:
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
