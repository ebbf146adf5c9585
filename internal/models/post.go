package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID        uuid.UUID
	AuthorID  uuid.UUID
	Title     string
	Content   string
	IsPublic  bool
	CreatedAt time.Time
	UpdatedAt time.Time

	// Filled when the post is fetched together with its author
	AuthorUsername    string
	AuthorDisplayName string
}

// Pagination state for list endpoints
type PageInfo struct {
	CurrentPage int
	TotalPages  int
	TotalPosts  int64
	HasNextPage bool
	HasPrevPage bool
}
