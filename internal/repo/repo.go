package repo

import (
	"context"
	"errors"

	dom "miniblog/internal/domain"
)

var (
	// ErrNotFound is returned when the referenced user or post does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (user email) already exists.
	ErrDuplicate = errors.New("duplicate key")
)

// UserRepo provides user persistence.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (dom.User, error)
	Create(ctx context.Context, u dom.User) (dom.User, error)
}

// PostRepo provides post persistence. Posts are returned newest first unless noted.
type PostRepo interface {
	// Create stores p and appends its id to the author's post list as one unit.
	Create(ctx context.Context, p dom.Post) (dom.Post, error)
	GetByID(ctx context.Context, id string) (dom.PostView, error)
	List(ctx context.Context) ([]dom.PostView, error)
	// ListByAuthor returns the author's posts in the order they were linked to the user.
	ListByAuthor(ctx context.Context, u dom.User) ([]dom.Post, error)
	// UpdateContent overwrites content of post id if it is authored by authorID.
	UpdateContent(ctx context.Context, id, authorID, content string) (dom.Post, error)
	// ToggleLike atomically flips userID's membership in the likers set.
	ToggleLike(ctx context.Context, id, userID string) (dom.Post, error)
}
