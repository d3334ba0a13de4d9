package port

import (
	"context"

	"github.com/anjun206/board-app/internal/core/domain"
)

// PostRepository exposes persistence behavior for board posts.
type PostRepository interface {
	Create(ctx context.Context, post domain.Post) error
	GetByID(ctx context.Context, id string) (*domain.Post, error)
	List(ctx context.Context, offset, limit int) ([]domain.Post, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id, title, body string) (*domain.Post, error)
	Delete(ctx context.Context, id string) error

	AddLike(ctx context.Context, postID, userID string) error
	RemoveLike(ctx context.Context, postID, userID string) error
	Liked(ctx context.Context, postID, userID string) (bool, error)
}

// CommentRepository exposes persistence behavior for post comments.
type CommentRepository interface {
	Create(ctx context.Context, comment domain.Comment) error
	GetByID(ctx context.Context, id string) (*domain.Comment, error)
	ListByPost(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error)
	Delete(ctx context.Context, id string) error
	// DeleteByPost removes all comments of a post, returning how many went.
	DeleteByPost(ctx context.Context, postID string) (int64, error)
}
