package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/core/port"
	"github.com/anjun206/board-app/internal/repository"
)

var (
	// ErrPostNotFound indicates the post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrCommentNotFound indicates the comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PostInput carries post create/update parameters.
type PostInput struct {
	Title string
	Body  string
}

// ContentService manages posts, comments, and likes.
type ContentService struct {
	posts    port.PostRepository
	comments port.CommentRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewContentService constructs a ContentService.
func NewContentService(posts port.PostRepository, comments port.CommentRepository, log *zap.Logger) *ContentService {
	return &ContentService{
		posts:    posts,
		comments: comments,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *ContentService) WithClock(now func() time.Time) *ContentService {
	s.now = now
	return s
}

// CreatePost stores a new post by the author.
func (s *ContentService) CreatePost(ctx context.Context, author *domain.User, input PostInput) (*domain.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Body) == "" {
		return nil, fmt.Errorf("title and body are required")
	}

	post := domain.Post{
		ID:             uuid.NewString(),
		Title:          title,
		Body:           input.Body,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	return &post, nil
}

// GetPost fetches a single post.
func (s *ContentService) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// ListPosts returns a page of posts, newest first.
func (s *ContentService) ListPosts(ctx context.Context, offset, limit int) ([]domain.Post, error) {
	offset, limit = clampPage(offset, limit)

	posts, err := s.posts.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// CountPosts returns the total number of posts.
func (s *ContentService) CountPosts(ctx context.Context) (int, error) {
	count, err := s.posts.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return count, nil
}

// UpdatePost rewrites a post. Only the author may update.
func (s *ContentService) UpdatePost(ctx context.Context, caller *domain.User, id string, input PostInput) (*domain.Post, error) {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != caller.ID {
		return nil, ErrForbidden
	}

	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Body) == "" {
		return nil, fmt.Errorf("title and body are required")
	}

	updated, err := s.posts.Update(ctx, id, title, input.Body)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("update post: %w", err)
	}

	return updated, nil
}

// DeletePost removes a post and its comments. Only the author may delete.
func (s *ContentService) DeletePost(ctx context.Context, caller *domain.User, id string) error {
	post, err := s.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != caller.ID {
		return ErrForbidden
	}

	removed, err := s.comments.DeleteByPost(ctx, id)
	if err != nil {
		return fmt.Errorf("delete post comments: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("removed comments with post",
			zap.String("post_id", id),
			zap.Int64("comments", removed),
		)
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	return nil
}

// LikePost records the caller's like. Repeat likes are no-ops.
func (s *ContentService) LikePost(ctx context.Context, caller *domain.User, postID string) error {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return err
	}

	if err := s.posts.AddLike(ctx, postID, caller.ID); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil
		case errors.Is(err, repository.ErrNotFound):
			return ErrPostNotFound
		}
		return fmt.Errorf("add like: %w", err)
	}

	return nil
}

// UnlikePost removes the caller's like. Unliking a post the caller never
// liked is a no-op.
func (s *ContentService) UnlikePost(ctx context.Context, caller *domain.User, postID string) error {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return err
	}

	if err := s.posts.RemoveLike(ctx, postID, caller.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("remove like: %w", err)
	}

	return nil
}

// Liked reports whether the caller liked the post.
func (s *ContentService) Liked(ctx context.Context, caller *domain.User, postID string) (bool, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return false, err
	}

	liked, err := s.posts.Liked(ctx, postID, caller.ID)
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return liked, nil
}

// AddComment stores a comment on the post.
func (s *ContentService) AddComment(ctx context.Context, author *domain.User, postID, body string) (*domain.Comment, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("body is required")
	}

	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	comment := domain.Comment{
		ID:             uuid.NewString(),
		PostID:         postID,
		AuthorID:       author.ID,
		AuthorUsername: author.Username,
		Body:           body,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.comments.Create(ctx, comment); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("create comment: %w", err)
	}

	return &comment, nil
}

// ListComments returns a page of a post's comments, oldest first.
func (s *ContentService) ListComments(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	offset, limit = clampPage(offset, limit)

	comments, err := s.comments.ListByPost(ctx, postID, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Only its author may delete.
func (s *ContentService) DeleteComment(ctx context.Context, caller *domain.User, postID, commentID string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("get comment: %w", err)
	}

	if comment.PostID != postID {
		return ErrCommentNotFound
	}
	if comment.AuthorID != caller.ID {
		return ErrForbidden
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrCommentNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}

	return nil
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return offset, limit
}
