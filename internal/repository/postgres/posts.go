package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/repository"
)

var postColumns = []string{
	"p.id",
	"p.title",
	"p.body",
	"p.author_id",
	"u.username",
	"p.comments_count",
	"p.likes_count",
	"p.created_at",
}

// PostRepository implements port.PostRepository using PostgreSQL.
type PostRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPostRepository wires a PostgreSQL-backed post repository.
func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new post row.
func (r *PostRepository) Create(ctx context.Context, post domain.Post) error {
	stmt, args, err := r.builder.Insert("posts").
		Columns("id", "title", "body", "author_id", "comments_count", "likes_count", "created_at").
		Values(post.ID, post.Title, post.Body, post.AuthorID, post.CommentsCount, post.LikesCount, post.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert post sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert post: %w", err)
	}

	return nil
}

// GetByID retrieves a post with its author username.
func (r *PostRepository) GetByID(ctx context.Context, id string) (*domain.Post, error) {
	stmt, args, err := r.builder.
		Select(postColumns...).
		From("posts p").
		Join("users u ON u.id = p.author_id").
		Where(squirrel.Eq{"p.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select post sql: %w", err)
	}

	post, err := scanPost(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}

	return post, nil
}

// List returns posts newest first.
func (r *PostRepository) List(ctx context.Context, offset, limit int) ([]domain.Post, error) {
	stmt, args, err := r.builder.
		Select(postColumns...).
		From("posts p").
		Join("users u ON u.id = p.author_id").
		OrderBy("p.created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list posts sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}

	return posts, nil
}

// Count returns the total number of posts.
func (r *PostRepository) Count(ctx context.Context) (int, error) {
	stmt, args, err := r.builder.
		Select("COUNT(*)").
		From("posts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count posts sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}

	return count, nil
}

// Update rewrites a post's title and body, returning the fresh row.
func (r *PostRepository) Update(ctx context.Context, id, title, body string) (*domain.Post, error) {
	stmt, args, err := r.builder.
		Update("posts").
		Set("title", title).
		Set("body", body).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update post sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, repository.ErrNotFound
	}

	return r.GetByID(ctx, id)
}

// Delete removes a post. Comments and likes follow via cascade.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Delete("posts").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete post sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// AddLike records a like and bumps the denormalized counter in one
// transaction. A duplicate like maps to ErrDuplicate and leaves the counter
// untouched.
func (r *PostRepository) AddLike(ctx context.Context, postID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add like: %w", err)
	}
	defer tx.Rollback(ctx)

	insert, args, err := r.builder.
		Insert("post_likes").
		Columns("post_id", "user_id").
		Values(postID, userID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert like sql: %w", err)
	}

	if _, err := tx.Exec(ctx, insert, args...); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrDuplicate {
			return mapped
		}
		return fmt.Errorf("insert like: %w", err)
	}

	bump, args, err := r.builder.
		Update("posts").
		Set("likes_count", squirrel.Expr("likes_count + 1")).
		Where(squirrel.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build bump likes sql: %w", err)
	}

	tag, err := tx.Exec(ctx, bump, args...)
	if err != nil {
		return fmt.Errorf("bump likes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return tx.Commit(ctx)
}

// RemoveLike deletes a like and lowers the counter in one transaction.
// A missing like maps to ErrNotFound.
func (r *PostRepository) RemoveLike(ctx context.Context, postID, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin remove like: %w", err)
	}
	defer tx.Rollback(ctx)

	del, args, err := r.builder.
		Delete("post_likes").
		Where(squirrel.Eq{"post_id": postID, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete like sql: %w", err)
	}

	tag, err := tx.Exec(ctx, del, args...)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	lower, args, err := r.builder.
		Update("posts").
		Set("likes_count", squirrel.Expr("GREATEST(likes_count - 1, 0)")).
		Where(squirrel.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lower likes sql: %w", err)
	}

	if _, err := tx.Exec(ctx, lower, args...); err != nil {
		return fmt.Errorf("lower likes: %w", err)
	}

	return tx.Commit(ctx)
}

// Liked reports whether the user already liked the post.
func (r *PostRepository) Liked(ctx context.Context, postID, userID string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From("post_likes").
		Where(squirrel.Eq{"post_id": postID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select like sql: %w", err)
	}

	var one int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("select like: %w", err)
	}

	return true, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	if err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Body,
		&post.AuthorID,
		&post.AuthorUsername,
		&post.CommentsCount,
		&post.LikesCount,
		&post.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	return &post, nil
}
