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

var commentColumns = []string{
	"c.id",
	"c.post_id",
	"c.author_id",
	"u.username",
	"c.body",
	"c.created_at",
}

// CommentRepository implements port.CommentRepository using PostgreSQL.
type CommentRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewCommentRepository wires a PostgreSQL-backed comment repository.
func NewCommentRepository(pool *pgxpool.Pool) *CommentRepository {
	return &CommentRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a comment and bumps the post's comment counter in one
// transaction.
func (r *CommentRepository) Create(ctx context.Context, comment domain.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert comment: %w", err)
	}
	defer tx.Rollback(ctx)

	insert, args, err := r.builder.Insert("comments").
		Columns("id", "post_id", "author_id", "body", "created_at").
		Values(comment.ID, comment.PostID, comment.AuthorID, comment.Body, comment.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert comment sql: %w", err)
	}

	if _, err := tx.Exec(ctx, insert, args...); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}

	bump, args, err := r.builder.
		Update("posts").
		Set("comments_count", squirrel.Expr("comments_count + 1")).
		Where(squirrel.Eq{"id": comment.PostID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build bump comments sql: %w", err)
	}

	tag, err := tx.Exec(ctx, bump, args...)
	if err != nil {
		return fmt.Errorf("bump comments: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a comment with its author username.
func (r *CommentRepository) GetByID(ctx context.Context, id string) (*domain.Comment, error) {
	stmt, args, err := r.builder.
		Select(commentColumns...).
		From("comments c").
		Join("users u ON u.id = c.author_id").
		Where(squirrel.Eq{"c.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select comment sql: %w", err)
	}

	var comment domain.Comment
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&comment.ID,
		&comment.PostID,
		&comment.AuthorID,
		&comment.AuthorUsername,
		&comment.Body,
		&comment.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan comment: %w", err)
	}

	return &comment, nil
}

// ListByPost returns a post's comments oldest first.
func (r *CommentRepository) ListByPost(ctx context.Context, postID string, offset, limit int) ([]domain.Comment, error) {
	stmt, args, err := r.builder.
		Select(commentColumns...).
		From("comments c").
		Join("users u ON u.id = c.author_id").
		Where(squirrel.Eq{"c.post_id": postID}).
		OrderBy("c.created_at ASC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list comments sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := make([]domain.Comment, 0, limit)
	for rows.Next() {
		var comment domain.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.PostID,
			&comment.AuthorID,
			&comment.AuthorUsername,
			&comment.Body,
			&comment.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}

	return comments, nil
}

// Delete removes a comment and lowers the post's counter in one transaction.
func (r *CommentRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete comment: %w", err)
	}
	defer tx.Rollback(ctx)

	del, args, err := r.builder.
		Delete("comments").
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING post_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete comment sql: %w", err)
	}

	var postID string
	if err := tx.QueryRow(ctx, del, args...).Scan(&postID); err != nil {
		if err == pgx.ErrNoRows {
			return repository.ErrNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}

	lower, args, err := r.builder.
		Update("posts").
		Set("comments_count", squirrel.Expr("GREATEST(comments_count - 1, 0)")).
		Where(squirrel.Eq{"id": postID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lower comments sql: %w", err)
	}

	if _, err := tx.Exec(ctx, lower, args...); err != nil {
		return fmt.Errorf("lower comments: %w", err)
	}

	return tx.Commit(ctx)
}

// DeleteByPost removes all comments of a post. Used when a post is deleted
// outside the cascade path, so the caller can report how many went.
func (r *CommentRepository) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	stmt, args, err := r.builder.
		Delete("comments").
		Where(squirrel.Eq{"post_id": postID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete post comments sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete post comments: %w", err)
	}

	return tag.RowsAffected(), nil
}
