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

var userColumns = []string{
	"id",
	"email",
	"normalized_email",
	"username",
	"password_hash",
	"token_version",
	"created_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Email,
			user.NormalizedEmail,
			user.Username,
			user.PasswordHash,
			user.TokenVersion,
			user.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if mapped := mapWriteError(err); mapped == repository.ErrDuplicate {
			return mapped
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByNormalizedEmail retrieves a user by normalized email.
func (r *UserRepository) GetByNormalizedEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"normalized_email": email})
}

// GetByRawEmail retrieves a user by the email column as entered at signup.
// Rows created before normalization may only be reachable this way.
func (r *UserRepository) GetByRawEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"email": email})
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"username": username})
}

func (r *UserRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From("users").
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var user domain.User
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&user.ID,
		&user.Email,
		&user.NormalizedEmail,
		&user.Username,
		&user.PasswordHash,
		&user.TokenVersion,
		&user.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &user, nil
}

// IncrementTokenVersion bumps the revocation counter and returns the new value.
func (r *UserRepository) IncrementTokenVersion(ctx context.Context, id string) (int, error) {
	stmt, args, err := r.builder.
		Update("users").
		Set("token_version", squirrel.Expr("token_version + 1")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING token_version").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bump token version sql: %w", err)
	}

	var version int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&version); err != nil {
		if err == pgx.ErrNoRows {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("bump token version: %w", err)
	}

	return version, nil
}
