package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/repository"
)

var verificationColumns = []string{
	"id",
	"email",
	"code_hash",
	"expires_at",
	"attempts",
	"used",
	"created_ip",
	"created_at",
}

// VerificationRepository implements port.VerificationRepository using PostgreSQL.
type VerificationRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewVerificationRepository wires a PostgreSQL-backed verification repository.
func NewVerificationRepository(pool *pgxpool.Pool) *VerificationRepository {
	return &VerificationRepository{
		pool:    pool,
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *VerificationRepository) WithTx(tx pgx.Tx) *VerificationRepository {
	if tx == nil {
		return r
	}
	return &VerificationRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// Create inserts a new verification record.
func (r *VerificationRepository) Create(ctx context.Context, record domain.EmailVerification) error {
	stmt, args, err := r.builder.Insert("email_verifications").
		Columns(verificationColumns...).
		Values(
			record.ID,
			record.Email,
			record.CodeHash,
			record.ExpiresAt,
			record.Attempts,
			record.Used,
			record.CreatedIP,
			record.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert verification sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}

	return nil
}

// LatestActive returns the newest unused, unexpired record for the email.
func (r *VerificationRepository) LatestActive(ctx context.Context, email string, now time.Time) (*domain.EmailVerification, error) {
	stmt, args, err := r.builder.
		Select(verificationColumns...).
		From("email_verifications").
		Where(squirrel.Eq{"email": email, "used": false}).
		Where(squirrel.Gt{"expires_at": now}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select verification sql: %w", err)
	}

	var record domain.EmailVerification
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&record.ID,
		&record.Email,
		&record.CodeHash,
		&record.ExpiresAt,
		&record.Attempts,
		&record.Used,
		&record.CreatedIP,
		&record.CreatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan verification: %w", err)
	}

	return &record, nil
}

// IncrementAttempts records one more failed code submission.
func (r *VerificationRepository) IncrementAttempts(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("email_verifications").
		Set("attempts", squirrel.Expr("attempts + 1")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build increment attempts sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// MarkUsed consumes the record so the code cannot be replayed.
func (r *VerificationRepository) MarkUsed(ctx context.Context, id string) error {
	stmt, args, err := r.builder.
		Update("email_verifications").
		Set("used", true).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark used sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("mark used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// InvalidatePending marks every unused record for the email as consumed so a
// freshly issued code is the only live one.
func (r *VerificationRepository) InvalidatePending(ctx context.Context, email string) error {
	stmt, args, err := r.builder.
		Update("email_verifications").
		Set("used", true).
		Where(squirrel.Eq{"email": email, "used": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build invalidate pending sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("invalidate pending: %w", err)
	}

	return nil
}

// DeleteExpired removes records whose expiry is before the cutoff.
func (r *VerificationRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	stmt, args, err := r.builder.
		Delete("email_verifications").
		Where(squirrel.Lt{"expires_at": before}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete expired sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired: %w", err)
	}

	return tag.RowsAffected(), nil
}
