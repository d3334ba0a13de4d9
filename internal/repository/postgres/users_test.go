package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/repository"
)

func newMockUserRepository(mock pgxmock.PgxPoolIface) *UserRepository {
	return &UserRepository{
		exec:    mock,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := newMockUserRepository(mock)

	user := domain.User{
		ID:              "user-1",
		Email:           "Person@Example.com",
		NormalizedEmail: "person@example.com",
		Username:        "person",
		PasswordHash:    "hash",
		TokenVersion:    0,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(
			user.ID,
			user.Email,
			user.NormalizedEmail,
			user.Username,
			user.PasswordHash,
			user.TokenVersion,
			user.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := newMockUserRepository(mock)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_normalized_email_key"})

	err = repo.Create(context.Background(), domain.User{ID: "user-1"})
	if !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByNormalizedEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := newMockUserRepository(mock)

	createdAt := time.Now().UTC()
	rows := pgxmock.NewRows(userColumns).AddRow(
		"user-1", "Person@Example.com", "person@example.com", "person", "hash", 2, createdAt,
	)

	mock.ExpectQuery(`SELECT .*FROM users`).
		WithArgs("person@example.com").
		WillReturnRows(rows)

	user, err := repo.GetByNormalizedEmail(context.Background(), "person@example.com")
	if err != nil {
		t.Fatalf("GetByNormalizedEmail returned error: %v", err)
	}
	if user.ID != "user-1" || user.TokenVersion != 2 {
		t.Fatalf("unexpected user: %+v", user)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_GetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := newMockUserRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM users`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_IncrementTokenVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := newMockUserRepository(mock)

	mock.ExpectQuery(`UPDATE users SET token_version = token_version \+ 1 .*RETURNING token_version`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(3))

	version, err := repo.IncrementTokenVersion(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IncrementTokenVersion returned error: %v", err)
	}
	if version != 3 {
		t.Fatalf("version = %d, want 3", version)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_IncrementTokenVersionMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := newMockUserRepository(mock)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := repo.IncrementTokenVersion(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
