package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/repository"
)

func newRegistrationFixture(t *testing.T, users *fakeUserRepo) (*RegistrationService, *fakeEventPublisher) {
	t.Helper()
	events := &fakeEventPublisher{}
	svc := NewRegistrationService(users, events, security.NewPasswordPolicy(8), zaptest.NewLogger(t))
	return svc, events
}

func TestSignupCreatesAccount(t *testing.T) {
	users := newFakeUserRepo()
	svc, events := newRegistrationFixture(t, users)

	user, err := svc.Signup(context.Background(), SignupInput{
		Email:    "  New.Person@Example.com ",
		Username: "newperson",
		Password: "a-decent-passphrase",
	})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if user.Email != "New.Person@Example.com" {
		t.Fatalf("email = %q, want trimmed raw form", user.Email)
	}
	if user.NormalizedEmail != "new.person@example.com" {
		t.Fatalf("normalized email = %q", user.NormalizedEmail)
	}
	if user.TokenVersion != 0 {
		t.Fatalf("token version = %d, want 0", user.TokenVersion)
	}
	if ok, err := security.VerifyPassword("a-decent-passphrase", user.PasswordHash); err != nil || !ok {
		t.Fatalf("stored hash does not verify the password: ok=%v err=%v", ok, err)
	}
	if len(events.registered) != 1 {
		t.Fatalf("expected 1 registration event, got %d", len(events.registered))
	}
}

func TestSignupRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newRegistrationFixture(t, newFakeUserRepo(testUser()))
	ctx := context.Background()

	// Same address in a different case still collides via normalization.
	if _, err := svc.Signup(ctx, SignupInput{
		Email:    "PERSON@example.COM",
		Username: "someoneelse",
		Password: "a-decent-passphrase",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestSignupRejectsDuplicateRawEmail(t *testing.T) {
	// A legacy row whose normalized column was never backfilled.
	legacy := testUser()
	legacy.NormalizedEmail = "legacy-placeholder"
	svc, _ := newRegistrationFixture(t, newFakeUserRepo(legacy))

	if _, err := svc.Signup(context.Background(), SignupInput{
		Email:    "Person@Example.com",
		Username: "someoneelse",
		Password: "a-decent-passphrase",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken via raw lookup, got %v", err)
	}
}

func TestSignupRejectsDuplicateUsername(t *testing.T) {
	svc, _ := newRegistrationFixture(t, newFakeUserRepo(testUser()))

	if _, err := svc.Signup(context.Background(), SignupInput{
		Email:    "fresh@example.com",
		Username: "person",
		Password: "a-decent-passphrase",
	}); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	svc, _ := newRegistrationFixture(t, newFakeUserRepo())

	if _, err := svc.Signup(context.Background(), SignupInput{
		Email:    "fresh@example.com",
		Username: "fresh",
		Password: "short",
	}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestSignupInsertRaceMapsToEmailTaken(t *testing.T) {
	users := newFakeUserRepo()
	svc, _ := newRegistrationFixture(t, users)

	// Simulate a concurrent signup landing between the lookup and the insert.
	users.createErr = repository.ErrDuplicate

	if _, err := svc.Signup(context.Background(), SignupInput{
		Email:    "fresh@example.com",
		Username: "fresh",
		Password: "a-decent-passphrase",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken on duplicate insert, got %v", err)
	}
}
