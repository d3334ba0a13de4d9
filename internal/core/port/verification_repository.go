package port

import (
	"context"
	"time"

	"github.com/anjun206/board-app/internal/core/domain"
)

// VerificationRepository persists one-time email verification codes.
type VerificationRepository interface {
	Create(ctx context.Context, record domain.EmailVerification) error
	// LatestActive returns the most recent unused, unexpired record for the
	// normalized email. Expired rows are filtered here as well as by the
	// persistence-layer expiry sweep, to tolerate clock skew between them.
	LatestActive(ctx context.Context, email string, now time.Time) (*domain.EmailVerification, error)
	IncrementAttempts(ctx context.Context, id string) error
	MarkUsed(ctx context.Context, id string) error
	// InvalidatePending marks all unused records for the email as superseded.
	InvalidatePending(ctx context.Context, email string) error
	// DeleteExpired removes records whose expiry is before the cutoff.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
