package port

import "context"

// Notifier delivers one-time verification codes out of band. Callers treat
// it as fire-and-forget: a delivery failure never fails the issuing flow.
type Notifier interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}
