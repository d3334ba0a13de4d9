package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/infra/logger"
)

// LoggingNotifier writes verification codes to the log instead of sending
// mail. Used in development when no SMTP host is configured.
type LoggingNotifier struct {
	log *zap.Logger
}

// NewLoggingNotifier creates a notifier that only logs.
func NewLoggingNotifier(log *zap.Logger) *LoggingNotifier {
	return &LoggingNotifier{log: log}
}

// SendVerificationCode logs the code at info level.
func (n *LoggingNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	n.log.Info("verification code issued (smtp disabled)",
		zap.String("email", logger.MaskEmail(email)),
		zap.String("code", code),
	)
	return nil
}
