// Package mail delivers verification codes to users.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/infra/config"
	"github.com/anjun206/board-app/internal/infra/logger"
)

// SMTPNotifier sends verification codes over plain SMTP with optional
// AUTH PLAIN credentials.
type SMTPNotifier struct {
	addr string
	from string
	auth smtp.Auth
	log  *zap.Logger

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPNotifier builds a notifier from SMTP settings.
func NewSMTPNotifier(cfg config.SMTPSettings, log *zap.Logger) *SMTPNotifier {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	return &SMTPNotifier{
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		from: cfg.From,
		auth: auth,
		log:  log,
		send: smtp.SendMail,
	}
}

// SendVerificationCode emails the numeric code to the given address.
func (n *SMTPNotifier) SendVerificationCode(ctx context.Context, email, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := strings.Join([]string{
		"From: " + n.from,
		"To: " + email,
		"Subject: Your verification code",
		"",
		"Your verification code is " + code + ". It expires shortly.",
		"",
	}, "\r\n")

	if err := n.send(n.addr, n.auth, n.from, []string{email}, []byte(msg)); err != nil {
		n.log.Error("send verification email failed",
			zap.String("email", logger.MaskEmail(email)),
			zap.Error(err),
		)
		return fmt.Errorf("send verification email: %w", err)
	}

	n.log.Info("verification email sent", zap.String("email", logger.MaskEmail(email)))
	return nil
}
