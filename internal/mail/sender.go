// Package mail delivers verification codes.  The Sender interface keeps the
// rest of the application independent of the relay: production uses SMTP,
// everything else logs the code.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/memflow/lowcode-backend/internal/config"
)

type Sender interface {
	SendVerificationCode(ctx context.Context, toEmail, code string) error
}

// NewSender picks the implementation from configuration.
func NewSender(cfg config.Config, logger *zap.Logger) Sender {
	switch cfg.MailMode {
	case "smtp":
		return SMTPSender{
			host: cfg.SMTPHost,
			port: cfg.SMTPPort,
			user: cfg.SMTPUser,
			pass: cfg.SMTPPass,
			from: cfg.MailFrom,
		}
	default:
		return LogSender{logger: logger}
	}
}

// LogSender writes the code to the application log.  Useful in development
// and as the fallback when no relay is configured.
type LogSender struct {
	logger *zap.Logger
}

func (s LogSender) SendVerificationCode(_ context.Context, toEmail, code string) error {
	s.logger.Info("verification code issued",
		zap.String("email", toEmail), zap.String("code", code))
	return nil
}

// SMTPSender delivers the code through a plain SMTP relay.
type SMTPSender struct {
	host string
	port int
	user string
	pass string
	from string
}

func (s SMTPSender) SendVerificationCode(_ context.Context, toEmail, code string) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	body := "Subject: Email Verification Code\r\n\r\nYour verification code is: " + code + "\r\n"
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.pass, s.host)
	}
	return smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(body))
}
