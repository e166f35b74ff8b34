package email

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/clinicore/clinic-api/internal/config"
)

// Service sends transactional mail. The only message the system sends is
// the credential-reset notification for freshly provisioned patient
// accounts.
type Service interface {
	SendPasswordReset(ctx context.Context, to, name, resetURL string) error
}

type service struct {
	dialer *gomail.Dialer
	from   string
}

func NewService(cfg config.SMTPConfig) Service {
	return &service{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *service) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Set your password")
	m.SetBody("text/html", fmt.Sprintf(
		`<p>Hello %s,</p>
<p>An account has been created for you at the clinic. Use the link below to choose your password:</p>
<p><a href="%s">%s</a></p>
<p>If you did not expect this email, you can ignore it.</p>`,
		name, resetURL, resetURL,
	))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}
