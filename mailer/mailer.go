// Package mailer delivers password reset emails.
package mailer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campusportal/go-auth"
	"github.com/goliatone/go-print"
	"github.com/samber/oops"
	"github.com/wneessen/go-mail"
)

// Config holds the SMTP settings
type Config struct {
	Host     string        `koanf:"host" json:"host"`
	Port     int           `koanf:"port" json:"port"`
	Username string        `koanf:"username" json:"username"`
	Password string        `koanf:"password" json:"-"`
	From     string        `koanf:"from" json:"from"`
	TLS      string        `koanf:"tls" json:"tls"`
	Timeout  time.Duration `koanf:"timeout" json:"timeout"`
}

// TLSPolicy maps the TLS setting onto go-mail. Unknown values require TLS.
func (c Config) TLSPolicy() mail.TLSPolicy {
	switch strings.ToLower(strings.TrimSpace(c.TLS)) {
	case "none", "off", "disabled":
		return mail.NoTLS
	case "opportunistic", "starttls":
		return mail.TLSOpportunistic
	default:
		return mail.TLSMandatory
	}
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPMailer implements auth.Mailer over SMTP
type SMTPMailer struct {
	from   string
	client sender
	logger auth.Logger
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer dials nothing until the first message is sent
func NewSMTPMailer(cfg Config, logger auth.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, oops.In("mailer").Errorf("smtp host is required")
	}
	if cfg.From == "" {
		return nil, oops.In("mailer").Errorf("sender address is required")
	}

	opts := []mail.Option{
		mail.WithTLSPolicy(cfg.TLSPolicy()),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.In("mailer").With("host", cfg.Host).Wrapf(err, "failed to create smtp client")
	}

	return newSMTPMailer(cfg.From, client, logger), nil
}

func newSMTPMailer(from string, client sender, logger auth.Logger) *SMTPMailer {
	if logger == nil {
		logger = nopLogger{}
	}
	return &SMTPMailer{from: from, client: client, logger: logger}
}

// SendPasswordReset implements auth.Mailer
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, email auth.PasswordResetEmail) error {
	msg, err := m.message(email)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.In("mailer").With("to", email.To).Wrapf(err, "failed to send password reset email")
	}

	m.logger.Info("password reset email sent to %s", email.To)
	return nil
}

func (m *SMTPMailer) message(email auth.PasswordResetEmail) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, oops.In("mailer").With("from", m.from).Wrapf(err, "invalid sender address")
	}
	if err := msg.To(email.To); err != nil {
		return nil, oops.In("mailer").With("to", email.To).Wrapf(err, "invalid recipient address")
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Body)
	return msg, nil
}

// LogMailer prints reset emails instead of sending them. Use it for
// local development.
type LogMailer struct {
	Logger auth.Logger
}

var _ auth.Mailer = LogMailer{}

func (m LogMailer) SendPasswordReset(_ context.Context, email auth.PasswordResetEmail) error {
	logger := m.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	logger.Info("password reset email: %s", print.MaybePrettyJSON(map[string]any{
		"user_id":    email.UserID.String(),
		"to":         email.To,
		"subject":    email.Subject,
		"link":       email.Link,
		"expires_in": fmt.Sprint(email.ExpiresIn),
	}))
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
