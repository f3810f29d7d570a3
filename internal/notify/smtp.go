package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/your-org/eventlens/internal/config"
)

// SMTPMailer sends notifications directly over SMTP.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	tls      mail.TLSPolicy
}

func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("mail host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("mail from address is required")
	}

	policy := mail.TLSMandatory
	switch cfg.TLS {
	case "", "mandatory":
	case "opportunistic":
		policy = mail.TLSOpportunistic
	case "none":
		policy = mail.NoTLS
	default:
		return nil, fmt.Errorf("unknown mail tls policy %q", cfg.TLS)
	}

	return &SMTPMailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
		tls:      policy,
	}, nil
}

func (m *SMTPMailer) message(n Notification) (*mail.Msg, error) {
	composed := Compose(n)

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(composed.To); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(composed.Subject)
	msg.SetBodyString(mail.TypeTextPlain, composed.Body)
	return msg, nil
}

// Send dials the server and delivers n. A client is built per call so
// concurrent dispatcher workers never share a connection.
func (m *SMTPMailer) Send(ctx context.Context, n Notification) error {
	msg, err := m.message(n)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(m.tls),
		mail.WithTimeout(30 * time.Second),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
