package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
)

// Mailer delivers a rendered email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SMTPMailer sends mail through a plain SMTP relay such as Mailpit in
// development or the workspace relay in production.
type SMTPMailer struct {
	addr string
	from string
}

// NewSMTPMailer constructs the mailer. addr is "host:port".
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
	}
}

// Send delivers the email. The subject is encoded for non-ASCII content.
func (m *SMTPMailer) Send(ctx context.Context, email Email) error {
	if email.To == "" {
		return fmt.Errorf("notify: empty recipient")
	}
	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + email.To + "\r\n")
	msg.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", email.Subject) + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(email.Body)

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, nil, m.from, []string{email.To}, []byte(msg.String()))
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("notify: send to %s: %w", email.To, err)
		}
		return nil
	}
}
