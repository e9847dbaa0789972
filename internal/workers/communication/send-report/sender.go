// internal/workers/communication/send-report/sender.go
package sendreport

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

// Sender delivers one email. The SES client satisfies it.
type Sender interface {
	Send(ctx context.Context, to, subject, text, html string) (string, error)
	Provider() string
}

// AlertPublisher raises an alert for high-risk results. The SNS client
// satisfies it.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, subject, message string, attrs map[string]string) (string, error)
}

// SMTPSender sends multipart text/HTML mail over SMTP with optional STARTTLS.
type SMTPSender struct {
	config SMTPConfig
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &SMTPSender{config: cfg}
	if cfg.UseTLS {
		s.send = s.sendWithTLS
	} else {
		s.send = smtp.SendMail
	}
	return s, nil
}

func (s *SMTPSender) Provider() string {
	return "SMTP"
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled before sending email: %w", err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.config.Host)
	msg := buildMessage(s.config.DefaultFrom, to, subject, messageID, text, html)

	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	if err := s.send(addr, auth, s.config.DefaultFrom, []string{to}, []byte(msg)); err != nil {
		return "", err
	}
	return messageID, nil
}

func (s *SMTPSender) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range to {
		if err = client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}
	return client.Quit()
}

// buildMessage assembles an RFC 5322 message. With an HTML part the body is
// multipart/alternative, text first.
func buildMessage(from, to, subject, messageID, text, html string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", from))
	b.WriteString(fmt.Sprintf("To: %s\r\n", to))
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject)))
	b.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	b.WriteString("MIME-Version: 1.0\r\n")

	if html == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(text)
		return b.String()
	}

	boundary := "report-" + strings.ReplaceAll(uuid.New().String(), "-", "")
	b.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary))

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(text + "\r\n")

	b.WriteString("--" + boundary + "\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(html + "\r\n")

	b.WriteString("--" + boundary + "--\r\n")
	return b.String()
}
