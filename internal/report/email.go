package report

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bighogz/form4-scanner/internal/config"
)

// EmailSender delivers reports over SMTP with STARTTLS as
// multipart/alternative (plain text + HTML).
type EmailSender struct {
	cfg config.SMTPConfig
	log zerolog.Logger
}

// NewEmailSender returns an SMTP sender.
func NewEmailSender(cfg config.SMTPConfig, log zerolog.Logger) *EmailSender {
	return &EmailSender{
		cfg: cfg,
		log: log.With().Str("component", "email").Logger(),
	}
}

// Configured reports whether delivery settings are complete enough to
// attempt sending.
func (s *EmailSender) Configured() bool {
	return s.cfg.Host != "" && s.cfg.Sender != "" && s.cfg.Recipient != ""
}

// Send delivers one report.
func (s *EmailSender) Send(_ context.Context, r Report) error {
	if !s.Configured() {
		return fmt.Errorf("smtp not configured")
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	msg := s.buildMessage(r)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Password != "" {
		auth := smtp.PlainAuth("", s.cfg.Sender, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.cfg.Sender); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(s.cfg.Recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}

	s.log.Info().Str("subject", r.Subject).Str("to", s.cfg.Recipient).Msg("report sent")
	return client.Quit()
}

func (s *EmailSender) buildMessage(r Report) string {
	boundary := "----scanner-" + fmt.Sprint(time.Now().UnixNano())

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.Sender)
	fmt.Fprintf(&b, "To: %s\r\n", s.cfg.Recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", r.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	if r.HighPriority {
		b.WriteString("X-Priority: 1\r\n")
		b.WriteString("Importance: high\r\n")
	}
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(r.Text)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(r.HTML)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.String()
}
