// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Email is a multipart/alternative message.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Notifier sends email. Services depend on this rather than on Mailer so
// tests can substitute a failing or recording implementation.
type Notifier interface {
	Send(ctx context.Context, e Email) error
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// Mailer delivers email over SMTP.
type Mailer struct {
	cfg Config
	log *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// Send delivers e. When no SMTP host is configured the message is logged
// instead, which keeps local development usable.
func (m *Mailer) Send(ctx context.Context, e Email) error {
	if m.cfg.Host == "" {
		m.log.Info("mail not configured; dropping message",
			zap.String("to", e.To),
			zap.String("subject", e.Subject))
		return nil
	}
	if e.To == "" {
		return fmt.Errorf("mailer: empty recipient")
	}

	msg, err := m.build(e)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, m.cfg.From, []string{e.To}, msg) }()
	select {
	case err := <-done:
		if err != nil {
			m.log.Warn("smtp send failed", zap.String("to", e.To), zap.Error(err))
			return fmt.Errorf("mailer: send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) build(e Email) ([]byte, error) {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	boundary := "shepherd-" + hex.EncodeToString(b[:])

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", m.cfg.FromName), m.cfg.From)
	}

	var buf bytes.Buffer
	hdr := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }
	hdr("From", from)
	hdr("To", e.To)
	hdr("Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	hdr("Date", time.Now().UTC().Format(time.RFC1123Z))
	hdr("MIME-Version", "1.0")
	hdr("Content-Type", `multipart/alternative; boundary="`+boundary+`"`)
	buf.WriteString("\r\n")

	part := func(ct, body string) {
		fmt.Fprintf(&buf, "--%s\r\nContent-Type: %s; charset=utf-8\r\n\r\n", boundary, ct)
		buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
		buf.WriteString("\r\n")
	}
	part("text/plain", e.TextBody)
	if e.HTMLBody != "" {
		part("text/html", e.HTMLBody)
	}
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes(), nil
}
