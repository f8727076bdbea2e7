package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/message-scheduler/internal/config"
)

// SMTPClient sends plain-text mail with one connection per message.
type SMTPClient struct {
	cfg config.SMTPConfig
}

func NewSMTPClient(cfg config.SMTPConfig) *SMTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &SMTPClient{cfg: cfg}
}

// Send delivers one message and returns the Message-ID it was sent with.
func (c *SMTPClient) Send(ctx context.Context, to, subject, body string) (string, error) {
	if c.cfg.User == "" || c.cfg.Password == "" {
		return "", fmt.Errorf("%w: EMAIL_USER or EMAIL_PASS is empty", ErrNotConfigured)
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
	dialer := net.Dialer{Timeout: c.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", addr, err)
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	sc, err := smtp.NewClient(conn, c.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return "", err
	}
	defer sc.Close()

	if c.cfg.UseTLS {
		if err := sc.StartTLS(&tls.Config{ServerName: c.cfg.Host}); err != nil {
			return "", fmt.Errorf("starttls: %w", err)
		}
	}
	if err := sc.Auth(smtp.PlainAuth("", c.cfg.User, c.cfg.Password, c.cfg.Host)); err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), c.cfg.Host)
	msg, err := buildMessage(c.cfg.From, to, subject, body, messageID, time.Now())
	if err != nil {
		return "", err
	}

	if err := sc.Mail(c.cfg.From); err != nil {
		return "", fmt.Errorf("mail from: %w", err)
	}
	if err := sc.Rcpt(to); err != nil {
		return "", fmt.Errorf("rcpt to: %w", err)
	}
	w, err := sc.Data()
	if err != nil {
		return "", fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return "", fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close body: %w", err)
	}
	_ = sc.Quit()

	return messageID, nil
}

func buildMessage(from, to, subject, body, messageID string, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) {
		buf.WriteString(k)
		buf.WriteString(": ")
		buf.WriteString(v)
		buf.WriteString("\r\n")
	}

	header("From", from)
	header("To", to)
	header("Subject", mime.QEncoding.Encode("utf-8", subject))
	header("Date", now.Format(time.RFC1123Z))
	header("Message-ID", messageID)
	header("MIME-Version", "1.0")
	header("Content-Type", `text/plain; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	if _, err := qp.Write([]byte(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
