// Package mail provides Mailer implementations for the engine.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidHeader is returned when a recipient or subject would break the
// message headers.
var ErrInvalidHeader = errors.New("mail: invalid header value")

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers HTML mail through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	cfg  SMTPConfig
	auth smtp.Auth
	now  func() time.Time
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mail: host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	s := &SMTPSender{cfg: cfg, now: time.Now, send: smtp.SendMail}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return s, nil
}

// Send blocks until the relay accepts the message. net/smtp has no context
// support, so ctx is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.message(to, subject, htmlBody)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, s.auth, s.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", addr, err)
	}
	return nil
}

func (s *SMTPSender) message(to, subject, htmlBody string) ([]byte, error) {
	for _, v := range []string{to, subject} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, ErrInvalidHeader
		}
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&b, "Date: %s\r\n", s.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.Bytes(), nil
}

// LogSender writes messages to a logger instead of delivering them. It is
// meant for local development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	l.logger.InfoContext(ctx, "mail not delivered",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", htmlBody),
	)
	return nil
}
