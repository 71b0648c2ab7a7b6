package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"reflect"
	"strings"
	"time"

	mail "github.com/go-mail/mail"
	"github.com/rs/zerolog"

	"github.com/example/contact-relay/internal/config"
)

// MessageSender is the part of *mail.Dialer the SMTP provider uses.
type MessageSender interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPOption configures the behaviour of the SMTP provider.
type SMTPOption func(*SMTPProvider)

// WithSMTPSender swaps the dialer, mostly for tests.
func WithSMTPSender(s MessageSender) SMTPOption {
	return func(p *SMTPProvider) {
		if s != nil {
			p.sender = s
		}
	}
}

// WithSMTPClock replaces the clock used for timestamps and Date headers.
func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(p *SMTPProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// SMTPProvider delivers mail through a plain SMTP relay using go-mail.
type SMTPProvider struct {
	logger zerolog.Logger
	host   string
	sender MessageSender
	now    func() time.Time
}

// NewSMTPProvider constructs a Provider backed by an SMTP server.
func NewSMTPProvider(cfg config.SMTPConfig, timeout time.Duration, logger zerolog.Logger, opts ...SMTPOption) (*SMTPProvider, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("smtp provider: host is required")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("smtp provider: invalid port %d", cfg.Port)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.TLSConfig = &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	if timeout > 0 {
		d.Timeout = timeout
	}

	p := &SMTPProvider{
		logger: logger,
		host:   cfg.Host,
		sender: d,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Send delivers the payload with a single SMTP transaction.
func (p *SMTPProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("smtp provider: payload is required")
	}
	if len(payload.To) == 0 {
		return nil, errors.New("smtp provider: at least one recipient is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	msg := p.buildMessage(payload)

	resp := &RawResponse{
		ID:        payload.MessageID,
		Timestamp: p.now(),
	}

	if err := p.sender.DialAndSend(msg); err != nil {
		code, body := classifySMTPError(err)
		resp.Code = code
		resp.Body = body
		if code > 0 {
			return resp, fmt.Errorf("smtp %d: %s", code, body)
		}
		return resp, fmt.Errorf("smtp provider: send: %w", err)
	}

	p.logger.Debug().
		Str("host", p.host).
		Str("message_id", payload.MessageID).
		Msg("smtp message accepted")

	resp.Code = 250
	resp.Body = "smtp: message accepted"
	return resp, ctx.Err()
}

func (p *SMTPProvider) buildMessage(payload *Payload) *mail.Message {
	m := mail.NewMessage()
	for key, value := range payload.Headers {
		key = textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(key))
		if key == "" || strings.TrimSpace(value) == "" {
			continue
		}
		m.SetHeader(key, sanitizeHeaderValue(value))
	}

	m.SetHeader("From", payload.From)
	m.SetHeader("To", payload.To...)
	if len(payload.ReplyTo) > 0 {
		m.SetHeader("Reply-To", payload.ReplyTo...)
	}
	m.SetHeader("Subject", sanitizeHeaderValue(payload.Subject))
	if payload.MessageID != "" {
		m.SetHeader("Message-ID", "<"+payload.MessageID+"@"+p.host+">")
	}
	m.SetDateHeader("Date", p.now())
	m.SetBody("text/plain", payload.Body)
	return m
}

func sanitizeHeaderValue(value string) string {
	clean := strings.ReplaceAll(value, "\r", " ")
	clean = strings.ReplaceAll(clean, "\n", " ")
	return strings.TrimSpace(clean)
}

func classifySMTPError(err error) (int, string) {
	var sendErr *mail.SendError
	if errors.As(err, &sendErr) && sendErr.Cause != nil {
		err = sendErr.Cause
	}

	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		return tpErr.Code, strings.TrimSpace(tpErr.Msg)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, "smtp: timeout"
	}

	return 0, err.Error()
}
