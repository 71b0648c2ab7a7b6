package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	common "github.com/example/contact-relay/internal/adapters/common"
	"github.com/example/contact-relay/internal/config"
	"github.com/example/contact-relay/internal/models"
	emailprovider "github.com/example/contact-relay/internal/providers/email"
	"github.com/example/contact-relay/internal/util"
)

// HeaderOriginalSender carries the submitter address on backends that pass
// custom headers through.
const HeaderOriginalSender = "X-Original-Sender"

var smtpErrPattern = regexp.MustCompile(`smtp\s+(\d{3})`)

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithReasonLimit overrides the maximum number of characters retained from
// the provider diagnostic.
func WithReasonLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxReason = limit
		}
	}
}

// WithIDGenerator overrides the message id generator.
func WithIDGenerator(next func() string) Option {
	return func(a *Adapter) {
		if next != nil {
			a.nextID = next
		}
	}
}

// WithHeaders adds static headers to every payload, e.g. the mock provider
// scenario header.
func WithHeaders(headers map[string]string) Option {
	return func(a *Adapter) {
		for k, v := range headers {
			a.headers[k] = v
		}
	}
}

// Adapter implements common.Messenger on top of an email provider. It owns the
// envelope sender, the limits and the error classification so every backend
// behaves the same towards the dispatcher.
type Adapter struct {
	logger    zerolog.Logger
	provider  emailprovider.Provider
	from      string
	limits    config.ValidationConfig
	timeout   time.Duration
	maxReason int
	nextID    func() string
	headers   map[string]string
}

// NewAdapter constructs an email adapter. from is the verified sender
// identity used as the envelope From on every message.
func NewAdapter(provider emailprovider.Provider, from string, limits config.ValidationConfig, timeout time.Duration, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("email adapter: provider dependency is required")
	}
	if _, err := util.ParseDisplayAddress(from); err != nil {
		return nil, fmt.Errorf("email adapter: from address: %w", err)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:    logger,
		provider:  provider,
		from:      strings.TrimSpace(from),
		limits:    limits,
		timeout:   timeout,
		maxReason: common.DefaultReasonLimit,
		nextID:    uuid.NewString,
		headers:   make(map[string]string),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a, nil
}

// Send relays msg with exactly one provider call. Failures come back as a
// DispatchResult carrying an error wrapped with ErrTransient or ErrPermanent.
func (a *Adapter) Send(ctx context.Context, msg models.ContactMessage) models.DispatchResult {
	payload, err := a.buildPayload(msg)
	if err != nil {
		return a.fail(payload, common.WrapPermanent(err))
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	raw, err := a.provider.Send(ctx, payload)
	if err != nil {
		return a.fail(payload, a.wrapError(err, raw))
	}

	id := payload.MessageID
	if raw != nil && raw.ID != "" {
		id = raw.ID
	}

	a.logger.Debug().
		Str("message_id", id).
		Str("recipient", payload.To[0]).
		Msg("email adapter send succeeded")
	return models.Sent(id)
}

func (a *Adapter) buildPayload(msg models.ContactMessage) (*emailprovider.Payload, error) {
	payload := &emailprovider.Payload{
		MessageID: a.nextID(),
		From:      a.from,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Headers:   make(map[string]string, len(a.headers)+1),
	}
	for k, v := range a.headers {
		payload.Headers[k] = v
	}

	recipient := strings.TrimSpace(msg.Recipient)
	if recipient == "" {
		return payload, errors.New("email adapter: recipient is required")
	}
	payload.To = []string{recipient}

	replyTo, err := util.ParseMailbox(msg.ReplyTo)
	if err != nil {
		return payload, fmt.Errorf("email adapter: reply-to: %w", err)
	}
	payload.ReplyTo = []string{replyTo}

	if sender := strings.TrimSpace(msg.Sender); sender != "" {
		payload.Headers[HeaderOriginalSender] = sender
	}

	if err := util.EnsureMaxRunes("subject", msg.Subject, a.limits.SubjectMaxLen); err != nil {
		return payload, fmt.Errorf("email adapter: %w", err)
	}
	if err := util.EnsureMaxBytes("body", msg.Body, a.limits.BodyMaxBytes); err != nil {
		return payload, fmt.Errorf("email adapter: %w", err)
	}

	return payload, nil
}

func (a *Adapter) fail(payload *emailprovider.Payload, err error) models.DispatchResult {
	res := models.NotSent(err)
	res.FailureReason = common.TruncateReason(res.FailureReason, a.maxReason)
	if payload != nil {
		res.MessageID = payload.MessageID
	}

	a.logger.Info().
		Str("message_id", res.MessageID).
		Str("failure_class", common.FailureClass(err)).
		Err(err).
		Msg("email adapter send failed")
	return res
}

func (a *Adapter) wrapError(err error, raw *emailprovider.RawResponse) error {
	if isTimeout(err) {
		return common.WrapTransient(err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if isPermanentSESCode(apiErr.ErrorCode()) {
			return common.WrapPermanent(err)
		}
		return common.WrapTransient(err)
	}

	code, ok := extractSMTPCode(err)
	if !ok && raw != nil && raw.Code > 0 {
		code, ok = raw.Code, true
	}
	if ok && code >= 500 && code < 600 {
		return common.WrapPermanent(err)
	}
	return common.WrapTransient(err)
}

func extractSMTPCode(err error) (int, bool) {
	matches := smtpErrPattern.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0, false
	}
	code, convErr := strconv.Atoi(matches[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isPermanentSESCode(code string) bool {
	switch code {
	case "MessageRejected",
		"MailFromDomainNotVerifiedException",
		"AccountSuspendedException",
		"SendingPausedException",
		"BadRequestException",
		"NotFoundException":
		return true
	default:
		return false
	}
}
