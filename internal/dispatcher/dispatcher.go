package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	common "github.com/example/contact-relay/internal/adapters/common"
	"github.com/example/contact-relay/internal/challenge"
	"github.com/example/contact-relay/internal/models"
)

// Config is the immutable part of the dispatcher configuration.
type Config struct {
	// Recipient receives every relayed message.
	Recipient string
}

// Metrics observes invocation outcomes. The zero Dispatcher records nothing.
type Metrics interface {
	Observe(outcome string)
}

// Dependencies bundles the collaborators required by the dispatcher.
type Dependencies struct {
	Challenges challenge.Service
	Messenger  common.Messenger
	Metrics    Metrics
	Logger     zerolog.Logger
}

// Dispatcher routes one invocation to challenge issuance or submission
// handling. It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	cfg        Config
	challenges challenge.Service
	messenger  common.Messenger
	metrics    Metrics
	logger     zerolog.Logger
}

// New validates the configuration and wires the dispatcher.
func New(cfg Config, deps Dependencies) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.Recipient) == "" {
		return nil, errors.New("dispatcher: recipient is required")
	}
	if deps.Challenges == nil {
		return nil, errors.New("dispatcher: challenge service is required")
	}
	if deps.Messenger == nil {
		return nil, errors.New("dispatcher: messenger is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Dispatcher{
		cfg:        Config{Recipient: strings.TrimSpace(cfg.Recipient)},
		challenges: deps.Challenges,
		messenger:  deps.Messenger,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// HandleEvent parses ev and handles the resulting request. It never returns
// an error: every failure becomes a structured Response.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev models.Event) models.Response {
	req, err := ParseEvent(ev)
	if err != nil {
		log := d.requestLogger(ctx)
		log.Warn().Err(err).Str("outcome", models.OutcomeUnsupportedMethod).Msg("request rejected")
		d.metrics.Observe(models.OutcomeUnsupportedMethod)
		return models.FailureResponse(models.ErrMsgMethodNotAllowed)
	}
	return d.Handle(ctx, req)
}

// Handle serves an already classified request.
func (d *Dispatcher) Handle(ctx context.Context, req Request) models.Response {
	log := d.requestLogger(ctx)

	var (
		resp    models.Response
		outcome string
	)
	switch r := req.(type) {
	case ChallengeRequest:
		resp, outcome = d.issueChallenge(ctx, log)
	case SubmissionRequest:
		resp, outcome = d.resolveSubmission(ctx, log, r)
	default:
		log.Warn().Str("request_type", fmt.Sprintf("%T", req)).Msg("request rejected")
		resp, outcome = models.FailureResponse(models.ErrMsgMethodNotAllowed), models.OutcomeUnsupportedMethod
	}

	d.metrics.Observe(outcome)
	return resp
}

func (d *Dispatcher) issueChallenge(ctx context.Context, log zerolog.Logger) (models.Response, string) {
	ch, err := d.challenges.Create(ctx)
	if err != nil {
		log.Error().Err(err).Str("outcome", models.OutcomeChallengeFailed).Msg("challenge creation failed")
		return models.FailureResponse(models.ErrMsgChallengeFailed), models.OutcomeChallengeFailed
	}

	log.Info().Str("outcome", models.OutcomeChallengeIssued).Msg("challenge issued")
	return models.ChallengeResponse(ch), models.OutcomeChallengeIssued
}

func (d *Dispatcher) resolveSubmission(ctx context.Context, log zerolog.Logger, req SubmissionRequest) (models.Response, string) {
	if !req.Complete() {
		log.Info().
			Strs("missing", missingFields(req)).
			Str("outcome", models.OutcomeVerificationFailed).
			Msg("submission incomplete")
		return models.FailureResponse(models.ErrMsgVerificationFailed), models.OutcomeVerificationFailed
	}

	verdict := d.challenges.Verify(ctx, *req.Token)
	if !verdict.Verified {
		log.Info().
			Str("detail", verdict.ErrorDetail).
			Str("outcome", models.OutcomeVerificationFailed).
			Msg("verification failed")
		return models.FailureResponse(models.ErrMsgVerificationFailed), models.OutcomeVerificationFailed
	}

	msg := models.ContactMessage{
		Sender:    *req.Mail,
		Recipient: d.cfg.Recipient,
		ReplyTo:   *req.Mail,
		Subject:   *req.Subject,
		Body:      *req.Text,
	}

	res := d.send(ctx, msg)
	if !res.Success {
		log.Error().
			Err(res.Err).
			Str("reason", res.FailureReason).
			Str("message_id", res.MessageID).
			Str("outcome", models.OutcomeDispatchFailed).
			Msg("failed to send email")
		return models.FailureResponse(models.ErrMsgSendFailed), models.OutcomeDispatchFailed
	}

	log.Info().
		Str("message_id", res.MessageID).
		Str("outcome", models.OutcomeSent).
		Msg("email sent")
	return models.SuccessResponse(req.Referer), models.OutcomeSent
}

// send calls the messenger once and turns a panic into a failed result.
func (d *Dispatcher) send(ctx context.Context, msg models.ContactMessage) (res models.DispatchResult) {
	defer func() {
		if p := recover(); p != nil {
			res = models.NotSent(fmt.Errorf("messenger panic: %v", p))
		}
	}()
	return d.messenger.Send(ctx, msg)
}

func (d *Dispatcher) requestLogger(ctx context.Context) zerolog.Logger {
	return d.logger.With().Str("request_id", requestID(ctx)).Logger()
}

// requestID prefers the Lambda request id so log lines line up with the
// platform's own REPORT entries.
func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}

func missingFields(req SubmissionRequest) []string {
	var missing []string
	if req.Token == nil {
		missing = append(missing, "altcha")
	}
	if req.Mail == nil {
		missing = append(missing, "mail")
	}
	if req.Text == nil {
		missing = append(missing, "text")
	}
	if req.Subject == nil {
		missing = append(missing, "subject")
	}
	return missing
}

type nopMetrics struct{}

func (nopMetrics) Observe(string) {}
