package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"

	common "github.com/example/contact-relay/internal/adapters/common"
	"github.com/example/contact-relay/internal/challenge"
	"github.com/example/contact-relay/internal/config"
	"github.com/example/contact-relay/internal/models"
)

const recipient = "recipient@my.domain"

type fakeChallenges struct {
	challenge   models.Challenge
	createErr   error
	verdict     models.VerificationResult
	createCalls int
	verifyCalls int
	tokens      []string
}

func (f *fakeChallenges) Create(context.Context) (models.Challenge, error) {
	f.createCalls++
	return f.challenge, f.createErr
}

func (f *fakeChallenges) Verify(_ context.Context, token string) models.VerificationResult {
	f.verifyCalls++
	f.tokens = append(f.tokens, token)
	return f.verdict
}

type fakeMessenger struct {
	result    models.DispatchResult
	panicWith any
	sent      []models.ContactMessage
}

func (f *fakeMessenger) Send(_ context.Context, msg models.ContactMessage) models.DispatchResult {
	f.sent = append(f.sent, msg)
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.result
}

type recordingMetrics struct {
	outcomes []string
}

func (r *recordingMetrics) Observe(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

type fixture struct {
	d          *Dispatcher
	challenges *fakeChallenges
	messenger  *fakeMessenger
	metrics    *recordingMetrics
	logs       *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		challenges: &fakeChallenges{
			challenge: models.Challenge{Algorithm: "SHA-256", Challenge: "random-challenge", Salt: "random-salt", Signature: "signature"},
			verdict:   models.VerificationResult{Verified: true},
		},
		messenger: &fakeMessenger{result: models.Sent("msg-1")},
		metrics:   &recordingMetrics{},
		logs:      &bytes.Buffer{},
	}

	d, err := New(Config{Recipient: recipient}, Dependencies{
		Challenges: f.challenges,
		Messenger:  f.messenger,
		Metrics:    f.metrics,
		Logger:     zerolog.New(f.logs),
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	f.d = d
	return f
}

func submission() models.Event {
	return models.Event{
		HTTPMethod: "POST",
		Altcha:     models.StringPtr("tok"),
		Mail:       models.StringPtr("a@b.com"),
		Text:       models.StringPtr("hi"),
		Subject:    models.StringPtr("Hello"),
		Referer:    models.StringPtr("http://x"),
	}
}

func assertFailure(t *testing.T, resp models.Response, msg string) {
	t.Helper()
	if resp.Success == nil || *resp.Success {
		t.Fatalf("expected success=false, got %+v", resp)
	}
	if resp.Error != msg {
		t.Fatalf("expected error %q, got %q", msg, resp.Error)
	}
	if resp.Location != nil {
		t.Fatalf("failure must not carry a location, got %q", *resp.Location)
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	deps := Dependencies{Challenges: &fakeChallenges{}, Messenger: &fakeMessenger{}}

	if _, err := New(Config{}, deps); err == nil {
		t.Fatalf("expected error for empty recipient")
	}
	if _, err := New(Config{Recipient: recipient}, Dependencies{Messenger: &fakeMessenger{}}); err == nil {
		t.Fatalf("expected error for missing challenge service")
	}
	if _, err := New(Config{Recipient: recipient}, Dependencies{Challenges: &fakeChallenges{}}); err == nil {
		t.Fatalf("expected error for missing messenger")
	}
	if _, err := New(Config{Recipient: recipient}, deps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetReturnsChallengeVerbatim(t *testing.T) {
	f := newFixture(t)

	resp := f.d.HandleEvent(context.Background(), models.Event{HTTPMethod: "GET"})

	if resp.Algorithm != "SHA-256" || resp.Challenge != "random-challenge" || resp.Salt != "random-salt" || resp.Signature != "signature" {
		t.Fatalf("challenge fields not passed through: %+v", resp)
	}
	if resp.Success != nil || resp.Error != "" || resp.Location != nil {
		t.Fatalf("challenge response must carry only challenge fields: %+v", resp)
	}
	if f.challenges.createCalls != 1 || f.challenges.verifyCalls != 0 {
		t.Fatalf("expected one create and no verify, got %d/%d", f.challenges.createCalls, f.challenges.verifyCalls)
	}
	if len(f.messenger.sent) != 0 {
		t.Fatalf("GET must not send email")
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != models.OutcomeChallengeIssued {
		t.Fatalf("unexpected outcomes: %v", got)
	}
}

func TestGetChallengeFailure(t *testing.T) {
	f := newFixture(t)
	f.challenges.createErr = errors.New("entropy exhausted")

	resp := f.d.HandleEvent(context.Background(), models.Event{HTTPMethod: "get"})

	assertFailure(t, resp, models.ErrMsgChallengeFailed)
	if !strings.Contains(f.logs.String(), "entropy exhausted") {
		t.Fatalf("expected challenge error to be logged, got %s", f.logs.String())
	}
}

func TestPostMissingFieldsFailsWithoutVerifying(t *testing.T) {
	cases := map[string]func(ev *models.Event){
		"altcha":  func(ev *models.Event) { ev.Altcha = nil },
		"mail":    func(ev *models.Event) { ev.Mail = nil },
		"text":    func(ev *models.Event) { ev.Text = nil },
		"subject": func(ev *models.Event) { ev.Subject = nil },
	}

	for field, drop := range cases {
		drop := drop
		t.Run(field, func(t *testing.T) {
			f := newFixture(t)
			ev := submission()
			drop(&ev)

			resp := f.d.HandleEvent(context.Background(), ev)

			assertFailure(t, resp, models.ErrMsgVerificationFailed)
			if f.challenges.verifyCalls != 0 {
				t.Fatalf("challenge service must not be invoked for incomplete submissions")
			}
			if len(f.messenger.sent) != 0 {
				t.Fatalf("messenger must not be invoked for incomplete submissions")
			}
			if !strings.Contains(f.logs.String(), field) {
				t.Fatalf("expected missing field %q to be logged, got %s", field, f.logs.String())
			}
		})
	}
}

func TestPostEmptyFieldsStillVerified(t *testing.T) {
	f := newFixture(t)
	f.challenges.verdict = models.VerificationResult{Verified: false, ErrorDetail: "empty payload"}
	ev := models.Event{
		HTTPMethod: "POST",
		Altcha:     models.StringPtr(""),
		Mail:       models.StringPtr(""),
		Text:       models.StringPtr(""),
		Subject:    models.StringPtr(""),
	}

	resp := f.d.HandleEvent(context.Background(), ev)

	assertFailure(t, resp, models.ErrMsgVerificationFailed)
	if f.challenges.verifyCalls != 1 {
		t.Fatalf("present but empty fields must reach verification, got %d calls", f.challenges.verifyCalls)
	}
}

func TestPostVerificationFailure(t *testing.T) {
	for _, verdict := range []models.VerificationResult{
		{Verified: false},
		{Verified: false, ErrorDetail: "Invalid signature"},
	} {
		f := newFixture(t)
		f.challenges.verdict = verdict

		resp := f.d.HandleEvent(context.Background(), submission())

		assertFailure(t, resp, models.ErrMsgVerificationFailed)
		if f.challenges.verifyCalls != 1 || f.challenges.tokens[0] != "tok" {
			t.Fatalf("expected one verification of the submitted token, got %v", f.challenges.tokens)
		}
		if len(f.messenger.sent) != 0 {
			t.Fatalf("no email may be sent without verification")
		}
	}
}

func TestPostSuccessSendsMessage(t *testing.T) {
	f := newFixture(t)

	resp := f.d.HandleEvent(context.Background(), submission())

	if !resp.Succeeded() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Location == nil || *resp.Location != "http://x" {
		t.Fatalf("expected echoed referer, got %+v", resp.Location)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error in success response: %q", resp.Error)
	}

	if len(f.messenger.sent) != 1 {
		t.Fatalf("expected exactly one email, got %d", len(f.messenger.sent))
	}
	want := models.ContactMessage{
		Sender:    "a@b.com",
		Recipient: recipient,
		ReplyTo:   "a@b.com",
		Subject:   "Hello",
		Body:      "hi",
	}
	if got := f.messenger.sent[0]; got != want {
		t.Fatalf("message = %+v, want %+v", got, want)
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != models.OutcomeSent {
		t.Fatalf("unexpected outcomes: %v", got)
	}
}

func TestPostSuccessWithoutReferer(t *testing.T) {
	f := newFixture(t)
	ev := submission()
	ev.Referer = nil

	resp := f.d.HandleEvent(context.Background(), ev)

	if !resp.Succeeded() {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.Location != nil {
		t.Fatalf("expected absent location, got %q", *resp.Location)
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"success":true}` {
		t.Fatalf("unexpected json %s", raw)
	}
}

func TestPostDispatchFailureIsContained(t *testing.T) {
	f := newFixture(t)
	providerErr := common.WrapPermanent(errors.New("ses MessageRejected: Email address is not verified"))
	f.messenger.result = models.NotSent(providerErr)

	resp := f.d.HandleEvent(context.Background(), submission())

	assertFailure(t, resp, models.ErrMsgSendFailed)
	if strings.Contains(resp.Error, "MessageRejected") {
		t.Fatalf("provider detail leaked to caller: %q", resp.Error)
	}
	if !strings.Contains(f.logs.String(), "Email address is not verified") {
		t.Fatalf("expected provider diagnostic in logs, got %s", f.logs.String())
	}
	if len(f.messenger.sent) != 1 {
		t.Fatalf("expected a single send attempt, got %d", len(f.messenger.sent))
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != models.OutcomeDispatchFailed {
		t.Fatalf("unexpected outcomes: %v", got)
	}
}

func TestPostMessengerPanicIsContained(t *testing.T) {
	f := newFixture(t)
	f.messenger.panicWith = "connection reset by peer"

	resp := f.d.HandleEvent(context.Background(), submission())

	assertFailure(t, resp, models.ErrMsgSendFailed)
	if !strings.Contains(f.logs.String(), "connection reset by peer") {
		t.Fatalf("expected panic value in logs, got %s", f.logs.String())
	}
}

func TestUnsupportedMethod(t *testing.T) {
	f := newFixture(t)

	resp := f.d.HandleEvent(context.Background(), models.Event{HTTPMethod: "DELETE"})

	assertFailure(t, resp, models.ErrMsgMethodNotAllowed)
	if f.challenges.createCalls+f.challenges.verifyCalls != 0 || len(f.messenger.sent) != 0 {
		t.Fatalf("unsupported methods must not reach collaborators")
	}
	if got := f.metrics.outcomes; len(got) != 1 || got[0] != models.OutcomeUnsupportedMethod {
		t.Fatalf("unexpected outcomes: %v", got)
	}
}

func TestLogsCarryLambdaRequestID(t *testing.T) {
	f := newFixture(t)
	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-123"})

	f.d.HandleEvent(ctx, models.Event{HTTPMethod: "GET"})

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(f.logs.Bytes()), &entry); err != nil {
		t.Fatalf("expected one json log line, got %q: %v", f.logs.String(), err)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("expected lambda request id, got %+v", entry)
	}
	if entry["outcome"] != models.OutcomeChallengeIssued {
		t.Fatalf("expected outcome field, got %+v", entry)
	}
}

func TestRepeatedChallengesAreDistinct(t *testing.T) {
	svc, err := challenge.NewAltchaService(config.ChallengeConfig{
		HMACKey:   "secret",
		MaxNumber: 1000,
		Expires:   time.Minute,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected challenge service error: %v", err)
	}
	d, err := New(Config{Recipient: recipient}, Dependencies{Challenges: svc, Messenger: &fakeMessenger{}})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		resp := d.HandleEvent(context.Background(), models.Event{HTTPMethod: "GET"})
		if !resp.IsChallenge() {
			t.Fatalf("expected challenge response, got %+v", resp)
		}
		key := resp.Salt + "|" + resp.Signature
		if _, dup := seen[key]; dup {
			t.Fatalf("challenge repeated: %+v", resp)
		}
		seen[key] = struct{}{}
	}
}
