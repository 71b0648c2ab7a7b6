package email

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Scenario enumerates the supported mock behaviours.
type Scenario string

const (
	ScenarioSuccess   Scenario = "success"
	ScenarioTransient Scenario = "transient"
	ScenarioPermanent Scenario = "permanent"
	ScenarioTimeout   Scenario = "timeout"

	// HeaderScenario selects a scenario for a single payload.
	HeaderScenario = "X-Mock-Provider-Scenario"
)

// MockOption customizes the mock provider at construction time.
type MockOption func(*MockProvider)

// WithLatency makes every send wait d before answering.
func WithLatency(d time.Duration) MockOption {
	return func(p *MockProvider) {
		if d < 0 {
			d = 0
		}
		p.latency = d
	}
}

// WithDefaultScenario configures the behaviour when a payload does not pick
// one via HeaderScenario.
func WithDefaultScenario(s Scenario) MockOption {
	return func(p *MockProvider) {
		p.defaultScenario = s
	}
}

// WithRandomSeed swaps the RNG seed used when generating message ids.
func WithRandomSeed(seed int64) MockOption {
	return func(p *MockProvider) {
		p.rnd = rand.New(rand.NewSource(seed)) // #nosec G404 -- deterministic seed for tests.
	}
}

// MockProvider is an in-memory backend for local development and tests. It
// records every payload it accepts and never touches the network.
type MockProvider struct {
	logger          zerolog.Logger
	latency         time.Duration
	defaultScenario Scenario
	now             func() time.Time

	mu   sync.Mutex
	rnd  *rand.Rand
	sent []Payload
}

// NewMockProvider constructs a mock provider that succeeds by default.
func NewMockProvider(logger zerolog.Logger, opts ...MockOption) *MockProvider {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &MockProvider{
		logger:          logger,
		defaultScenario: ScenarioSuccess,
		now:             time.Now,
		rnd:             rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Send simulates delivering the payload.
func (p *MockProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("mock provider: payload is required")
	}
	if len(payload.To) == 0 {
		return nil, errors.New("mock provider: at least one recipient is required")
	}

	if err := p.sleep(ctx, p.latency); err != nil {
		return nil, err
	}

	scenario := p.resolveScenario(payload)
	p.logger.Debug().
		Str("provider", "mock").
		Str("scenario", string(scenario)).
		Str("message_id", payload.MessageID).
		Msg("mock email provider invoked")

	switch scenario {
	case ScenarioPermanent:
		resp := p.response(payload, 550, "mock: mailbox unavailable")
		return resp, fmt.Errorf("smtp %d: %s", resp.Code, resp.Body)
	case ScenarioTransient:
		resp := p.response(payload, 451, "mock: requested action aborted, try again later")
		return resp, fmt.Errorf("smtp %d: %s", resp.Code, resp.Body)
	case ScenarioTimeout:
		<-ctx.Done()
		return nil, ctx.Err()
	default:
		p.mu.Lock()
		p.sent = append(p.sent, clonePayload(payload))
		p.mu.Unlock()
		return p.response(payload, 250, "mock: message queued"), nil
	}
}

// Sent returns copies of the payloads accepted so far.
func (p *MockProvider) Sent() []Payload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Payload, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *MockProvider) resolveScenario(payload *Payload) Scenario {
	value, ok := pickHeader(payload.Headers, HeaderScenario)
	if !ok || value == "" {
		return p.defaultScenario
	}

	switch Scenario(strings.ToLower(strings.TrimSpace(value))) {
	case ScenarioPermanent:
		return ScenarioPermanent
	case ScenarioTransient:
		return ScenarioTransient
	case ScenarioTimeout:
		return ScenarioTimeout
	default:
		return ScenarioSuccess
	}
}

func (p *MockProvider) response(payload *Payload, code int, body string) *RawResponse {
	id := payload.MessageID
	if id == "" {
		p.mu.Lock()
		id = fmt.Sprintf("mock-%08x", p.rnd.Uint32())
		p.mu.Unlock()
	}
	return &RawResponse{
		ID:        id,
		Code:      code,
		Body:      body,
		Timestamp: p.now(),
	}
}

func (p *MockProvider) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clonePayload(p *Payload) Payload {
	out := *p
	out.To = append([]string(nil), p.To...)
	out.ReplyTo = append([]string(nil), p.ReplyTo...)
	if p.Headers != nil {
		out.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

func pickHeader(headers map[string]string, key string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}
