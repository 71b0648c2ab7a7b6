package challenge

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	altcha "github.com/altcha-org/altcha-lib-go"
	"github.com/rs/zerolog"

	"github.com/example/contact-relay/internal/config"
	"github.com/example/contact-relay/internal/models"
)

// Service issues proof-of-work challenges and verifies submitted solutions.
type Service interface {
	Create(ctx context.Context) (models.Challenge, error)
	Verify(ctx context.Context, token string) models.VerificationResult
}

// Option customises an AltchaService.
type Option func(*AltchaService)

// WithClock overrides the clock used to stamp challenge expiry.
func WithClock(now func() time.Time) Option {
	return func(s *AltchaService) {
		if now != nil {
			s.now = now
		}
	}
}

// AltchaService implements Service with the ALTCHA HMAC scheme. Challenges
// are stateless: the expiry travels inside the salt and the signature binds
// it to the server key.
type AltchaService struct {
	logger    zerolog.Logger
	hmacKey   string
	maxNumber int64
	expires   time.Duration
	now       func() time.Time
}

// NewAltchaService constructs the challenge service from configuration.
func NewAltchaService(cfg config.ChallengeConfig, logger zerolog.Logger, opts ...Option) (*AltchaService, error) {
	if strings.TrimSpace(cfg.HMACKey) == "" {
		return nil, errors.New("challenge: hmac key is required")
	}
	if cfg.MaxNumber <= 0 {
		return nil, fmt.Errorf("challenge: invalid max number %d", cfg.MaxNumber)
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	s := &AltchaService{
		logger:    logger,
		hmacKey:   cfg.HMACKey,
		maxNumber: cfg.MaxNumber,
		expires:   cfg.Expires,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Create issues a fresh challenge. Every call draws a new random salt.
func (s *AltchaService) Create(ctx context.Context) (models.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return models.Challenge{}, err
	}

	opts := altcha.ChallengeOptions{
		HMACKey:   s.hmacKey,
		MaxNumber: s.maxNumber,
	}
	if s.expires > 0 {
		expires := s.now().Add(s.expires)
		opts.Expires = &expires
	}

	ch, err := altcha.CreateChallenge(opts)
	if err != nil {
		return models.Challenge{}, fmt.Errorf("challenge: create: %w", err)
	}

	return models.Challenge{
		Algorithm: ch.Algorithm,
		Challenge: ch.Challenge,
		Salt:      ch.Salt,
		Signature: ch.Signature,
	}, nil
}

// Verify checks a base64 encoded solution payload, including its expiry.
func (s *AltchaService) Verify(ctx context.Context, token string) models.VerificationResult {
	if err := ctx.Err(); err != nil {
		return models.VerificationResult{ErrorDetail: err.Error()}
	}
	if strings.TrimSpace(token) == "" {
		return models.VerificationResult{ErrorDetail: "empty payload"}
	}

	ok, err := altcha.VerifySolution(token, s.hmacKey, true)
	res := models.VerificationResult{Verified: ok && err == nil}
	if err != nil {
		res.ErrorDetail = err.Error()
	}

	s.logger.Debug().
		Bool("verified", res.Verified).
		Str("detail", res.ErrorDetail).
		Msg("altcha solution checked")
	return res
}
