// Package app wires the dispatcher and its collaborators from configuration.
// Both entry points share it so the Lambda and the local server behave alike.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	emailadapter "github.com/example/contact-relay/internal/adapters/email"
	"github.com/example/contact-relay/internal/challenge"
	"github.com/example/contact-relay/internal/config"
	"github.com/example/contact-relay/internal/dispatcher"
	emailprovider "github.com/example/contact-relay/internal/providers/email"
	"github.com/example/contact-relay/internal/providers/factory"
)

// Options tweak the wiring for a particular entry point.
type Options struct {
	Metrics dispatcher.Metrics
	// Provider replaces the configured email backend when set.
	Provider       emailprovider.Provider
	AdapterOptions []emailadapter.Option
}

// NewDispatcher builds the dispatcher from cfg. It runs once per cold start.
func NewDispatcher(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*dispatcher.Dispatcher, error) {
	challenges, err := challenge.NewAltchaService(cfg.Challenge, log.With().Str("component", "challenge").Logger())
	if err != nil {
		return nil, fmt.Errorf("wire challenge service: %w", err)
	}

	provider := opts.Provider
	if provider == nil {
		provider, err = factory.Email(ctx, cfg, log.With().Str("component", "email-provider").Logger())
		if err != nil {
			return nil, fmt.Errorf("wire email provider: %w", err)
		}
	}

	adapter, err := emailadapter.NewAdapter(
		provider,
		cfg.Mail.From,
		cfg.Validation,
		cfg.Timeouts.ProviderTimeout(),
		log.With().Str("component", "email-adapter").Logger(),
		opts.AdapterOptions...,
	)
	if err != nil {
		return nil, fmt.Errorf("wire email adapter: %w", err)
	}

	d, err := dispatcher.New(dispatcher.Config{Recipient: cfg.Mail.To}, dispatcher.Dependencies{
		Challenges: challenges,
		Messenger:  adapter,
		Metrics:    opts.Metrics,
		Logger:     log.With().Str("component", "dispatcher").Logger(),
	})
	if err != nil {
		return nil, fmt.Errorf("wire dispatcher: %w", err)
	}
	return d, nil
}
