package factory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/contact-relay/internal/config"
	emailprovider "github.com/example/contact-relay/internal/providers/email"
)

// Email constructs the configured email provider: SES, SMTP or mock.
func Email(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (emailprovider.Provider, error) {
	backend := normalize(cfg.Mail.Provider, config.ProviderSES)
	switch backend {
	case config.ProviderSES:
		provider, err := emailprovider.NewSESProvider(ctx, cfg.AWS.Region, logger)
		if err != nil {
			return nil, fmt.Errorf("factory: ses provider init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Str("region", cfg.AWS.Region).
			Msg("email provider initialised")
		return provider, nil
	case config.ProviderSMTP:
		provider, err := emailprovider.NewSMTPProvider(cfg.SMTP, cfg.Timeouts.ProviderTimeout(), logger)
		if err != nil {
			return nil, fmt.Errorf("factory: smtp provider init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Str("host", cfg.SMTP.Host).
			Msg("email provider initialised")
		return provider, nil
	case config.ProviderMock:
		provider := emailprovider.NewMockProvider(logger,
			emailprovider.WithDefaultScenario(emailprovider.Scenario(normalize(cfg.Mock.Scenario, string(emailprovider.ScenarioSuccess)))),
			emailprovider.WithLatency(time.Duration(cfg.Mock.LatencyMillis)*time.Millisecond),
		)
		logger.Info().
			Str("backend", backend).
			Str("scenario", cfg.Mock.Scenario).
			Msg("email provider initialised")
		return provider, nil
	default:
		return nil, fmt.Errorf("factory: unsupported email provider backend %q", cfg.Mail.Provider)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
