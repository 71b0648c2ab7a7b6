package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/example/contact-relay/internal/app"
	"github.com/example/contact-relay/internal/config"
	"github.com/example/contact-relay/internal/logger"
	"github.com/example/contact-relay/internal/models"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel, "contact-lambda")
	if err != nil {
		fail("logger init", err)
	}
	log := *baseLogger

	d, err := app.NewDispatcher(ctx, cfg, log, app.Options{})
	if err != nil {
		fail("wiring", err)
	}

	log.Info().
		Str("provider", cfg.Mail.Provider).
		Str("recipient", cfg.Mail.To).
		Msg("contact lambda ready")

	lambda.Start(func(ctx context.Context, ev models.Event) (models.Response, error) {
		return d.HandleEvent(ctx, ev), nil
	})
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("contact lambda init failed")
}
