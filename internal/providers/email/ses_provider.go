package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	sestypes "github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/rs/zerolog"
)

const sesCharset = "UTF-8"

// SESAPI is the subset of the SES v2 client the provider calls.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESOption configures the SES provider.
type SESOption func(*SESProvider)

// WithSESClient replaces the SES client, mostly for tests.
func WithSESClient(c SESAPI) SESOption {
	return func(p *SESProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithSESClock replaces the clock used for timestamps.
func WithSESClock(now func() time.Time) SESOption {
	return func(p *SESProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// SESProvider sends mail through Amazon SES v2.
type SESProvider struct {
	logger zerolog.Logger
	region string
	client SESAPI
	now    func() time.Time
}

// NewSESProvider loads the default AWS credential chain for region and
// returns a ready provider. Credentials come from the Lambda execution role
// when running in AWS.
func NewSESProvider(ctx context.Context, region string, logger zerolog.Logger, opts ...SESOption) (*SESProvider, error) {
	region = strings.TrimSpace(region)
	if region == "" {
		return nil, errors.New("ses provider: region is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	p := &SESProvider{
		logger: logger,
		region: region,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("ses provider: load aws config: %w", err)
		}
		p.client = sesv2.NewFromConfig(awsCfg)
	}

	return p, nil
}

// Send issues a single SendEmail call with simple UTF-8 text content.
func (p *SESProvider) Send(ctx context.Context, payload *Payload) (*RawResponse, error) {
	if payload == nil {
		return nil, errors.New("ses provider: payload is required")
	}
	if len(payload.To) == 0 {
		return nil, errors.New("ses provider: at least one recipient is required")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(payload.From),
		Destination: &sestypes.Destination{
			ToAddresses: append([]string(nil), payload.To...),
		},
		ReplyToAddresses: append([]string(nil), payload.ReplyTo...),
		Content: &sestypes.EmailContent{
			Simple: &sestypes.Message{
				Subject: &sestypes.Content{
					Charset: aws.String(sesCharset),
					Data:    aws.String(payload.Subject),
				},
				Body: &sestypes.Body{
					Text: &sestypes.Content{
						Charset: aws.String(sesCharset),
						Data:    aws.String(payload.Body),
					},
				},
			},
		},
	}

	out, err := p.client.SendEmail(ctx, input)
	if err != nil {
		resp := &RawResponse{
			ID:        payload.MessageID,
			Code:      sesStatusCode(err),
			Body:      err.Error(),
			Timestamp: p.now(),
		}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			resp.Body = apiErr.ErrorMessage()
			return resp, fmt.Errorf("ses %s: %w", apiErr.ErrorCode(), err)
		}
		return resp, fmt.Errorf("ses provider: send: %w", err)
	}

	resp := &RawResponse{
		Code:      http.StatusOK,
		Body:      "ses: message accepted",
		Timestamp: p.now(),
	}
	if out != nil && out.MessageId != nil {
		resp.ID = *out.MessageId
	}

	p.logger.Debug().
		Str("region", p.region).
		Str("ses_message_id", resp.ID).
		Msg("ses message accepted")
	return resp, nil
}

func sesStatusCode(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
