package email

import (
	"context"
	"time"
)

// Payload is the canonical representation of an outbound email passed to a
// provider. The adapter normalizes contact messages to this structure.
type Payload struct {
	MessageID string
	From      string
	To        []string
	ReplyTo   []string
	Subject   string
	Body      string
	Headers   map[string]string
}

// RawResponse mirrors the low level provider response that the adapter
// inspects when building a DispatchResult.
type RawResponse struct {
	ID        string
	Code      int
	Body      string
	Timestamp time.Time
}

// Provider is the contract exposed by every email backend.
type Provider interface {
	Send(ctx context.Context, payload *Payload) (*RawResponse, error)
}
