package common

import (
	"context"

	"github.com/example/contact-relay/internal/models"
)

// Messenger relays one contact message and reports the outcome as a value.
// Implementations must not panic on provider failures; the result carries
// the classified error instead.
type Messenger interface {
	Send(ctx context.Context, msg models.ContactMessage) models.DispatchResult
}
