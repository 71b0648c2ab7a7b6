package dispatcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/contact-relay/internal/models"
)

// ErrUnsupportedMethod is returned by ParseEvent for anything but GET or POST.
var ErrUnsupportedMethod = errors.New("unsupported http method")

// Request is either a ChallengeRequest or a SubmissionRequest.
type Request interface {
	isRequest()
}

// ChallengeRequest asks for a fresh proof-of-work challenge.
type ChallengeRequest struct{}

// SubmissionRequest carries a contact form submission. A nil field was absent
// from the event.
type SubmissionRequest struct {
	Token   *string
	Mail    *string
	Text    *string
	Subject *string
	Referer *string
}

func (ChallengeRequest) isRequest()  {}
func (SubmissionRequest) isRequest() {}

// Complete reports whether every required field was supplied. Empty strings
// count as supplied.
func (r SubmissionRequest) Complete() bool {
	return r.Token != nil && r.Mail != nil && r.Text != nil && r.Subject != nil
}

// ParseEvent decides the request variant from the event's HTTP method.
func ParseEvent(ev models.Event) (Request, error) {
	switch strings.ToUpper(strings.TrimSpace(ev.HTTPMethod)) {
	case models.MethodGet:
		return ChallengeRequest{}, nil
	case models.MethodPost:
		return SubmissionRequest{
			Token:   ev.Altcha,
			Mail:    ev.Mail,
			Text:    ev.Text,
			Subject: ev.Subject,
			Referer: ev.Referer,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, ev.HTTPMethod)
	}
}
