package models

// User visible error messages. Provider diagnostics never reach the caller.
const (
	ErrMsgVerificationFailed = "Verification failed"
	ErrMsgSendFailed         = "Failed to send email"
	ErrMsgChallengeFailed    = "Failed to create challenge"
	ErrMsgMethodNotAllowed   = "Method not allowed"
)

// Response is the value returned to the caller. A challenge response carries
// only the four challenge fields; a submission response carries success and
// either location or error.
type Response struct {
	Success  *bool   `json:"success,omitempty"`
	Location *string `json:"location,omitempty"`
	Error    string  `json:"error,omitempty"`

	Algorithm string `json:"algorithm,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	Salt      string `json:"salt,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// ChallengeResponse copies the challenge fields verbatim.
func ChallengeResponse(c Challenge) Response {
	return Response{
		Algorithm: c.Algorithm,
		Challenge: c.Challenge,
		Salt:      c.Salt,
		Signature: c.Signature,
	}
}

// SuccessResponse reports a relayed submission. location is passed through
// unchanged and may be nil.
func SuccessResponse(location *string) Response {
	ok := true
	return Response{Success: &ok, Location: location}
}

// FailureResponse reports a failed invocation with a user visible message.
func FailureResponse(msg string) Response {
	ok := false
	return Response{Success: &ok, Error: msg}
}

// Succeeded reports whether the response represents a successful submission.
func (r Response) Succeeded() bool {
	return r.Success != nil && *r.Success
}

// IsChallenge reports whether the response carries a challenge.
func (r Response) IsChallenge() bool {
	return r.Success == nil && r.Signature != ""
}
