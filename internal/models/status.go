package models

// Outcome labels recorded for every invocation.
const (
	OutcomeChallengeIssued    = "challenge_issued"
	OutcomeChallengeFailed    = "challenge_failed"
	OutcomeSent               = "sent"
	OutcomeVerificationFailed = "verification_failed"
	OutcomeDispatchFailed     = "dispatch_failed"
	OutcomeUnsupportedMethod  = "unsupported_method"
)

// VerificationResult is what the challenge service reports for a submitted
// token. ErrorDetail is diagnostic only.
type VerificationResult struct {
	Verified    bool
	ErrorDetail string
}

// DispatchResult is the outcome of a single send attempt. Err carries the
// classified provider error for logging and is never shown to the submitter.
type DispatchResult struct {
	Success       bool
	MessageID     string
	FailureReason string
	Err           error
}

// Sent builds a successful DispatchResult.
func Sent(messageID string) DispatchResult {
	return DispatchResult{Success: true, MessageID: messageID}
}

// NotSent builds a failed DispatchResult from err.
func NotSent(err error) DispatchResult {
	res := DispatchResult{Err: err}
	if err != nil {
		res.FailureReason = err.Error()
	}
	return res
}
