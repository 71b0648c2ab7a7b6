package common

import "unicode/utf8"

// DefaultReasonLimit caps the provider diagnostic kept in a DispatchResult.
const DefaultReasonLimit = 512

// TruncateReason trims the supplied string to the specified rune limit. If
// limit is zero or negative it returns an empty string.
func TruncateReason(reason string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(reason) <= limit {
		return reason
	}
	return string([]rune(reason)[:limit])
}
