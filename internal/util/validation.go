package util

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// ErrInvalidEmail is returned when an email address cannot be parsed.
var ErrInvalidEmail = errors.New("invalid email address")

// ParseMailbox validates a bare address such as a submitter's reply-to. The
// address is returned trimmed but otherwise untouched.
func ParseMailbox(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidEmail)
	}

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	// A display name here would let a submitter spoof the reply-to header.
	if addr.Name != "" || addr.Address != trimmed {
		return "", fmt.Errorf("%w: must be a bare address", ErrInvalidEmail)
	}

	return addr.Address, nil
}

// ParseDisplayAddress validates an address that may carry a display name,
// such as "Website <cloud@my.domain>".
func ParseDisplayAddress(value string) (*mail.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: value is empty", ErrInvalidEmail)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	return addr, nil
}

// EnsureMaxBytes checks that a string does not exceed the specified size.
func EnsureMaxBytes(field, value string, max int) error {
	if max <= 0 {
		return nil
	}
	if len(value) > max {
		return fmt.Errorf("%s exceeds maximum size of %d bytes", field, max)
	}
	return nil
}

// EnsureMaxRunes ensures a string is not longer than the provided rune count.
func EnsureMaxRunes(field, value string, max int) error {
	if max <= 0 {
		return nil
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%s exceeds maximum length of %d characters", field, max)
	}
	return nil
}
