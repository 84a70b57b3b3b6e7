package app

import (
	"errors"
	"strings"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation           = errors.New("validation failed")
	ErrItemNotFound         = errors.New("closet item not found")
	ErrHistoryNotFound      = errors.New("history entry not found")
	ErrNoChecksRemaining    = errors.New("no free checks remaining")
	ErrTrialExhausted       = errors.New("chat trial exhausted")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
	ErrMalformedReply       = errors.New("malformed assistant reply")
	ErrUnresolvedItems      = errors.New("unresolved wardrobe item references")
	ErrUnknownStep          = errors.New("unknown onboarding step")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrInvalidImage         = errors.New("invalid image")
)

// ApologyMessage replaces the assistant reply when the model call fails.
const ApologyMessage = "Sorry, I couldn't come up with a response just now. Please try again in a moment."

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ReplyError describes what went wrong while reading a model reply. The
// reply is still usable; callers log it and move on.
type ReplyError struct {
	// Malformed is set when the reply claimed the structured format but
	// could not be decoded.
	Malformed error
	// Unresolved lists item ids that are not in the closet.
	Unresolved []string
}

func (e *ReplyError) Error() string {
	var parts []string
	if e.Malformed != nil {
		parts = append(parts, ErrMalformedReply.Error()+": "+e.Malformed.Error())
	}
	if len(e.Unresolved) > 0 {
		parts = append(parts, ErrUnresolvedItems.Error()+": "+strings.Join(e.Unresolved, ", "))
	}
	return strings.Join(parts, "; ")
}

func (e *ReplyError) Is(target error) bool {
	switch target {
	case ErrMalformedReply:
		return e.Malformed != nil
	case ErrUnresolvedItems:
		return len(e.Unresolved) > 0
	}
	return false
}
