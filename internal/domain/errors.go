package domain

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTimedOut means the service did not answer before the request deadline.
	ErrTimedOut = errors.New("analysis request timed out")

	// ErrGenerationFailed means the service answered but produced no flowchart.
	ErrGenerationFailed = errors.New("flowchart generation failed")

	// ErrSuperseded means a newer submit or a reset replaced this request
	// before its response was applied.
	ErrSuperseded = errors.New("analysis request superseded")
)

// ValidationError is a user-correctable input problem caught before any
// network call.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// TransportError is a failed exchange with the analysis service. StatusCode
// is zero when no HTTP response was received.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Undecodable():
		return fmt.Sprintf("unreadable analysis response (status %d): %v", e.StatusCode, e.Err)
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("analysis service error (status %d): %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("analysis service error (status %d)", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("analysis service unreachable: %v", e.Err)
	}
	return "analysis service error"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Undecodable reports whether the service answered with success but the body
// could not be read as a response envelope.
func (e *TransportError) Undecodable() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimedOut)
}

// StatusCode extracts the HTTP status of a TransportError, or 0.
func StatusCode(err error) int {
	var t *TransportError
	if errors.As(err, &t) {
		return t.StatusCode
	}
	return 0
}

// IsRetryable reports whether resubmitting the same request may succeed.
// Nothing retries automatically; this only drives the hint shown to the user.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTimedOut) || errors.Is(err, ErrSuperseded) {
		return true
	}
	var t *TransportError
	if errors.As(err, &t) {
		return t.StatusCode == 0 || t.StatusCode >= http.StatusInternalServerError || t.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// UserMessage renders err as the short message shown next to the editor.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var v *ValidationError
	var t *TransportError
	switch {
	case errors.As(err, &v):
		if v.Field == "code" {
			return "Please enter some code to analyze."
		}
		return fmt.Sprintf("Invalid %s: %s.", v.Field, v.Message)
	case errors.Is(err, ErrTimedOut):
		return "The analysis service took too long to respond. Please try again."
	case errors.Is(err, ErrGenerationFailed):
		return "Failed to generate a flowchart for this code."
	case errors.Is(err, ErrSuperseded):
		return "A newer analysis replaced this one."
	case errors.As(err, &t):
		if t.Undecodable() {
			return "The analysis service sent a response that could not be read."
		}
		if t.StatusCode != 0 {
			return fmt.Sprintf("The analysis service returned an error (HTTP %d).", t.StatusCode)
		}
		return "Could not reach the analysis service."
	}
	return "Something went wrong while analyzing the code."
}
