package routing

import (
	"errors"
	"fmt"
)

// Reason tags a routing failure. Each tag implies a different remediation.
type Reason string

const (
	ReasonInvalidRequest Reason = "invalid_request"
	ReasonUnavailable    Reason = "unavailable"
	ReasonDenied         Reason = "denied"
	ReasonNoRoute        Reason = "no_route_found"
	ReasonEmpty          Reason = "empty_result"
	ReasonMalformed      Reason = "malformed_reply"
	ReasonUnknown        Reason = "unknown"
)

var (
	// ErrSuperseded is returned when a newer request or a cancellation
	// replaced the request before its reply was applied.
	ErrSuperseded = errors.New("route request superseded")

	errMalformedBody = errors.New("malformed directions body")
)

type Failure struct {
	Reason Reason
	Status string // provider status, if any
	Err    error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("route request failed: %s", f.Reason)
	if f.Status != "" {
		msg += " (" + f.Status + ")"
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Message is the user-facing text for the failure.
func (f *Failure) Message() string {
	switch f.Reason {
	case ReasonInvalidRequest:
		return "Enter a destination to start navigation."
	case ReasonUnavailable:
		return "Maps service not ready. Please wait a moment and try again."
	case ReasonDenied:
		return "Directions API Denied. Check that the Directions API is enabled for this key."
	case ReasonNoRoute:
		return "No route found between these locations. Try being more specific."
	case ReasonEmpty:
		return "The routing service returned no routes. Try again."
	case ReasonMalformed:
		return "Routing failed: invalid route result structure."
	}
	if f.Status != "" {
		return "Routing failed: " + f.Status
	}
	return "Routing failed."
}

func failure(reason Reason, status string, err error) *Failure {
	return &Failure{Reason: reason, Status: status, Err: err}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
