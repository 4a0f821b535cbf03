package realtime

import (
	"errors"
	"fmt"

	"github.com/haivivi/rtvoice/pkg/audio/capture"
)

var (
	// ErrDeviceUnavailable is returned when the microphone cannot be opened.
	ErrDeviceUnavailable = capture.ErrDeviceUnavailable

	// ErrCredential is returned when the mediator fails or returns no token.
	ErrCredential = errors.New("realtime: credential unavailable")

	// ErrNegotiation is returned when the signaling exchange fails.
	ErrNegotiation = errors.New("realtime: negotiation failed")

	// ErrSendSuppressed reports a message dropped because the control
	// channel is not open. Sessions log it and never return it.
	ErrSendSuppressed = errors.New("realtime: send suppressed")

	// ErrSessionClosed is returned by operations racing a close.
	ErrSessionClosed = errors.New("realtime: session closed")

	ErrAlreadyInitialized = errors.New("realtime: session already initialized")
	ErrNotInitialized     = errors.New("realtime: session not initialized")
	ErrAlreadyRecording   = errors.New("realtime: already recording")

	// ErrTransportUsed is returned by Connect on a transport that is not idle.
	ErrTransportUsed = errors.New("realtime: transport already used")
)

// Error represents a failure of the credential or signaling exchange, or
// an error reported by the remote service.
type Error struct {
	// Kind is the sentinel this error matches (ErrCredential, ErrNegotiation).
	Kind error `json:"-"`

	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g., "sdp_exchange_failed").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the client event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is the HTTP status code, if applicable.
	HTTPStatus int `json:"-"`

	// Err is the underlying cause.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg += ": " + e.Err.Error()
		}
	}
	switch {
	case e.Code != "":
		return fmt.Sprintf("realtime: %s: %s", e.Code, msg)
	case e.Type != "":
		return fmt.Sprintf("realtime: %s: %s", e.Type, msg)
	}
	return "realtime: " + msg
}

// Unwrap returns the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func credentialError(code, msg string, status int, cause error) *Error {
	return &Error{Kind: ErrCredential, Code: code, Message: msg, HTTPStatus: status, Err: cause}
}

func negotiationError(code, msg string, status int, cause error) *Error {
	return &Error{Kind: ErrNegotiation, Code: code, Message: msg, HTTPStatus: status, Err: cause}
}

// EventError is the payload of a server "error" event.
type EventError struct {
	Type    string `json:"type,omitzero"`
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
	Param   string `json:"param,omitzero"`
	EventID string `json:"event_id,omitzero"`
}

// ToError converts EventError to Error.
func (e *EventError) ToError() *Error {
	return &Error{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Param:   e.Param,
		EventID: e.EventID,
	}
}
