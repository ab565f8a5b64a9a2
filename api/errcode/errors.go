// Package errcode defines the error vocabulary surfaced on the wire and
// the envelope it is serialized in. Every error carried to a client maps
// onto a registered code with a fixed identifier and HTTP status.
package errcode

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorCoder is implemented by any value that can identify its error code.
type ErrorCoder interface {
	ErrorCode() ErrorCode
}

// ErrorCode represents one registered error type.
type ErrorCode int

var _ error = ErrorCode(0)

// ErrorCode implements ErrorCoder.
func (ec ErrorCode) ErrorCode() ErrorCode {
	return ec
}

// Error implements error, returning the canonical identifier.
func (ec ErrorCode) Error() string {
	return ec.String()
}

// String returns the canonical identifier for this error code.
func (ec ErrorCode) String() string {
	return ec.Descriptor().Value
}

// Descriptor returns the descriptor registered for the code.
func (ec ErrorCode) Descriptor() ErrorDescriptor {
	d, ok := errorCodeToDescriptors[ec]
	if !ok {
		return ErrorCodeUnknown.Descriptor()
	}
	return d
}

// Message returns the human readable message registered for the code.
func (ec ErrorCode) Message() string {
	return ec.Descriptor().Message
}

// MarshalText serializes the code as its canonical identifier.
func (ec ErrorCode) MarshalText() ([]byte, error) {
	return []byte(ec.String()), nil
}

// UnmarshalText parses a canonical identifier, mapping unknown values to
// ErrorCodeUnknown.
func (ec *ErrorCode) UnmarshalText(text []byte) error {
	desc, ok := idToDescriptors[string(text)]
	if !ok {
		*ec = ErrorCodeUnknown
		return nil
	}
	*ec = desc.Code
	return nil
}

// WithMessage creates a new Error with the given code and an overridden
// message.
func (ec ErrorCode) WithMessage(message string) Error {
	return Error{Code: ec, Message: message}
}

// WithDetail creates a new Error carrying the given detail value.
func (ec ErrorCode) WithDetail(detail interface{}) Error {
	return Error{Code: ec, Message: ec.Message(), Detail: detail}
}

// ErrorDescriptor describes one registered error code.
type ErrorDescriptor struct {
	// Code is the registered code.
	Code ErrorCode

	// Value is the wire identifier, e.g. "NAME_INVALID".
	Value string

	// Message is the canonical human readable message.
	Message string

	// HTTPStatusCode is the status responses carrying this code use.
	HTTPStatusCode int
}

// Error is one element of the wire envelope.
type Error struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

var _ error = Error{}

// ErrorCode implements ErrorCoder.
func (e Error) ErrorCode() ErrorCode {
	return e.Code
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Message)
}

// Errors is the wire envelope: {"errors": [...]}.
type Errors []Error

var _ error = Errors{}

func (errs Errors) Error() string {
	switch len(errs) {
	case 0:
		return "<nil>"
	case 1:
		return errs[0].Error()
	default:
		msg := "errors:\n"
		for _, err := range errs {
			msg += err.Error() + "\n"
		}
		return msg
	}
}

// Len returns the number of errors in the envelope.
func (errs Errors) Len() int {
	return len(errs)
}

// MarshalJSON wraps the slice in the errors envelope.
func (errs Errors) MarshalJSON() ([]byte, error) {
	var envelope struct {
		Errors []Error `json:"errors,omitempty"`
	}
	envelope.Errors = errs
	return json.Marshal(envelope)
}

// UnmarshalJSON unwraps the errors envelope.
func (errs *Errors) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Errors []Error `json:"errors"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	*errs = envelope.Errors
	return nil
}

// ServeJSON writes err as an errors envelope, choosing the HTTP status
// from the first error's registered descriptor.
func ServeJSON(w http.ResponseWriter, err error) error {
	var envelope Errors

	switch v := err.(type) {
	case Errors:
		envelope = v
	case Error:
		envelope = Errors{v}
	case ErrorCode:
		envelope = Errors{v.WithDetail(nil)}
	default:
		envelope = Errors{ErrorCodeUnknown.WithDetail(err.Error())}
	}

	status := http.StatusInternalServerError
	if len(envelope) > 0 {
		status = envelope[0].Code.Descriptor().HTTPStatusCode
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(envelope)
}
