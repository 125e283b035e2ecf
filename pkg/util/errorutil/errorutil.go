package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes rendered in the errorCode field of failed responses.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeInvalidStatus           = "INVALID_STATUS"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeNotFound                = "NOT_FOUND"
	CodeTicketNotFound          = "TICKET_NOT_FOUND"
	CodeOperationNotAllowed     = "OPERATION_NOT_ALLOWED"
	CodeInternal                = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeValidation:              http.StatusBadRequest,
	CodeInvalidStatus:           http.StatusBadRequest,
	CodeNotFound:                http.StatusNotFound,
	CodeTicketNotFound:          http.StatusNotFound,
	CodeInvalidStatusTransition: http.StatusUnprocessableEntity,
	CodeOperationNotAllowed:     http.StatusForbidden,
	CodeInternal:                http.StatusInternalServerError,
}

// HTTPStatus returns the status for code, 500 for unknown codes.
func HTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError whose status comes from the code table.
func NewDomainError(code, message string, details any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: HTTPStatus(code), Details: details}
}

func NewValidationError(message string, details any) error {
	return NewDomainError(CodeValidation, message, details)
}

func NewTicketNotFound(id string) error {
	return NewDomainError(CodeTicketNotFound, fmt.Sprintf("Ticket with ID '%s' not found", id), nil)
}

func NewRouteNotFound(method, path string) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("Route %s %s not found", method, path), nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// codedError is implemented by the domain's typed errors.
type codedError interface {
	error
	Code() string
	Details() map[string]any
}

// ToDomainError converts any error into a DomainError. Unknown errors become
// INTERNAL_ERROR and keep the cause in Err.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var coded codedError
	if errors.As(err, &coded) {
		de := NewDomainError(coded.Code(), coded.Error(), nil)
		if details := coded.Details(); len(details) > 0 {
			de.Details = details
		}
		return de
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    err.Error(),
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Public returns the copy of e safe to send to clients. In production, 5xx
// messages and details are replaced with a generic message.
func Public(e *DomainError, production bool) *DomainError {
	out := *e
	if production && out.HTTPStatus >= http.StatusInternalServerError {
		out.Message = "Internal server error"
		out.Details = nil
	}
	return &out
}
