package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes shared with the HTTP boundary.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeInvalidStatus           = "INVALID_STATUS"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeOperationNotAllowed     = "OPERATION_NOT_ALLOWED"
)

// ErrGapExhausted means no free integer exists at the requested insert point.
var ErrGapExhausted = errors.New("position gap exhausted")

// FieldError names a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

// NewValidationError joins the field messages into one message.
func NewValidationError(fields ...FieldError) *ValidationError {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return &ValidationError{Message: strings.Join(msgs, "; "), Fields: fields}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Code() string { return CodeValidation }

func (e *ValidationError) Details() map[string]any {
	if len(e.Fields) == 0 {
		return nil
	}
	return map[string]any{"fields": e.Fields}
}

// InvalidStatusError reports a status value outside the enum.
type InvalidStatusError struct {
	Status string
}

func NewInvalidStatusError(status string) *InvalidStatusError {
	return &InvalidStatusError{Status: status}
}

func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("Invalid status '%s'. Must be one of: %s", e.Status, joinStatuses(AllStatuses))
}

func (e *InvalidStatusError) Code() string { return CodeInvalidStatus }

func (e *InvalidStatusError) Details() map[string]any {
	return map[string]any{
		"status":        e.Status,
		"validStatuses": AllStatuses,
	}
}

// InvalidStatusTransitionError reports an edge missing from the transition table.
type InvalidStatusTransitionError struct {
	CurrentStatus      TicketStatus
	TargetStatus       TicketStatus
	AllowedTransitions []TicketStatus
}

func NewInvalidStatusTransitionError(current, target TicketStatus, allowed []TicketStatus) *InvalidStatusTransitionError {
	return &InvalidStatusTransitionError{
		CurrentStatus:      current,
		TargetStatus:       target,
		AllowedTransitions: append([]TicketStatus{}, allowed...),
	}
}

func (e *InvalidStatusTransitionError) Error() string {
	allowed := "none (final state)"
	if len(e.AllowedTransitions) > 0 {
		allowed = joinStatuses(e.AllowedTransitions)
	}
	return fmt.Sprintf("Cannot transition from '%s' to '%s'. Allowed transitions: %s",
		e.CurrentStatus, e.TargetStatus, allowed)
}

func (e *InvalidStatusTransitionError) Code() string { return CodeInvalidStatusTransition }

func (e *InvalidStatusTransitionError) Details() map[string]any {
	return map[string]any{
		"currentStatus":      e.CurrentStatus,
		"targetStatus":       e.TargetStatus,
		"allowedTransitions": e.AllowedTransitions,
	}
}

// OperationNotAllowedError is reserved for operations refused by state.
type OperationNotAllowedError struct {
	Operation string
	Reason    string
}

func (e *OperationNotAllowedError) Error() string {
	return fmt.Sprintf("Operation '%s' not allowed: %s", e.Operation, e.Reason)
}

func (e *OperationNotAllowedError) Code() string { return CodeOperationNotAllowed }

func (e *OperationNotAllowedError) Details() map[string]any {
	return map[string]any{"operation": e.Operation, "reason": e.Reason}
}

func joinStatuses(statuses []TicketStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
