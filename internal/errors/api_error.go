// Package errors defines the API error taxonomy shared by services
// and handlers. Authorization failures (401/403) are distinguished
// from validation failures (400) so clients can tell "who are you"
// apart from "you may not" and "that makes no sense".
package errors

import "net/http"

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

// Forbidden carries a specific code: the actor is authenticated but
// lacks authority for this action (not host, not the ask's creator,
// not a participant).
func Forbidden(code, message string) *APIError {
	if code == "" {
		code = "forbidden"
	}
	if message == "" {
		message = "forbidden"
	}
	return New(http.StatusForbidden, code, message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}
