// Package models holds the wire shapes shared across handlers and
// middleware.
package models

// ErrorResponse is the error envelope every non-2xx answer uses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
