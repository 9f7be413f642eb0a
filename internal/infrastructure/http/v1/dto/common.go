// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"procura/internal/core/id"
)

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// parseID converts an optional string field to an ID; empty string maps to
// the nil UUID, garbage is left to domain validation to reject.
func parseID(s string) id.ID {
	if s == "" {
		return id.Nil()
	}
	parsed, err := id.Parse(s)
	if err != nil {
		return id.Nil()
	}
	return parsed
}
