package errors

import (
	"fmt"
	"net/http"
)

// Common error creators for frequent use cases

// NewStoreError creates a store error with operation context. The store
// retries its own connection in the background, so these are retryable from
// the caller's point of view.
func NewStoreError(operation string, err error) *AppError {
	return WrapRetryable(err, ErrCodeStoreUnavailable, fmt.Sprintf("store %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Server error")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeMissingConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDeliveryError creates a per-connection delivery error
func NewDeliveryError(clientID uint64, err error) *AppError {
	return Wrap(err, ErrCodeDeliveryFailure, "broadcast delivery failed").
		WithContext("client_id", clientID)
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes. Store
// failures surface as plain 500s: that is the contract the UI consumes.
func HTTPStatusCode(err error) int {
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the standardized HTTP error body
type HTTPErrorResponse struct {
	Error struct {
		Code    ErrorCode `json:"code"`
		Message string    `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an error to a standardized HTTP response
func ToHTTPResponse(err error, requestID string) HTTPErrorResponse {
	response := HTTPErrorResponse{
		RequestID: requestID,
	}

	response.Error.Code = GetCode(err)
	response.Error.Message = GetUserMessage(err)
	return response
}
