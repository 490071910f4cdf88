package dto

import (
	"net/http"
	"time"
)

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal       = "ERR_INTERNAL"
	ErrCodeBadRequest     = "ERR_BAD_REQUEST"
	ErrCodeNotFound       = "ERR_NOT_FOUND"
	ErrCodeSyncInProgress = "ERR_SYNC_IN_PROGRESS"
	ErrCodeSyncFailed     = "ERR_SYNC_FAILED"
	ErrCodeUpstream       = "ERR_UPSTREAM_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeSyncInProgress: http.StatusConflict,
	ErrCodeSyncFailed:     http.StatusInternalServerError,
	ErrCodeUpstream:       http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      code,
			Message:   message,
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	}
}
