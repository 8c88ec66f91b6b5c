package util

import (
	"encoding/json"
	"net/http"
)

// JobResult is the payload returned by the log processor Lambda.
type JobResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OKResult reports a successful job.
func OKResult() JobResult {
	return JobResult{Status: "OK"}
}

// ErrorResult reports a failed job with a human-readable message.
func ErrorResult(message string) JobResult {
	return JobResult{Status: "Error", Message: message}
}

// IntakeResponse is the payload returned by the request intake Lambda.
type IntakeResponse struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// CreateSuccessResponse creates a standardized intake success response.
func CreateSuccessResponse(message string) IntakeResponse {
	body, _ := json.Marshal(map[string]string{"message": message})
	return IntakeResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// CreateErrorResponse creates a standardized intake error response.
func CreateErrorResponse(statusCode int, message string) IntakeResponse {
	body, _ := json.Marshal(map[string]string{"message": message})
	return IntakeResponse{StatusCode: statusCode, Body: string(body)}
}
