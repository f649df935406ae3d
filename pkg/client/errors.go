package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrQuotaBlocked is returned when the quota tracker refuses a request.
	ErrQuotaBlocked = errors.New("request blocked: quota nearly spent")

	// ErrMissingCredentials is returned by New without an API key or token source.
	ErrMissingCredentials = errors.New("api key or token source is required")
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassAuth represents 401 responses (missing or expired credentials).
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassQuota represents a spent daily quota.
	ErrorClassQuota ErrorClass = "quota"

	// ErrorClassRateLimit represents 429 and per-user rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Google error reasons with their own handling.
const (
	reasonQuotaExceeded         = "quotaExceeded"
	reasonDailyLimitExceeded    = "dailyLimitExceeded"
	reasonRateLimitExceeded     = "rateLimitExceeded"
	reasonUserRateLimitExceeded = "userRateLimitExceeded"
)

// APIError represents a YouTube API error with additional context.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	// Reason is the first errors[].reason of the Google error envelope.
	Reason  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = e.Reason + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("youtube %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, msg, e.Err)
	}
	return fmt.Sprintf("youtube %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, msg)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// errorEnvelope is the JSON error body of Google APIs.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

// parseAPIError builds an APIError from a non-2xx status and its body.
// Bodies that are not a Google error envelope fall back to the status text.
func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Message:    http.StatusText(status),
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error.Message != "" {
			apiErr.Message = env.Error.Message
		}
		if len(env.Error.Errors) > 0 {
			apiErr.Reason = env.Error.Errors[0].Reason
		}
	}

	apiErr.ErrorClass = classifyStatus(status, apiErr.Reason)
	return apiErr
}

// classifyStatus maps an HTTP status and Google error reason to an error class.
func classifyStatus(status int, reason string) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status == http.StatusForbidden && (reason == reasonQuotaExceeded || reason == reasonDailyLimitExceeded):
		return ErrorClassQuota
	case status == http.StatusForbidden && (reason == reasonRateLimitExceeded || reason == reasonUserRateLimitExceeded):
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyErr returns the class of an error produced by a request attempt.
func classifyErr(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorClass
	}
	if err != nil {
		return ErrorClassNetwork
	}
	return ""
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// client, auth and quota errors repeat until something changes
		return false
	}
}
