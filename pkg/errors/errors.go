// Package errors defines the pipeline error taxonomy on top of errbuilder.
// Every public pipeline operation returns errors from this package so callers
// can classify a failure without string matching.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Category classifies an error for retry and reporting decisions.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryRateLimit  Category = "rate_limit"
	CategoryAbuseLimit Category = "abuse_limit"
	CategoryNotFound   Category = "not_found"
	CategoryValidation Category = "validation"
	CategorySchema     Category = "schema"
	CategoryUnknown    Category = "unknown"
)

// AppError wraps an errbuilder error with pipeline context.
type AppError struct {
	*errbuilder.ErrBuilder
	Category   Category      `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(e.Category)), e.ErrBuilder.Msg)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.ErrBuilder.Unwrap()
}

func newAppError(builder *errbuilder.ErrBuilder, category Category) *AppError {
	return &AppError{
		ErrBuilder: builder,
		Category:   category,
		Timestamp:  time.Now(),
	}
}

// NewNetworkError marks a connection or timeout failure. Retryable.
func NewNetworkError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeUnavailable).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryNetwork)
}

// NewRateLimitError marks plain quota exhaustion. Retryable after the
// server-directed delay.
func NewRateLimitError(message string, retryAfter time.Duration) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg(message)
	err := newAppError(builder, CategoryRateLimit)
	err.RetryAfter = retryAfter
	return err
}

// NewAbuseLimitError marks a secondary/abuse rate limit. Retryable only after
// the mandatory server-dictated wait; never retried automatically.
func NewAbuseLimitError(message string, retryAfter time.Duration) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg(message)
	err := newAppError(builder, CategoryAbuseLimit)
	err.RetryAfter = retryAfter
	return err
}

// NewNotFoundError marks a missing resource or path. Fatal for that item only.
func NewNotFoundError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(message)
	return newAppError(builder, CategoryNotFound)
}

// NewValidationError marks input rejected before or during a fetch
// (size, type, shape). Fatal for that item.
func NewValidationError(message string) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	return newAppError(builder, CategoryValidation)
}

// NewSchemaError marks content that parsed but failed schema validation.
// Reported, not thrown: callers record it as a warning or item error.
func NewSchemaError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategorySchema)
}

// NewUnknownError is the catch-all. Treated as fatal for that item.
func NewUnknownError(message string, cause error) *AppError {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(message)
	if cause != nil {
		builder = builder.WithCause(cause)
	}
	return newAppError(builder, CategoryUnknown)
}

// ToAppError converts any error to an AppError, classifying common causes.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewNetworkError("request cancelled or timed out", err)
	}

	msg := err.Error()
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "network is unreachable") {
		return NewNetworkError("network request failed", err)
	}

	return NewUnknownError("unexpected error", err)
}

// IsRetryable reports whether an error should trigger another attempt.
// Abuse limits are retryable in principle but carry a mandatory wait and are
// never retried automatically, so they report false here.
func IsRetryable(err error) bool {
	switch ToAppError(err).Category {
	case CategoryNetwork, CategoryRateLimit:
		return true
	default:
		return false
	}
}

// RetryAfterHint returns the server-directed delay carried by an error, or
// zero when none was supplied.
func RetryAfterHint(err error) time.Duration {
	if appErr := ToAppError(err); appErr != nil {
		return appErr.RetryAfter
	}
	return 0
}

// ClassifyHTTP maps an HTTP response to the taxonomy. Rate-limit style 403s
// are distinguished from plain authorization failures by the rate-limit
// headers and the secondary-limit hint in the body.
func ClassifyHTTP(statusCode int, header http.Header, body string) *AppError {
	switch {
	case statusCode == http.StatusNotFound:
		return NewNotFoundError("resource not found")

	case statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(header)
		if strings.Contains(strings.ToLower(body), "secondary rate limit") ||
			strings.Contains(strings.ToLower(body), "abuse") {
			return NewAbuseLimitError("abuse limit triggered", retryAfter)
		}
		if header.Get("X-RateLimit-Remaining") == "0" || statusCode == http.StatusTooManyRequests {
			return NewRateLimitError("rate limit exhausted", retryAfter)
		}
		return NewValidationError(fmt.Sprintf("request forbidden: status %d", statusCode))

	case statusCode >= 500:
		return NewNetworkError(fmt.Sprintf("upstream server error: status %d", statusCode), nil)

	case statusCode == http.StatusRequestTimeout:
		return NewNetworkError("upstream request timeout", nil)

	case statusCode >= 400:
		return NewValidationError(fmt.Sprintf("request rejected: status %d", statusCode))

	default:
		return NewUnknownError(fmt.Sprintf("unexpected status %d", statusCode), nil)
	}
}

// parseRetryAfter reads the Retry-After header (seconds form) or derives a
// wait from the rate-limit reset header.
func parseRetryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := header.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
				return wait
			}
		}
	}
	return 0
}
