package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrorKind classifies failures for the HTTP layer and callers.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindQuotaExceeded       ErrorKind = "quota_exceeded"
	KindNoWalletAddress     ErrorKind = "no_wallet_address"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindValidation          ErrorKind = "validation_error"
	KindAlreadyGuessed      ErrorKind = "already_guessed"
	KindForbidden           ErrorKind = "forbidden"
)

// AppError is the error type returned by every service operation that a client can act on.
type AppError struct {
	Kind      ErrorKind
	Message   string
	Field     string     // set for validation errors
	NextReset *time.Time // set for quota errors
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// KindOf returns the kind of an AppError anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func notFound(what, id string) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", what, id)}
}

func invalid(field, msg string) *AppError {
	return &AppError{Kind: KindValidation, Field: field, Message: msg}
}

func quotaExceeded(nextReset time.Time) *AppError {
	return &AppError{
		Kind:      KindQuotaExceeded,
		Message:   "daily spot limit reached",
		NextReset: &nextReset,
	}
}

func upstreamFailure(service string, err error) *AppError {
	if isTimeout(err) {
		return &AppError{Kind: KindUpstreamTimeout, Message: service + " timed out", Err: err}
	}
	return &AppError{Kind: KindUpstreamUnavailable, Message: service + " unavailable", Err: err}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
