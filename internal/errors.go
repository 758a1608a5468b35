package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies every error surfaced by the engine.
type Kind string

func (k Kind) String() string {
	return string(k)
}

const (
	KindUnknown        Kind = "unknown"
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindTransient      Kind = "transient"
	KindPermanent      Kind = "permanent"
	KindPartialMapping Kind = "partial_mapping"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status is the provider HTTP status when there was one.
	Status int
	// RetryAfter is the provider supplied wait hint of a rate limited call.
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	parts := []string{string(e.Kind)}
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

func Validationf(op, format string, a ...any) *Error {
	return NewError(KindValidation, op, fmt.Sprintf(format, a...), nil)
}

func Authenticationf(op string, err error, format string, a ...any) *Error {
	return NewError(KindAuthentication, op, fmt.Sprintf(format, a...), err)
}

// ErrCredentialNotFound is returned by storage when a pair has no credential.
var ErrCredentialNotFound = errors.New("credential not found")

// KindOf returns the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

func IsNotFound(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindPermanent && (e.Status == http.StatusNotFound || e.Status == http.StatusGone)
}

// RetryAfterOf returns the provider wait hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// ClassifyStatus maps an HTTP status returned by a provider to an error kind.
func ClassifyStatus(status int) Kind {
	switch {
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= 500:
		return KindTransient
	case status == http.StatusUnauthorized:
		return KindAuthentication
	default:
		return KindPermanent
	}
}

// ProviderError builds the classified error of a failed provider call.
func ProviderError(op string, status int, retryAfter time.Duration, detail string, err error) *Error {
	return &Error{
		Kind:       ClassifyStatus(status),
		Op:         op,
		Message:    fmt.Sprintf("status %d: %s", status, detail),
		Status:     status,
		RetryAfter: retryAfter,
		Err:        err,
	}
}

// TransportError classifies a failure that happened before any response.
// Timeouts are transient unless the caller's own context is done.
func TransportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return NewError(KindTransient, op, "request failed", err)
}

// ParseRetryAfter reads a Retry-After header, seconds or HTTP date.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
