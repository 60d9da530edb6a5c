package domain

import (
	"context"
	"errors"
)

// StatusCode is the single-digit payload published after each ingest attempt.
type StatusCode string

const (
	StatusInserted StatusCode = "0"
	StatusFailed   StatusCode = "1"
	StatusSkipped  StatusCode = "2"
	StatusNoData   StatusCode = "3"
)

// Outcome is the result of processing one record.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeInserted
	OutcomeSkipped
	OutcomeNoData
)

// Status maps the outcome onto the wire status code.
func (o Outcome) Status() StatusCode {
	switch o {
	case OutcomeInserted:
		return StatusInserted
	case OutcomeSkipped:
		return StatusSkipped
	case OutcomeNoData:
		return StatusNoData
	default:
		return StatusFailed
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoData:
		return "no_data"
	default:
		return "failed"
	}
}

// Result carries the outcome of one record and, for failures, the cause.
type Result struct {
	Outcome Outcome
	Err     error
}

// Ok builds a non-failed result.
func Ok(outcome Outcome) Result {
	return Result{Outcome: outcome}
}

// Failed builds a failed result.
func Failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}

// Kind classifies Err; it is empty for non-failed results.
func (r Result) Kind() FailureKind {
	if r.Outcome != OutcomeFailed {
		return ""
	}
	return KindOf(r.Err)
}

// FailureKind groups errors for logging and metrics.
type FailureKind string

const (
	KindConnection     FailureKind = "connection"
	KindAuthentication FailureKind = "authentication"
	KindRateLimited    FailureKind = "rate_limited"
	KindStorage        FailureKind = "storage"
	KindDecode         FailureKind = "decode"
	KindCanceled       FailureKind = "canceled"
	KindOther          FailureKind = "other"
)

// Sentinel errors shared by the provider client and the stores. Callers wrap them with %w.
var (
	ErrConnection      = errors.New("provider connection error")
	ErrAuthentication  = errors.New("provider authentication error")
	ErrTooManyRequests = errors.New("provider rate limit exceeded")
	ErrStorage         = errors.New("storage error")
	ErrDecode          = errors.New("malformed provider payload")
)

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrTooManyRequests):
		return KindRateLimited
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrDecode):
		return KindDecode
	default:
		return KindOther
	}
}

// IsProviderError reports whether err came from talking to the provider.
func IsProviderError(err error) bool {
	switch KindOf(err) {
	case KindConnection, KindAuthentication, KindRateLimited:
		return true
	}
	return false
}
