package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicate        = errors.New("duplicate entry")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// ParseError reports a mention that could not be reduced to a food name.
// It is surfaced to the caller as a failed mention, never dropped.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// Machine-readable rejection reasons attached to EnrichmentFailure and
// reported back to callers on rejected mentions.
const (
	ReasonNoExternalMatch   = "no_external_match"
	ReasonEnrichmentTimeout = "enrichment_timeout"
	ReasonLLMMalformed      = "llm_malformed_response"
	ReasonLowConfidence     = "low_confidence"
	ReasonEnrichmentFailed  = "enrichment_failed"
	ReasonParseError        = "parse_error"
)

// EnrichmentFailure reports an external database or LLM failure during
// enrichment. Failures are local to one mention and never retried
// automatically.
type EnrichmentFailure struct {
	Reason string
	Err    error
}

func (e *EnrichmentFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("enrichment failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("enrichment failed (%s)", e.Reason)
}

func (e *EnrichmentFailure) Unwrap() error { return e.Err }
