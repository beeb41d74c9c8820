package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTextTooShort marks input rejected by normalization, usually a
	// failed upstream extraction. Not retried.
	ErrTextTooShort = errors.New("article text too short")

	// ErrNotFound is returned by store lookups for unknown fingerprints.
	ErrNotFound = errors.New("article not found")

	// ErrDimensionMismatch marks a vector whose length differs from the
	// store's configured dimension. Fatal for the write, never coerced.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSummarizationFailed is surfaced once the malformed-output retry
	// bound for the summarization gateway is exhausted.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrEmbeddingFailed is surfaced when the embedding gateway cannot
	// produce a usable vector.
	ErrEmbeddingFailed = errors.New("embedding failed")
)

// GatewayErrorKind distinguishes transport problems from schema problems.
type GatewayErrorKind int

const (
	// GatewayTransient covers timeouts, rate limits and 5xx responses.
	// Retried locally with backoff.
	GatewayTransient GatewayErrorKind = iota
	// GatewayMalformedOutput covers responses that do not validate
	// against the expected schema. Retried with the same input up to a
	// small bound.
	GatewayMalformedOutput
	// GatewayRejected covers definitive refusals such as 401 or 400.
	// Never retried; the request itself is wrong.
	GatewayRejected
)

func (k GatewayErrorKind) String() string {
	switch k {
	case GatewayMalformedOutput:
		return "malformed output"
	case GatewayRejected:
		return "rejected"
	default:
		return "transient"
	}
}

// GatewayError wraps a failure from a generative-AI gateway call.
type GatewayError struct {
	Kind GatewayErrorKind
	Op   string
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient gateway failure.
func IsTransient(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge) && ge.Kind == GatewayTransient
}
