package provider

import "fmt"

// FailureKind classifies a provider failure for retry policy.
type FailureKind string

const (
	// FailureTransient covers timeouts, transport errors, rate limiting, and 5xx.
	FailureTransient FailureKind = "transient"
	// FailurePermanent covers non-429 4xx responses and malformed output.
	FailurePermanent FailureKind = "permanent"
)

// Failure describes a classified provider failure. Retryable is true only for
// transient failures that have not yet exhausted the retry budget.
type Failure struct {
	Kind       FailureKind
	Retryable  bool
	StatusCode int
	Message    string
}

// Outcome is the normalized result of a provider invocation. Exactly one of
// the success fields or Failure is populated; callers branch on Succeeded.
type Outcome struct {
	ModifiedText string
	ModelUsed    string
	TokensUsed   int
	Failure      *Failure
}

// Succeeded reports whether the invocation produced a modified text.
func (o Outcome) Succeeded() bool {
	return o.Failure == nil
}

func transientFailure(status int, format string, args ...any) Outcome {
	return Outcome{Failure: &Failure{
		Kind:       FailureTransient,
		Retryable:  true,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
	}}
}

func permanentFailure(status int, format string, args ...any) Outcome {
	return Outcome{Failure: &Failure{
		Kind:       FailurePermanent,
		Retryable:  false,
		StatusCode: status,
		Message:    fmt.Sprintf(format, args...),
	}}
}
