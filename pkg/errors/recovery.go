package errors

import "context"

// Strategy is the recovery decision attached to an error kind
type Strategy int

const (
	// StrategyRetry marks transient, infrastructure-level failures worth
	// retrying: the next attempt may reach a healthy endpoint.
	StrategyRetry Strategy = iota

	// StrategyFail marks failures retrying cannot fix: a malformed request
	// or a rejected credential stays malformed or rejected.
	StrategyFail
)

// String returns the string representation of a strategy
func (s Strategy) String() string {
	switch s {
	case StrategyRetry:
		return "retry"
	case StrategyFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Classify maps an error to a recovery strategy. The mapping is total: every
// error value resolves to exactly StrategyRetry or StrategyFail.
//
// Connection and server errors classify as Retry. Authentication, validation,
// serialization, configuration, capability, and cancellation errors classify
// as Fail. Timeouts classify as Retry so callers can distinguish a slow
// endpoint from a rejected request.
func Classify(err error) Strategy {
	if re, ok := AsRuntimeError(err); ok {
		switch re.Category() {
		case CategoryConnection, CategoryServer, CategoryTimeout, CategoryInternal:
			return StrategyRetry
		case CategoryAuth, CategoryValidation, CategorySerialization,
			CategoryConfig, CategoryCapability, CategoryCancelled:
			return StrategyFail
		}
	}

	if err == context.DeadlineExceeded {
		return StrategyRetry
	}
	if err == context.Canceled {
		return StrategyFail
	}

	// Unclassified errors come from the I/O layer underneath the typed
	// taxonomy (pipe writes, socket reads) and are treated as transient.
	return StrategyRetry
}

// IsRetryable reports whether the classifier maps err to StrategyRetry
func IsRetryable(err error) bool {
	return err != nil && Classify(err) == StrategyRetry
}
