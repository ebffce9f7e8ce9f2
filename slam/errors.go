package slam

import "fmt"

// DomainError reports degenerate geometry or non-finite input values.
// The affected observation is skipped; the rest of the batch proceeds.
type DomainError struct {
	// Reason describes the degenerate condition
	Reason string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error: %s", e.Reason)
}

// NumericError reports a singular or ill-conditioned innovation covariance.
// The affected observation is skipped; the rest of the batch proceeds.
type NumericError struct {
	// Reason describes the numeric failure
	Reason string
	// Cause is the underlying linear-algebra error, if any
	Cause error
}

// Error implements the error interface.
func (e *NumericError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("numeric error: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("numeric error: %s", e.Reason)
}

// Unwrap returns the underlying cause.
func (e *NumericError) Unwrap() error { return e.Cause }

// PreconditionError reports a caller contract violation. The whole call is
// rejected and the belief is left untouched.
type PreconditionError struct {
	// Reason describes the violated precondition
	Reason string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition violation: %s", e.Reason)
}
