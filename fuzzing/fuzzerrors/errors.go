package fuzzerrors

import (
	"errors"
	"fmt"

	"github.com/crytic/svmfuzz/chain/types"
)

// ErrExhaustedInput is the single signal used by every component when the fuzz input is too short for a requested
// value. It abandons the current iteration silently and is never a finding.
var ErrExhaustedInput = errors.New("fuzz input exhausted")

// ErrDeserializationMismatch is matched by DeserializationMismatchError through errors.Is.
var ErrDeserializationMismatch = errors.New("account data does not match the expected layout")

// IsExhaustedInput indicates whether err is, or wraps, ErrExhaustedInput.
func IsExhaustedInput(err error) bool {
	return errors.Is(err, ErrExhaustedInput)
}

// SnapshotSide identifies which half of a snapshot an account was captured in.
type SnapshotSide string

const (
	// SideBefore identifies accounts captured before execution.
	SideBefore SnapshotSide = "before"
	// SideAfter identifies accounts captured after execution.
	SideAfter SnapshotSide = "after"
)

// DeserializationMismatchError describes captured account bytes which could not be decoded into the expected typed
// view. It signals a schema mismatch rather than a program bug: the invariant check is abandoned, and nothing is
// recorded as a finding.
type DeserializationMismatchError struct {
	// Index is the position of the account in the snapshot.
	Index int

	// Side is the snapshot side the account was captured in.
	Side SnapshotSide

	// TypeName is the name of the type the data was decoded into.
	TypeName string

	// Err is the underlying decoding error.
	Err error
}

// Error returns the error message string, implementing the `error` interface.
func (e *DeserializationMismatchError) Error() string {
	return fmt.Sprintf("failed to decode %s account %d as %s: %v", e.Side, e.Index, e.TypeName, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *DeserializationMismatchError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDeserializationMismatch.
func (e *DeserializationMismatchError) Is(target error) bool {
	return target == ErrDeserializationMismatch
}

// ExecutionFailureError describes a transaction which the ledger rejected or aborted, and which the transaction's
// error handler chose to propagate.
type ExecutionFailureError struct {
	// Transaction is the name of the transaction variant that failed.
	Transaction string

	// Err is the ledger's description of the failure.
	Err *types.TransactionError

	// Logs are the log lines emitted before the failure.
	Logs []string

	// Cause is the error returned by the transaction's error handler.
	Cause error
}

// Error returns the error message string, implementing the `error` interface.
func (e *ExecutionFailureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transaction %s failed: %v (%v)", e.Transaction, e.Err, e.Cause)
	}
	return fmt.Sprintf("transaction %s failed: %v", e.Transaction, e.Err)
}

// Unwrap returns the error returned by the transaction's error handler, if any, followed by the ledger error.
func (e *ExecutionFailureError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// InvariantViolationError describes a failed post-execution invariant check. It is always a finding.
type InvariantViolationError struct {
	// Transaction is the name of the transaction variant whose invariant failed. It is set by the executor.
	Transaction string

	// Invariant is the key the violation is recorded under.
	Invariant string

	// Err carries detail about the violation.
	Err error
}

// NewInvariantViolation creates an InvariantViolationError for the named invariant with a formatted detail message.
func NewInvariantViolation(invariant string, format string, args ...any) *InvariantViolationError {
	return &InvariantViolationError{
		Invariant: invariant,
		Err:       fmt.Errorf(format, args...),
	}
}

// Error returns the error message string, implementing the `error` interface.
func (e *InvariantViolationError) Error() string {
	prefix := "invariant " + e.Invariant
	if e.Transaction != "" {
		prefix = fmt.Sprintf("invariant %s of transaction %s", e.Invariant, e.Transaction)
	}
	if e.Err == nil {
		return prefix + " violated"
	}
	return fmt.Sprintf("%s violated: %v", prefix, e.Err)
}

// Unwrap returns the detail error.
func (e *InvariantViolationError) Unwrap() error {
	return e.Err
}

// ConfigurationFatalError describes a misconfiguration which stops the worker, such as an identity flavor that
// cannot be materialized. It requires operator attention and is not a finding.
type ConfigurationFatalError struct {
	// Err is the underlying error.
	Err error
}

// NewConfigurationFatal wraps err as a ConfigurationFatalError, or returns nil if err is nil.
func NewConfigurationFatal(err error) error {
	if err == nil {
		return nil
	}
	return &ConfigurationFatalError{Err: err}
}

// Error returns the error message string, implementing the `error` interface.
func (e *ConfigurationFatalError) Error() string {
	return fmt.Sprintf("fatal configuration error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationFatalError) Unwrap() error {
	return e.Err
}

// FindingError is returned once a finding has been recorded. It ends the current iteration, and the campaign as well
// when the campaign is configured to stop on findings.
type FindingError struct {
	// Category is the statistics category the finding was recorded under.
	Category string

	// Key is the key the finding was recorded under within its category.
	Key string

	// SeedHex is the iteration seed that reproduces the finding.
	SeedHex string

	// Err is the error which produced the finding.
	Err error
}

// Error returns the error message string, implementing the `error` interface.
func (e *FindingError) Error() string {
	return fmt.Sprintf("%s finding %q recorded (seed %s): %v", e.Category, e.Key, e.SeedHex, e.Err)
}

// Unwrap returns the error which produced the finding.
func (e *FindingError) Unwrap() error {
	return e.Err
}
