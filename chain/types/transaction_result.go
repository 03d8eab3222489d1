package types

import "fmt"

// TransactionErrorKind describes the class of a failed transaction.
type TransactionErrorKind string

const (
	// ErrorKindMissingSignature indicates an account requiring a signature was not signed for.
	ErrorKindMissingSignature TransactionErrorKind = "MissingRequiredSignature"
	// ErrorKindProgramNotFound indicates an instruction targeted an address with no deployed program.
	ErrorKindProgramNotFound TransactionErrorKind = "ProgramNotFound"
	// ErrorKindProgramFailedToComplete indicates a program aborted abnormally (panicked).
	ErrorKindProgramFailedToComplete TransactionErrorKind = "ProgramFailedToComplete"
	// ErrorKindCustom indicates a program returned a program-specific error code.
	ErrorKindCustom TransactionErrorKind = "Custom"
	// ErrorKindInvalidInstructionData indicates a program could not decode its instruction payload.
	ErrorKindInvalidInstructionData TransactionErrorKind = "InvalidInstructionData"
	// ErrorKindNotEnoughAccountKeys indicates an instruction was given fewer accounts than the program expects.
	ErrorKindNotEnoughAccountKeys TransactionErrorKind = "NotEnoughAccountKeys"
	// ErrorKindInvalidArgument indicates a program was given an account or argument it cannot act on.
	ErrorKindInvalidArgument TransactionErrorKind = "InvalidArgument"
	// ErrorKindInsufficientFunds indicates an account had too few lamports for the requested operation.
	ErrorKindInsufficientFunds TransactionErrorKind = "InsufficientFunds"
	// ErrorKindReadonlyModified indicates a program modified an account passed as read-only.
	ErrorKindReadonlyModified TransactionErrorKind = "ReadonlyDataModified"
	// ErrorKindExternalAccountModified indicates a program modified the data of, or debited, an account it does
	// not own.
	ErrorKindExternalAccountModified TransactionErrorKind = "ExternalAccountModified"
	// ErrorKindUnbalancedInstruction indicates the sum of lamports changed across an instruction.
	ErrorKindUnbalancedInstruction TransactionErrorKind = "UnbalancedInstruction"
	// ErrorKindComputeBudgetExceeded indicates the transaction exhausted its compute budget.
	ErrorKindComputeBudgetExceeded TransactionErrorKind = "ComputationalBudgetExceeded"
	// ErrorKindProgramError indicates a program failed with an error that does not map to a more specific kind.
	ErrorKindProgramError TransactionErrorKind = "ProgramError"
	// ErrorKindCancelled indicates execution was interrupted because its context was cancelled.
	ErrorKindCancelled TransactionErrorKind = "Cancelled"
)

// TransactionResult describes the outcome of a submitted transaction, successful or not.
type TransactionResult struct {
	// Logs are the log lines emitted by programs during execution.
	Logs []string

	// ComputeUnitsConsumed is the number of compute units consumed across all instructions.
	ComputeUnitsConsumed uint64
}

// TransactionError describes why the ledger rejected or aborted a transaction.
type TransactionError struct {
	// InstructionIndex is the index of the failing instruction, or -1 if the failure is not tied to one.
	InstructionIndex int

	// Kind describes the class of failure.
	Kind TransactionErrorKind

	// Code is the program-specific error code when Kind is ErrorKindCustom.
	Code uint32

	// Message carries additional detail, such as a panic message.
	Message string
}

// Error returns the error message string, implementing the `error` interface.
func (e *TransactionError) Error() string {
	var description string
	if e.Kind == ErrorKindCustom {
		description = fmt.Sprintf("custom program error: 0x%x", e.Code)
	} else {
		description = string(e.Kind)
	}
	if e.Message != "" {
		description = fmt.Sprintf("%s: %s", description, e.Message)
	}
	if e.InstructionIndex < 0 {
		return fmt.Sprintf("transaction failed: %s", description)
	}
	return fmt.Sprintf("instruction %d failed: %s", e.InstructionIndex, description)
}

// Key returns a stable identity for the failure that excludes volatile detail, suitable for bucketing
// occurrences of the same error.
func (e *TransactionError) Key() string {
	if e.Kind == ErrorKindCustom {
		return fmt.Sprintf("%s(%d)", e.Kind, e.Code)
	}
	if e.Kind == ErrorKindProgramFailedToComplete && e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}
