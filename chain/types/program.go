package types

import (
	"errors"
	"fmt"

	"golang.org/x/net/context"
)

var (
	// ErrInvalidInstructionData is returned by programs which cannot decode their instruction payload.
	ErrInvalidInstructionData = errors.New("invalid instruction data")

	// ErrNotEnoughAccountKeys is returned when a program requests an account index it was not given.
	ErrNotEnoughAccountKeys = errors.New("not enough account keys")

	// ErrInsufficientFunds is returned by programs when an account cannot cover a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrMissingRequiredSignature is returned when a program requires an account to have signed but it did not.
	ErrMissingRequiredSignature = errors.New("missing required signature")

	// ErrInvalidArgument is returned when a program is given an account or argument it cannot act on.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrComputeBudgetExceeded is returned when an invocation exhausts its remaining compute units.
	ErrComputeBudgetExceeded = errors.New("compute budget exceeded")
)

// ProgramError describes a program-specific failure identified by a numeric code.
type ProgramError struct {
	// Code is the program-defined error code.
	Code uint32
}

// Error returns the error message string, implementing the `error` interface.
func (e *ProgramError) Error() string {
	return fmt.Sprintf("custom program error: 0x%x", e.Code)
}

// NewProgramError returns a ProgramError for the given code.
func NewProgramError(code uint32) error {
	return &ProgramError{Code: code}
}

// Program describes a natively executed ledger program.
type Program interface {
	// Process executes a single instruction. The InvocationContext carries every piece of execution state the
	// program may access. Returning an error aborts the enclosing transaction.
	Process(ictx *InvocationContext, data []byte) error
}

// ProgramFunc adapts an ordinary function into a Program.
type ProgramFunc func(ictx *InvocationContext, data []byte) error

// Process calls f(ictx, data).
func (f ProgramFunc) Process(ictx *InvocationContext, data []byte) error {
	return f(ictx, data)
}

// AccountInfo describes an account as seen by an executing program.
type AccountInfo struct {
	// Address is the address of the account.
	Address Address

	// IsSigner indicates whether the transaction carries a signature for this account.
	IsSigner bool

	// IsWritable indicates whether the program may modify this account.
	IsWritable bool

	// Account is the working copy of the account. Modifications are committed when the transaction succeeds.
	Account *Account
}

// InvocationContext is the explicit execution context threaded through a program invocation. It replaces any
// ambient or global state a program might otherwise consult.
type InvocationContext struct {
	// ctx is the context the transaction was submitted with.
	ctx context.Context

	// programID is the address of the executing program.
	programID Address

	// accounts are the accounts passed to the instruction, in order.
	accounts []*AccountInfo

	// logs collects log lines emitted during the transaction.
	logs *[]string

	// computeRemaining is the number of compute units left in the transaction's budget.
	computeRemaining *uint64
}

// NewInvocationContext creates an InvocationContext for a single instruction. The logs and computeRemaining
// pointers are shared across all instructions of the transaction.
func NewInvocationContext(ctx context.Context, programID Address, accounts []*AccountInfo, logs *[]string, computeRemaining *uint64) *InvocationContext {
	return &InvocationContext{
		ctx:              ctx,
		programID:        programID,
		accounts:         accounts,
		logs:             logs,
		computeRemaining: computeRemaining,
	}
}

// Context returns the context the transaction was submitted with.
func (c *InvocationContext) Context() context.Context {
	return c.ctx
}

// ProgramID returns the address of the executing program.
func (c *InvocationContext) ProgramID() Address {
	return c.programID
}

// Accounts returns the accounts passed to the instruction.
func (c *InvocationContext) Accounts() []*AccountInfo {
	return c.accounts
}

// Account returns the account at the given instruction index, or ErrNotEnoughAccountKeys.
func (c *InvocationContext) Account(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(c.accounts) {
		return nil, ErrNotEnoughAccountKeys
	}
	return c.accounts[index], nil
}

// Log records a formatted log line attributed to the executing program.
func (c *InvocationContext) Log(format string, args ...any) {
	*c.logs = append(*c.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// ConsumeCompute deducts units from the remaining compute budget. Returns ErrComputeBudgetExceeded if the
// budget cannot cover it, in which case the budget is drained.
func (c *InvocationContext) ConsumeCompute(units uint64) error {
	if *c.computeRemaining < units {
		*c.computeRemaining = 0
		return ErrComputeBudgetExceeded
	}
	*c.computeRemaining -= units
	return nil
}
