package transactions

import (
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/snapshot"
	"github.com/pkg/errors"
)

// TransactionHook runs against a whole transaction at a fixed point of its lifecycle.
type TransactionHook func(env *Environment, tx *Transaction) error

// InvariantHook checks a transaction's effects against the snapshot captured around its execution. Returning an
// error, usually a *fuzzerrors.InvariantViolationError, records a finding.
type InvariantHook func(env *Environment, tx *Transaction, snap *snapshot.Snapshot) error

// ErrorHandler classifies a transaction the ledger rejected. Returning nil accepts the failure as expected.
// Returning an error propagates it as a finding.
type ErrorHandler func(env *Environment, tx *Transaction, txErr *types.TransactionError) error

// Transaction describes one transaction attempt composed of one or more instructions, with hooks run at each stage
// of its lifecycle by the executor.
type Transaction struct {
	// Name identifies the transaction in logs and statistics.
	Name string

	// Instructions are executed in order, atomically.
	Instructions []*Instruction

	// ResolveAccountsHook runs before any instruction's hooks. It lets one instruction's accounts depend on
	// another's, such as a balance moved earlier in the same transaction.
	ResolveAccountsHook TransactionHook

	// PreHook runs after the pre-execution snapshot is captured and before the transaction is submitted.
	PreHook TransactionHook

	// InvariantHook runs after successful execution, against the captured snapshot.
	InvariantHook InvariantHook

	// PostHook runs after the invariant check.
	PostHook TransactionHook

	// ErrorHandler classifies execution failures. A nil handler propagates every failure.
	ErrorHandler ErrorHandler

	// built indicates Build has completed.
	built bool
}

// NewTransaction creates a transaction with the given instructions.
func NewTransaction(name string, instructions ...*Instruction) *Transaction {
	return &Transaction{Name: name, Instructions: instructions}
}

// Build resolves the transaction: the transaction-wide account hook runs first, then each instruction's data hook,
// accounts hook and meta conversion, in instruction order. Errors, including fuzzerrors.ErrExhaustedInput, are
// returned unchanged so callers can recognize them.
func (tx *Transaction) Build(env *Environment) error {
	if tx.built {
		return errors.Wrapf(ErrInvalidTransition, "transaction %s is already built", tx.Name)
	}
	if len(tx.Instructions) == 0 {
		return errors.Errorf("transaction %s has no instructions", tx.Name)
	}
	if tx.ResolveAccountsHook != nil {
		if err := tx.ResolveAccountsHook(env, tx); err != nil {
			return err
		}
	}
	for _, ix := range tx.Instructions {
		if err := ix.resolveData(env); err != nil {
			return err
		}
		if err := ix.resolveAccounts(env); err != nil {
			return err
		}
		if _, err := ix.BuildMetas(); err != nil {
			return err
		}
	}
	tx.built = true
	return nil
}

// ToWire returns the instructions in the ledger's format.
func (tx *Transaction) ToWire() ([]types.Instruction, error) {
	wire := make([]types.Instruction, len(tx.Instructions))
	for i, ix := range tx.Instructions {
		w, err := ix.ToWire()
		if err != nil {
			return nil, err
		}
		wire[i] = w
	}
	return wire, nil
}

// Addresses returns every account referenced by the transaction's instructions, deduplicated, in first-use order.
// It is the account list the executor snapshots.
func (tx *Transaction) Addresses() []types.Address {
	seen := make(map[types.Address]struct{})
	addresses := make([]types.Address, 0)
	for _, ix := range tx.Instructions {
		for _, meta := range ix.Metas() {
			if _, ok := seen[meta.Address]; ok {
				continue
			}
			seen[meta.Address] = struct{}{}
			addresses = append(addresses, meta.Address)
		}
	}
	return addresses
}

// Signers returns the keypairs required by every instruction, deduplicated by address.
func (tx *Transaction) Signers() []*types.Keypair {
	seen := make(map[types.Address]struct{})
	signers := make([]*types.Keypair, 0)
	for _, ix := range tx.Instructions {
		for _, signer := range ix.Signers() {
			if _, ok := seen[signer.Address()]; ok {
				continue
			}
			seen[signer.Address()] = struct{}{}
			signers = append(signers, signer)
		}
	}
	return signers
}

// MarkExecuted advances every instruction to StateExecuted.
func (tx *Transaction) MarkExecuted() error {
	for _, ix := range tx.Instructions {
		if err := ix.advance(StateMetasBuilt, StateExecuted); err != nil {
			return err
		}
	}
	return nil
}

// MarkChecked advances every instruction to StateChecked.
func (tx *Transaction) MarkChecked() error {
	for _, ix := range tx.Instructions {
		if err := ix.advance(StateExecuted, StateChecked); err != nil {
			return err
		}
	}
	return nil
}

// HandleError routes a ledger failure through the error handler. Without a handler the failure is returned.
func (tx *Transaction) HandleError(env *Environment, txErr *types.TransactionError) error {
	if tx.ErrorHandler == nil {
		return txErr
	}
	return tx.ErrorHandler(env, tx, txErr)
}

// AcceptErrors returns an ErrorHandler which accepts failures whose key (see types.TransactionError.Key) is listed,
// and propagates the rest.
func AcceptErrors(keys ...string) ErrorHandler {
	accepted := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		accepted[key] = struct{}{}
	}
	return func(env *Environment, tx *Transaction, txErr *types.TransactionError) error {
		if _, ok := accepted[txErr.Key()]; ok {
			return nil
		}
		return txErr
	}
}
