package transactions

import (
	"fmt"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// InstructionState describes how far an Instruction has progressed through a transaction attempt.
type InstructionState uint8

const (
	// StateUnresolved is the state of a newly created instruction.
	StateUnresolved InstructionState = iota
	// StateDataSet indicates the payload has been populated.
	StateDataSet
	// StateAccountsSet indicates every account has been resolved to an identity.
	StateAccountsSet
	// StateMetasBuilt indicates the accounts have been converted to the ledger's account references.
	StateMetasBuilt
	// StateExecuted indicates the enclosing transaction has been submitted.
	StateExecuted
	// StateChecked indicates invariants have been checked against the execution's snapshot.
	StateChecked
)

// String returns the name of the state.
func (s InstructionState) String() string {
	switch s {
	case StateUnresolved:
		return "Unresolved"
	case StateDataSet:
		return "DataSet"
	case StateAccountsSet:
		return "AccountsSet"
	case StateMetasBuilt:
		return "MetasBuilt"
	case StateExecuted:
		return "Executed"
	case StateChecked:
		return "Checked"
	default:
		return fmt.Sprintf("InstructionState(%d)", uint8(s))
	}
}

// ErrInvalidTransition is returned when an instruction is advanced out of order.
var ErrInvalidTransition = errors.New("invalid instruction state transition")

// InstructionHook populates part of an instruction during a transaction attempt.
type InstructionHook func(env *Environment, ix *Instruction) error

// AccountRef binds an identity to an instruction account slot.
type AccountRef struct {
	// Identity is the account the slot refers to.
	Identity *accounts.Identity

	// IsSigner indicates the account must sign.
	IsSigner bool

	// IsWritable indicates the program may modify the account.
	IsWritable bool
}

// Instruction describes a single program invocation being built for a transaction attempt. Its payload and
// accounts are populated by hooks, in that order, and then converted into the ledger's instruction format.
type Instruction struct {
	// Name identifies the instruction in logs and statistics.
	Name string

	// ProgramID is the program the instruction invokes.
	ProgramID types.Address

	// DataHook populates the payload. It may draw from the fuzz input and read ledger state.
	DataHook InstructionHook

	// AccountsHook resolves the instruction's accounts through the environment's identity stores.
	AccountsHook InstructionHook

	// state is the instruction's progress through the attempt.
	state InstructionState

	// data is the serialized payload.
	data []byte

	// accounts are the account slots in order.
	accounts []AccountRef

	// metas are the ledger account references built from accounts.
	metas []types.AccountMeta
}

// NewInstruction creates an unresolved instruction invoking programID.
func NewInstruction(name string, programID types.Address, dataHook InstructionHook, accountsHook InstructionHook) *Instruction {
	return &Instruction{
		Name:         name,
		ProgramID:    programID,
		DataHook:     dataHook,
		AccountsHook: accountsHook,
		accounts:     make([]AccountRef, 0),
	}
}

// State returns the instruction's current state.
func (ix *Instruction) State() InstructionState {
	return ix.state
}

// advance moves the instruction from the expected state to the next one.
func (ix *Instruction) advance(from InstructionState, to InstructionState) error {
	if ix.state != from {
		return errors.Wrapf(ErrInvalidTransition, "instruction %s cannot move from %s to %s", ix.Name, ix.state, to)
	}
	ix.state = to
	return nil
}

// SetPayload serializes v with borsh and uses it as the payload.
func (ix *Instruction) SetPayload(v any) error {
	data, err := borsh.Serialize(v)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize payload of instruction %s", ix.Name)
	}
	ix.data = data
	return nil
}

// SetRawData uses data as the payload.
func (ix *Instruction) SetRawData(data []byte) {
	ix.data = data
}

// Data returns the payload.
func (ix *Instruction) Data() []byte {
	return ix.data
}

// AddAccount appends an account slot. Signer slots require an identity which can sign.
func (ix *Instruction) AddAccount(identity *accounts.Identity, signer bool, writable bool) error {
	if identity == nil {
		return errors.Errorf("instruction %s: nil account identity", ix.Name)
	}
	if signer && !identity.CanSign() {
		return errors.Errorf("instruction %s: %s identity %s cannot sign", ix.Name, identity.Kind, identity.Address)
	}
	ix.accounts = append(ix.accounts, AccountRef{Identity: identity, IsSigner: signer, IsWritable: writable})
	return nil
}

// Accounts returns the account slots.
func (ix *Instruction) Accounts() []AccountRef {
	return ix.accounts
}

// resolveData runs the data hook.
func (ix *Instruction) resolveData(env *Environment) error {
	if ix.DataHook != nil {
		if err := ix.DataHook(env, ix); err != nil {
			return err
		}
	}
	return ix.advance(StateUnresolved, StateDataSet)
}

// resolveAccounts runs the accounts hook.
func (ix *Instruction) resolveAccounts(env *Environment) error {
	if ix.AccountsHook != nil {
		if err := ix.AccountsHook(env, ix); err != nil {
			return err
		}
	}
	return ix.advance(StateDataSet, StateAccountsSet)
}

// BuildMetas converts the resolved account slots into ledger account references. It never creates identities.
func (ix *Instruction) BuildMetas() ([]types.AccountMeta, error) {
	if err := ix.advance(StateAccountsSet, StateMetasBuilt); err != nil {
		return nil, err
	}
	ix.metas = make([]types.AccountMeta, len(ix.accounts))
	for i, ref := range ix.accounts {
		ix.metas[i] = types.AccountMeta{Address: ref.Identity.Address, IsSigner: ref.IsSigner, IsWritable: ref.IsWritable}
	}
	return ix.metas, nil
}

// Metas returns the account references built by BuildMetas.
func (ix *Instruction) Metas() []types.AccountMeta {
	return ix.metas
}

// Signers returns the keypairs of the signer slots.
func (ix *Instruction) Signers() []*types.Keypair {
	signers := make([]*types.Keypair, 0)
	for _, ref := range ix.accounts {
		if ref.IsSigner {
			signers = append(signers, ref.Identity.Keypair)
		}
	}
	return signers
}

// ToWire returns the instruction in the ledger's format. Metas must have been built.
func (ix *Instruction) ToWire() (types.Instruction, error) {
	if ix.state < StateMetasBuilt {
		return types.Instruction{}, errors.Wrapf(ErrInvalidTransition, "instruction %s has no account metas (state %s)", ix.Name, ix.state)
	}
	return types.Instruction{ProgramID: ix.ProgramID, Accounts: ix.metas, Data: ix.data}, nil
}
