package client

import (
	"github.com/crytic/svmfuzz/chain/types"
	"golang.org/x/net/context"
)

//go:generate mockgen -source=execution_client.go -destination=execution_client_mock.go -package=client

// ExecutionClient describes the ledger a fuzz test executes against. The fuzzer only interacts with the ledger
// through this interface, so any in-process ledger able to deploy programs, read and write accounts and process
// transactions can back a campaign.
type ExecutionClient interface {
	// Deploy registers a program at programID, owned by loader, or by the client's default loader when loader is nil.
	Deploy(programID types.Address, loader *types.Address, program types.Program) error

	// SetAccount overwrites the state of an account.
	SetAccount(address types.Address, account *types.Account) error

	// GetAccount returns the state of an account, or a default account if none exists.
	GetAccount(address types.Address) (*types.Account, error)

	// GetAccounts returns the state of several accounts positionally, with nil entries for accounts that do not
	// exist.
	GetAccounts(addresses []types.Address) ([]*types.Account, error)

	// SubmitTransaction executes instructions atomically, signed by signers. A rejected or failed transaction
	// returns a *types.TransactionError, usually alongside a result carrying the emitted logs. Any other error
	// indicates the client itself failed.
	SubmitTransaction(ctx context.Context, instructions []types.Instruction, signers []*types.Keypair) (*types.TransactionResult, error)

	// ResetBetweenIterations restores the ledger to the state it was in before the first iteration.
	ResetBetweenIterations() error
}

// Sealer describes an ExecutionClient which must be told when setup is complete so that the current state becomes
// the state restored by ResetBetweenIterations.
type Sealer interface {
	// Seal captures the current state as the reset point.
	Seal()
}
