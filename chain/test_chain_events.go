package chain

import (
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/events"
)

// TestChainEvents defines the event emitters for a TestChain.
type TestChainEvents struct {
	// ProgramDeployed emits events when a program is deployed to the chain.
	ProgramDeployed events.EventEmitter[ProgramDeployedEvent]

	// TransactionExecuted emits events after a transaction is processed, whether it succeeded or not.
	TransactionExecuted events.EventEmitter[TransactionExecutedEvent]

	// StateReset emits events when the chain restores its sealed genesis state.
	StateReset events.EventEmitter[StateResetEvent]
}

// ProgramDeployedEvent describes an event where a program is deployed to the TestChain.
type ProgramDeployedEvent struct {
	Chain     *TestChain
	ProgramID types.Address
	Loader    types.Address
}

// TransactionExecutedEvent describes an event where the TestChain processed a transaction. Err is nil if the
// transaction committed.
type TransactionExecutedEvent struct {
	Chain        *TestChain
	Instructions []types.Instruction
	Result       *types.TransactionResult
	Err          *types.TransactionError
}

// StateResetEvent describes an event where the TestChain restored its sealed genesis state.
type StateResetEvent struct {
	Chain *TestChain
}
