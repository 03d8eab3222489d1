package fuzzing

import (
	"github.com/crytic/svmfuzz/chain"
	"github.com/crytic/svmfuzz/fuzzing/client"
)

// FuzzerHooks defines the hooks that can be used for the Fuzzer on an API level.
type FuzzerHooks struct {
	// NewClientFunc describes the function used to create the ledger of a new FuzzerWorker. Every worker must
	// receive its own ledger.
	NewClientFunc NewClientFunc

	// ClientSetupFuncs describes functions run in order against every new worker ledger, after the fuzz test's own
	// setup and before the ledger is sealed.
	ClientSetupFuncs []ClientSetupFunc
}

// NewClientFunc describes a function which creates the ledger used by the worker at workerIndex.
type NewClientFunc func(fuzzer *Fuzzer, workerIndex int) (client.ExecutionClient, error)

// ClientSetupFunc describes a function which sets up a ledger's initial state prior to fuzzing.
type ClientSetupFunc func(fuzzer *Fuzzer, c client.ExecutionClient) error

// defaultNewClientFunc is a NewClientFunc which creates a chain.TestChain from the fuzzing configuration.
func defaultNewClientFunc(fuzzer *Fuzzer, workerIndex int) (client.ExecutionClient, error) {
	chainConfig := fuzzer.config.Fuzzing.TestChain
	return chain.NewTestChain(&chainConfig)
}
