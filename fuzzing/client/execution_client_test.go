package client_test

import (
	"github.com/crytic/svmfuzz/chain"
	"github.com/crytic/svmfuzz/fuzzing/client"
)

// The in-process ledger and the generated mock both satisfy the client interfaces.
var (
	_ client.ExecutionClient = (*chain.TestChain)(nil)
	_ client.Sealer          = (*chain.TestChain)(nil)
	_ client.ExecutionClient = (*client.MockExecutionClient)(nil)
	_ client.Sealer          = (*client.MockSealer)(nil)
)
