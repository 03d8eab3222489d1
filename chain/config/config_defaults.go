package config

import "github.com/crytic/svmfuzz/chain/types"

// DefaultComputeUnitLimit is the per-transaction compute budget used when none is configured.
const DefaultComputeUnitLimit = 1_400_000

// DefaultTestChainConfig obtains a default configuration for a test chain.
func DefaultTestChainConfig() *TestChainConfig {
	return &TestChainConfig{
		ComputeUnitLimit: DefaultComputeUnitLimit,
		DefaultLoader:    types.NativeLoaderAddress,
		VerifySignatures: true,
	}
}
