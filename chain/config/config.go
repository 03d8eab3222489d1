package config

import (
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/pkg/errors"
)

// TestChainConfig represents the configuration of the in-process ledger used for fuzzing.
type TestChainConfig struct {
	// ComputeUnitLimit describes the compute budget of a single transaction. Every instruction consumes a base cost
	// plus one unit per byte of instruction data, and programs may consume more.
	ComputeUnitLimit uint64 `json:"computeUnitLimit"`

	// DefaultLoader describes the loader that owns program accounts deployed without an explicit loader.
	DefaultLoader types.Address `json:"defaultLoader"`

	// VerifySignatures indicates whether signer keypairs sign and verify the transaction message on submission.
	// Disabling it only checks that a keypair is present for every signer account.
	VerifySignatures bool `json:"verifySignatures"`
}

// Validate validates that the TestChainConfig meets certain requirements.
// Returns an error if one occurs.
func (c *TestChainConfig) Validate() error {
	if c.ComputeUnitLimit == 0 {
		return errors.New("chain config must specify a positive compute unit limit")
	}
	return nil
}
