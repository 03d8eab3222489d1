package stats

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/pkg/errors"
)

// AccountHash records the hash of an account's data at a named capture point.
type AccountHash struct {
	// DataHash is the hex-encoded sha256 of the account data.
	DataHash string `json:"data_hash" cbor:"data_hash"`

	// CaptureName names the point the account was captured at.
	CaptureName string `json:"capture_name" cbor:"capture_name"`
}

// RegressionMonitor records account data hashes per iteration seed, so two campaigns run from the same master seed
// against two program builds can be compared by a single hash.
type RegressionMonitor struct {
	// Snapshots maps iteration seeds to account addresses to the hashes captured for them, in capture order.
	Snapshots map[string]map[string][]AccountHash `json:"snapshots" cbor:"snapshots"`
}

// NewRegressionMonitor creates an empty RegressionMonitor.
func NewRegressionMonitor() *RegressionMonitor {
	return &RegressionMonitor{Snapshots: make(map[string]map[string][]AccountHash)}
}

// Monitor records the hash of account's data under the iteration seed and address.
func (r *RegressionMonitor) Monitor(seedHex string, captureName string, address types.Address, account *types.Account) {
	var data []byte
	if account != nil {
		data = account.Data
	}
	hash := sha256.Sum256(data)

	accounts, ok := r.Snapshots[seedHex]
	if !ok {
		accounts = make(map[string][]AccountHash)
		r.Snapshots[seedHex] = accounts
	}
	key := address.String()
	accounts[key] = append(accounts[key], AccountHash{DataHash: hex.EncodeToString(hash[:]), CaptureName: captureName})
}

// MergeFrom copies other's snapshots into r. Iteration seeds are unique to one worker, so seeds present in both
// replace r's entry.
func (r *RegressionMonitor) MergeFrom(other *RegressionMonitor) {
	if other == nil {
		return
	}
	for seed, accounts := range other.Snapshots {
		r.Snapshots[seed] = cloneAccountHashes(accounts)
	}
}

// Clone returns a deep copy of the monitor.
func (r *RegressionMonitor) Clone() *RegressionMonitor {
	clone := NewRegressionMonitor()
	clone.MergeFrom(r)
	return clone
}

// Len returns the number of iteration seeds with recorded snapshots.
func (r *RegressionMonitor) Len() int {
	return len(r.Snapshots)
}

// StateHash returns a hex-encoded sha256 over every recorded snapshot. The hash is stable because JSON encoding
// sorts map keys. Returns false if nothing was recorded.
func (r *RegressionMonitor) StateHash() (string, bool, error) {
	if len(r.Snapshots) == 0 {
		return "", false, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return "", false, errors.Wrap(err, "failed to encode regression snapshots")
	}
	hash := sha256.Sum256(b)
	return hex.EncodeToString(hash[:]), true, nil
}

func cloneAccountHashes(accounts map[string][]AccountHash) map[string][]AccountHash {
	clone := make(map[string][]AccountHash, len(accounts))
	for address, hashes := range accounts {
		clone[address] = slices.Clone(hashes)
	}
	return clone
}
