package snapshot

import (
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/pkg/errors"
)

// Snapshot holds the state of a list of accounts captured before and after a transaction executes. Entries are
// aligned positionally with the addresses the snapshot was created for. Accounts which do not exist are nil.
type Snapshot struct {
	// addresses are the accounts the snapshot covers.
	addresses []types.Address

	// before holds the account states captured by CaptureBefore.
	before []*types.Account

	// after holds the account states captured by CaptureAfter.
	after []*types.Account
}

// New creates a Snapshot covering the given addresses. Nothing is captured until CaptureBefore is called.
func New(addresses []types.Address) *Snapshot {
	return &Snapshot{addresses: append([]types.Address(nil), addresses...)}
}

// capture reads every covered account in a single batched call.
func (s *Snapshot) capture(c client.ExecutionClient) ([]*types.Account, error) {
	accounts, err := c.GetAccounts(s.addresses)
	if err != nil {
		return nil, errors.Wrap(err, "failed to capture account snapshot")
	}
	if len(accounts) != len(s.addresses) {
		return nil, errors.Errorf("client returned %d accounts for a snapshot of %d", len(accounts), len(s.addresses))
	}
	return accounts, nil
}

// CaptureBefore records the current state of the covered accounts as the pre-execution state.
func (s *Snapshot) CaptureBefore(c client.ExecutionClient) error {
	accounts, err := s.capture(c)
	if err != nil {
		return err
	}
	s.before = accounts
	return nil
}

// CaptureAfter records the current state of the covered accounts as the post-execution state.
func (s *Snapshot) CaptureAfter(c client.ExecutionClient) error {
	accounts, err := s.capture(c)
	if err != nil {
		return err
	}
	s.after = accounts
	return nil
}

// Len returns the number of covered accounts.
func (s *Snapshot) Len() int {
	return len(s.addresses)
}

// Addresses returns the covered addresses.
func (s *Snapshot) Addresses() []types.Address {
	return s.addresses
}

// Address returns the covered address at index.
func (s *Snapshot) Address(index int) types.Address {
	return s.addresses[index]
}

// IndexOf returns the position of address in the snapshot, or -1 if it is not covered.
func (s *Snapshot) IndexOf(address types.Address) int {
	for i, a := range s.addresses {
		if a == address {
			return i
		}
	}
	return -1
}

// CapturedBefore indicates whether CaptureBefore has run.
func (s *Snapshot) CapturedBefore() bool {
	return s.before != nil
}

// CapturedAfter indicates whether CaptureAfter has run.
func (s *Snapshot) CapturedAfter() bool {
	return s.after != nil
}

// Before returns the pre-execution state of the account at index, or nil if it did not exist or was not captured.
func (s *Snapshot) Before(index int) *types.Account {
	if s.before == nil {
		return nil
	}
	return s.before[index]
}

// After returns the post-execution state of the account at index, or nil if it did not exist or was not captured.
func (s *Snapshot) After(index int) *types.Account {
	if s.after == nil {
		return nil
	}
	return s.after[index]
}

// Changed indicates whether the account at index differs between the two captured sides.
func (s *Snapshot) Changed(index int) bool {
	return !s.Before(index).Equal(s.After(index))
}

// ChangedIndexes returns the positions of every account which differs between the two captured sides.
func (s *Snapshot) ChangedIndexes() []int {
	changed := make([]int, 0)
	for i := range s.addresses {
		if s.Changed(i) {
			changed = append(changed, i)
		}
	}
	return changed
}
