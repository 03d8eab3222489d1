package types

import "bytes"

// Account describes the raw state of a single ledger account.
type Account struct {
	// Lamports is the balance held by the account.
	Lamports uint64 `json:"lamports"`

	// Data is the opaque data owned by the account's owner program.
	Data []byte `json:"data"`

	// Owner is the program permitted to modify the account's data and debit its lamports.
	Owner Address `json:"owner"`

	// Executable indicates whether the account holds a program.
	Executable bool `json:"executable"`

	// RentEpoch is the next epoch at which the account owes rent.
	RentEpoch uint64 `json:"rentEpoch"`
}

// NewAccount creates an Account with the given balance, a zeroed data buffer of the given size and an owner.
func NewAccount(lamports uint64, space uint64, owner Address) *Account {
	return &Account{
		Lamports: lamports,
		Data:     make([]byte, space),
		Owner:    owner,
	}
}

// Clone returns a deep copy of the account. A nil account clones to nil.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Data = bytes.Clone(a.Data)
	return &clone
}

// Equal indicates whether two accounts hold byte-identical state. Two nil accounts are equal.
func (a *Account) Equal(other *Account) bool {
	if a == nil || other == nil {
		return a == nil && other == nil
	}
	return a.Lamports == other.Lamports &&
		a.Owner == other.Owner &&
		a.Executable == other.Executable &&
		a.RentEpoch == other.RentEpoch &&
		bytes.Equal(a.Data, other.Data)
}

// IsDefault indicates whether the account is indistinguishable from one that was never created: no balance, no
// data, owned by the system program and not executable. A nil account is default.
func (a *Account) IsDefault() bool {
	if a == nil {
		return true
	}
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == SystemProgramAddress && !a.Executable
}
