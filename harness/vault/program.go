// Package vault provides a small lamport vault program together with the fuzz test which exercises it. Users
// deposit lamports into a shared vault account and withdraw them again, with each user's share recorded in a
// position account derived from their address.
package vault

import (
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// ProgramID is the address the vault program is deployed at.
var ProgramID = types.Address{0x0f, 0xa1, 0x17, 0x5a, 0xfe}

const (
	// VaultReserve is the balance a vault holds beyond the deposits it records.
	VaultReserve uint64 = 1_000_000

	// VaultStateSpace is the data length of the vault account.
	VaultStateSpace uint64 = 8

	// PositionSpace is the data length of a position account.
	PositionSpace uint64 = 40

	// PositionReserve is the balance a position account is created with.
	PositionReserve uint64 = 500_000
)

// Program error codes, reported as Custom(code).
const (
	ErrCodeInvalidVault uint32 = iota + 1
	ErrCodeInvalidPosition
	ErrCodePositionOwnerMismatch
	ErrCodeInsufficientPosition
	ErrCodeDepositNotReceived
)

// Instruction tags.
const (
	InstructionDeposit uint8 = iota
	InstructionWithdraw
)

// Payload is the borsh encoded instruction data.
type Payload struct {
	Tag    uint8
	Amount uint64
}

// State is the data of the vault account.
type State struct {
	Total uint64
}

// Position is the data of a user's position account.
type Position struct {
	Owner  types.Address
	Amount uint64
}

var (
	vaultSeed    = []byte("vault")
	positionSeed = []byte("position")
)

// VaultAddress returns the derived address of the vault account.
func VaultAddress() (types.Address, error) {
	address, _, err := types.FindProgramAddress([][]byte{vaultSeed}, ProgramID)
	return address, err
}

// PositionAddress returns the derived address of user's position account.
func PositionAddress(user types.Address) (types.Address, error) {
	address, _, err := types.FindProgramAddress(PositionSeeds(user), ProgramID)
	return address, err
}

// PositionSeeds returns the derivation seeds of user's position account, without the bump.
func PositionSeeds(user types.Address) [][]byte {
	return [][]byte{positionSeed, user[:]}
}

// VaultSeeds returns the derivation seeds of the vault account, without the bump.
func VaultSeeds() [][]byte {
	return [][]byte{vaultSeed}
}

// Process executes one vault instruction. Both instructions take the accounts [user, position, vault].
func Process(ictx *types.InvocationContext, data []byte) error {
	var payload Payload
	if err := borsh.Deserialize(&payload, data); err != nil {
		return types.ErrInvalidInstructionData
	}

	accounts := ictx.Accounts()
	if len(accounts) < 3 {
		return types.ErrNotEnoughAccountKeys
	}
	user, position, vault := accounts[0], accounts[1], accounts[2]
	if !user.IsSigner {
		return types.ErrMissingRequiredSignature
	}

	expectedVault, err := VaultAddress()
	if err != nil {
		return err
	}
	if vault.Address != expectedVault || vault.Account.Owner != ictx.ProgramID() {
		ictx.Log("Vault: unexpected vault account %s", vault.Address)
		return types.NewProgramError(ErrCodeInvalidVault)
	}
	expectedPosition, err := PositionAddress(user.Address)
	if err != nil {
		return err
	}
	if position.Address != expectedPosition || position.Account.Owner != ictx.ProgramID() {
		ictx.Log("Vault: unexpected position account %s", position.Address)
		return types.NewProgramError(ErrCodeInvalidPosition)
	}

	var state State
	if err = decodeAccount(vault.Account, &state); err != nil {
		return err
	}
	var pos Position
	if err = decodeAccount(position.Account, &pos); err != nil {
		return err
	}
	if pos.Owner.IsZero() {
		pos.Owner = user.Address
	} else if pos.Owner != user.Address {
		return types.NewProgramError(ErrCodePositionOwnerMismatch)
	}

	switch payload.Tag {
	case InstructionDeposit:
		err = deposit(ictx, vault, &state, &pos, payload.Amount)
	case InstructionWithdraw:
		err = withdraw(ictx, user, vault, &state, &pos, payload.Amount)
	default:
		return types.ErrInvalidInstructionData
	}
	if err != nil {
		return err
	}

	if err = encodeAccount(vault.Account, &state); err != nil {
		return err
	}
	return encodeAccount(position.Account, &pos)
}

// deposit records amount against pos. The lamports must already have been moved into the vault earlier in the
// transaction.
func deposit(ictx *types.InvocationContext, vault *types.AccountInfo, state *State, pos *Position, amount uint64) error {
	if vault.Account.Lamports < VaultReserve+state.Total+amount {
		ictx.Log("Deposit: vault holds %d lamports, expected at least %d", vault.Account.Lamports, VaultReserve+state.Total+amount)
		return types.NewProgramError(ErrCodeDepositNotReceived)
	}
	state.Total += amount
	pos.Amount += amount
	ictx.Log("Deposit: %d lamports, position now %d", amount, pos.Amount)
	return nil
}

// withdraw pays amount out of the vault to user.
func withdraw(ictx *types.InvocationContext, user *types.AccountInfo, vault *types.AccountInfo, state *State, pos *Position, amount uint64) error {
	if pos.Amount < amount {
		ictx.Log("Withdraw: position holds %d lamports, requested %d", pos.Amount, amount)
		return types.NewProgramError(ErrCodeInsufficientPosition)
	}
	vault.Account.Lamports -= amount
	user.Account.Lamports += amount
	state.Total -= amount

	// Fee-free withdrawals of the promotional amount skip the position update.
	if amount != promotionalAmount {
		pos.Amount -= amount
	}
	ictx.Log("Withdraw: %d lamports, position now %d", amount, pos.Amount)
	return nil
}

// promotionalAmount triggers the accounting bug in withdraw.
const promotionalAmount = 0x1337

// decodeAccount decodes the account data into v.
func decodeAccount(account *types.Account, v any) error {
	if err := borsh.Deserialize(v, account.Data); err != nil {
		return errors.Wrap(types.ErrInvalidArgument, err.Error())
	}
	return nil
}

// encodeAccount writes v into the account data, which must already be large enough.
func encodeAccount(account *types.Account, v any) error {
	data, err := borsh.Serialize(v)
	if err != nil {
		return err
	}
	if len(data) > len(account.Data) {
		return types.ErrInvalidArgument
	}
	copy(account.Data, data)
	return nil
}
