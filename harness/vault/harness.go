package vault

import (
	"fmt"

	"github.com/crytic/svmfuzz/chain"
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing"
	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/snapshot"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
)

const (
	// userSlots is the number of distinct users an iteration draws from.
	userSlots = 3

	// maxAmount bounds the amounts drawn for deposits and withdrawals.
	maxAmount = 8192

	usersStore     = "users"
	positionsStore = "positions"
	vaultStore     = "vault"

	// depositAmountMetric is the histogram of drawn deposit amounts.
	depositAmountMetric = "deposit_amount"
)

func init() {
	fuzzing.MustRegisterFuzzTest(&fuzzing.FuzzTest{
		Name:        "vault",
		Description: "Deposits into and withdrawals from a shared lamport vault, checking each user's position",
		Setup:       Setup,
		NewStrategy: NewStrategy,
	})
}

// Setup deploys the vault program.
func Setup(c client.ExecutionClient) error {
	return c.Deploy(ProgramID, nil, types.ProgramFunc(Process))
}

// NewStrategy returns the iteration strategy of the vault fuzz test: a run of deposits and withdrawals by a few
// users, finishing with a full withdrawal by the first user.
func NewStrategy() (fuzzing.IterationStrategy, error) {
	return &fuzzing.DeclarativeSequence{
		Prologue: []transactions.Variant{transactions.NewVariant("deposit", buildDeposit)},
		Body: []transactions.WeightedVariant{
			{Variant: transactions.NewVariant("deposit", buildDeposit), Weight: 2},
			{Variant: transactions.NewVariant("withdraw", buildWithdraw), Weight: 3},
		},
		Epilogue: []transactions.Variant{transactions.NewVariant("withdraw_all", buildWithdrawAll)},
	}, nil
}

// participants are the accounts a vault instruction operates on.
type participants struct {
	user     *accounts.Identity
	position *accounts.Identity
	vault    *accounts.Identity
}

// resolve resolves the accounts of the user in slot handle, creating them as needed.
func (p *participants) resolve(env *transactions.Environment, handle accounts.Handle) error {
	var err error
	p.user, err = env.Resolve(usersStore, handle, accounts.CreationParams{})
	if err != nil {
		return err
	}
	programID := ProgramID
	p.position, err = env.Resolve(positionsStore, handle, accounts.CreationParams{
		Seeds:     PositionSeeds(p.user.Address),
		ProgramID: &programID,
		Lamports:  PositionReserve,
		Space:     PositionSpace,
		Owner:     &programID,
	})
	if err != nil {
		return err
	}
	p.vault, err = env.Resolve(vaultStore, 0, accounts.CreationParams{
		Seeds:     VaultSeeds(),
		ProgramID: &programID,
		Lamports:  VaultReserve,
		Space:     VaultStateSpace,
		Owner:     &programID,
	})
	return err
}

// vaultInstruction returns the program instruction with the given tag, taking its amount from *amount once the data
// hook runs.
func (p *participants) vaultInstruction(name string, tag uint8, amount *uint64, userWritable bool) *transactions.Instruction {
	return transactions.NewInstruction(name, ProgramID,
		func(env *transactions.Environment, ix *transactions.Instruction) error {
			return ix.SetPayload(Payload{Tag: tag, Amount: *amount})
		},
		func(env *transactions.Environment, ix *transactions.Instruction) error {
			if err := ix.AddAccount(p.user, true, userWritable); err != nil {
				return err
			}
			if err := ix.AddAccount(p.position, false, true); err != nil {
				return err
			}
			return ix.AddAccount(p.vault, false, true)
		})
}

// drawParticipants draws a user slot and resolves its accounts.
func drawParticipants(env *transactions.Environment) (*participants, error) {
	handle, err := env.DrawHandle(userSlots)
	if err != nil {
		return nil, err
	}
	p := &participants{}
	return p, p.resolve(env, handle)
}

// buildDeposit builds a transfer into the vault followed by the deposit instruction recording it.
func buildDeposit(env *transactions.Environment) (*transactions.Transaction, error) {
	p, err := drawParticipants(env)
	if err != nil {
		return nil, err
	}
	amount, err := env.Input.Uint64n(maxAmount)
	if err != nil {
		return nil, err
	}
	if err = env.AddToHistogram(depositAmountMetric, float64(amount)); err != nil {
		return nil, err
	}

	transfer := transactions.NewInstruction("transfer", types.SystemProgramAddress,
		func(env *transactions.Environment, ix *transactions.Instruction) error {
			ix.SetRawData(chain.NewTransferInstruction(p.user.Address, p.vault.Address, amount).Data)
			return nil
		},
		func(env *transactions.Environment, ix *transactions.Instruction) error {
			if err := ix.AddAccount(p.user, true, true); err != nil {
				return err
			}
			return ix.AddAccount(p.vault, false, true)
		})

	tx := transactions.NewTransaction("deposit", transfer, p.vaultInstruction("deposit", InstructionDeposit, &amount, false))
	tx.InvariantHook = func(env *transactions.Environment, tx *transactions.Transaction, snap *snapshot.Snapshot) error {
		return checkPosition(p, snap, func(before uint64) (uint64, bool) { return before + amount, true })
	}
	return tx, nil
}

// buildWithdraw builds a withdrawal of a drawn amount, which may exceed the user's position.
func buildWithdraw(env *transactions.Environment) (*transactions.Transaction, error) {
	p, err := drawParticipants(env)
	if err != nil {
		return nil, err
	}
	amount, err := env.Input.Uint64n(maxAmount)
	if err != nil {
		return nil, err
	}
	return p.withdrawal("withdraw", &amount), nil
}

// buildWithdrawAll builds a withdrawal of the first user's whole position.
func buildWithdrawAll(env *transactions.Environment) (*transactions.Transaction, error) {
	p := &participants{}
	if err := p.resolve(env, 0); err != nil {
		return nil, err
	}

	var amount uint64
	tx := p.withdrawal("withdraw_all", &amount)
	tx.ResolveAccountsHook = func(env *transactions.Environment, tx *transactions.Transaction) error {
		account, err := env.Client.GetAccount(p.position.Address)
		if err != nil {
			return err
		}
		var pos Position
		if len(account.Data) > 0 {
			if err = decodeAccount(account, &pos); err != nil {
				return err
			}
		}
		amount = pos.Amount
		return nil
	}
	return tx, nil
}

// withdrawal builds a withdraw transaction for p. Overdrawing the position is an expected rejection.
func (p *participants) withdrawal(name string, amount *uint64) *transactions.Transaction {
	tx := transactions.NewTransaction(name, p.vaultInstruction(name, InstructionWithdraw, amount, true))
	tx.ErrorHandler = transactions.AcceptErrors(fmt.Sprintf("Custom(%d)", ErrCodeInsufficientPosition))
	tx.InvariantHook = func(env *transactions.Environment, tx *transactions.Transaction, snap *snapshot.Snapshot) error {
		userIndex := snap.IndexOf(p.user.Address)
		before, after := snap.Before(userIndex), snap.After(userIndex)
		if after.Lamports != before.Lamports+*amount {
			return fuzzerrors.NewInvariantViolation("withdrawal-paid", "user %s received %d lamports, expected %d",
				p.user.Address, after.Lamports-before.Lamports, *amount)
		}
		return checkPosition(p, snap, func(before uint64) (uint64, bool) {
			return before - *amount, before >= *amount
		})
	}
	return tx
}

// checkPosition verifies that the user's position moved from its previous value to the one computed by expected, and
// that the vault still holds every recorded deposit.
func checkPosition(p *participants, snap *snapshot.Snapshot, expected func(before uint64) (uint64, bool)) error {
	positions, err := snapshot.View[Position](snap, snap.IndexOf(p.position.Address))
	if err != nil {
		return err
	}
	want, ok := expected(positions.Before.Amount)
	if !ok || positions.After.Amount != want {
		return fuzzerrors.NewInvariantViolation("position-accounting", "position of %s moved from %d to %d, expected %d",
			p.user.Address, positions.Before.Amount, positions.After.Amount, want)
	}

	vaultIndex := snap.IndexOf(p.vault.Address)
	state, err := snapshot.TypedAfter[State](snap, vaultIndex)
	if err != nil {
		return err
	}
	if held := snap.After(vaultIndex).Lamports; held != VaultReserve+state.Total {
		return fuzzerrors.NewInvariantViolation("vault-solvency", "vault holds %d lamports for %d recorded deposits",
			held, state.Total)
	}
	return nil
}
