package accounts

import (
	"math"

	"github.com/crytic/svmfuzz/chain/types"
)

const (
	// StakeAccountLength is the size of a serialized stake state.
	StakeAccountLength = 200

	stakeStateInitialized = 1
	stakeStateDelegated   = 2

	// defaultWarmupCooldownRate is the fraction of stake which may activate or deactivate per epoch.
	defaultWarmupCooldownRate = 0.25

	// minimumDelegation is the smallest stake a delegated account is funded with on top of its rent reserve.
	minimumDelegation = LamportsPerSol
)

// Lockup describes the restrictions on withdrawing from a stake account.
type Lockup struct {
	// UnixTimestamp is the time until which the stake is locked.
	UnixTimestamp int64

	// Epoch is the epoch until which the stake is locked.
	Epoch uint64

	// Custodian may bypass the lockup.
	Custodian types.Address
}

// StakeParams describes the stake account a StakeMaterializer creates.
type StakeParams struct {
	// Delegated requests a stake delegated to Voter. Otherwise the account is only initialized.
	Delegated bool

	// Staker may delegate and deactivate the stake.
	Staker types.Address

	// Withdrawer may withdraw from the account.
	Withdrawer types.Address

	// Lockup restricts withdrawals.
	Lockup Lockup

	// Voter is the vote account the stake is delegated to.
	Voter types.Address

	// Stake is the delegated amount.
	Stake uint64

	// ActivationEpoch is the epoch the delegation activated in.
	ActivationEpoch uint64

	// DeactivationEpoch is the epoch the delegation deactivates in. Nil means it never deactivates.
	DeactivationEpoch *uint64
}

// StakeMaterializer creates initialized or delegated stake accounts owned by the stake program.
type StakeMaterializer struct{}

// Name returns StakeMaterializerName.
func (m *StakeMaterializer) Name() string {
	return StakeMaterializerName
}

// Materialize serializes a stake state described by StakeParams. Initialized accounts hold exactly their rent
// reserve. Delegated accounts hold the larger of the stake and the rent reserve plus the minimum delegation.
func (m *StakeMaterializer) Materialize(identity *Identity, params CreationParams) (*types.Account, error) {
	stake, err := flavorParams[StakeParams](StakeMaterializerName, params)
	if err != nil {
		return nil, err
	}

	rent := MinimumBalance(StakeAccountLength)
	account := types.NewAccount(rent, StakeAccountLength, types.StakeProgramAddress)
	data := layout(account.Data)

	// Meta
	data.u32(0, stakeStateInitialized)
	data.u64(4, rent)
	data.address(12, stake.Staker)
	data.address(44, stake.Withdrawer)
	data.i64(76, stake.Lockup.UnixTimestamp)
	data.u64(84, stake.Lockup.Epoch)
	data.address(92, stake.Lockup.Custodian)
	if !stake.Delegated {
		return account, nil
	}

	deactivationEpoch := uint64(math.MaxUint64)
	if stake.DeactivationEpoch != nil {
		deactivationEpoch = *stake.DeactivationEpoch
	}
	data.u32(0, stakeStateDelegated)
	data.address(124, stake.Voter)
	data.u64(156, stake.Stake)
	data.u64(164, stake.ActivationEpoch)
	data.u64(172, deactivationEpoch)
	data.f64(180, defaultWarmupCooldownRate)
	// credits observed and flags stay zero

	account.Lamports = max(stake.Stake, saturatingAdd(rent, minimumDelegation))
	return account, nil
}
