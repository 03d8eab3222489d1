package accounts

import "github.com/crytic/svmfuzz/chain/types"

const (
	// VoteAccountLength is the size of a serialized vote state.
	VoteAccountLength = 3762

	// voteStateVersionCurrent tags the serialized vote state with its current version.
	voteStateVersionCurrent = 2

	// priorVotersCapacity is the number of entries in the prior voters ring buffer.
	priorVotersCapacity = 32
)

// VoteParams describes the vote account a VoteMaterializer creates.
type VoteParams struct {
	// Node is the validator identity the account votes for.
	Node types.Address

	// AuthorizedVoter may submit votes, starting at Epoch.
	AuthorizedVoter types.Address

	// AuthorizedWithdrawer may withdraw from the account.
	AuthorizedWithdrawer types.Address

	// Commission is the percentage of rewards kept by the validator.
	Commission uint8

	// Epoch is the epoch the authorized voter is registered for.
	Epoch uint64
}

// VoteMaterializer creates freshly initialized vote accounts owned by the vote program.
type VoteMaterializer struct{}

// Name returns VoteMaterializerName.
func (m *VoteMaterializer) Name() string {
	return VoteMaterializerName
}

// Materialize serializes an initialized vote state with no votes and a single authorized voter.
func (m *VoteMaterializer) Materialize(identity *Identity, params CreationParams) (*types.Account, error) {
	vote, err := flavorParams[VoteParams](VoteMaterializerName, params)
	if err != nil {
		return nil, err
	}

	account := types.NewAccount(MinimumBalance(VoteAccountLength), VoteAccountLength, types.VoteProgramAddress)
	data := layout(account.Data)
	data.u32(0, voteStateVersionCurrent)
	data.address(4, vote.Node)
	data.address(36, vote.AuthorizedWithdrawer)
	data.u8(68, vote.Commission)
	// votes: empty, root slot: none
	data.u64(69, 0)
	data.u8(77, 0)
	// authorized voters: a single entry keyed by epoch
	data.u64(78, 1)
	data.u64(86, vote.Epoch)
	data.address(94, vote.AuthorizedVoter)
	// prior voters: zeroed entries, cursor on the last slot, empty
	priorVotersEnd := 126 + priorVotersCapacity*(types.AddressLength+16)
	data.u64(priorVotersEnd, priorVotersCapacity-1)
	data.u8(priorVotersEnd+8, 1)
	// epoch credits: empty, last timestamp: zero
	data.u64(priorVotersEnd+9, 0)
	return account, nil
}
