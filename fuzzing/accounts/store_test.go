package accounts

import (
	"encoding/binary"
	"testing"

	"github.com/crytic/svmfuzz/chain"
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newTestStore creates a chain and a Store backed by the system materializer.
func newTestStore(t *testing.T) (*chain.TestChain, *Store) {
	testChain, err := chain.NewTestChain(nil)
	require.NoError(t, err)
	return testChain, NewStore("test", NewSystemMaterializer(0), rng.FromSeed(rng.Seed{}))
}

// TestResolveOrCreateIsStable checks that resolving the same handle twice yields the same identity and only
// materializes its account once.
func TestResolveOrCreateIsStable(t *testing.T) {
	testChain, store := newTestStore(t)

	for handle := Handle(0); handle < 8; handle++ {
		first, err := store.ResolveOrCreate(testChain, handle, CreationParams{})
		require.NoError(t, err)
		second, err := store.ResolveOrCreate(testChain, handle, CreationParams{Lamports: 1})
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, KeyedIdentity, first.Kind)
		assert.True(t, first.CanSign())

		account, err := testChain.GetAccount(first.Address)
		require.NoError(t, err)
		assert.Equal(t, DefaultLamports, account.Lamports)
		assert.Equal(t, types.SystemProgramAddress, account.Owner)
	}
	assert.Equal(t, 8, store.Len())
	assert.Equal(t, []Handle{0, 1, 2, 3, 4, 5, 6, 7}, store.Handles())
}

// TestLookupMissReturnsFreshIdentity checks that a read-only lookup of an unseen handle never fails and never binds
// the handle.
func TestLookupMissReturnsFreshIdentity(t *testing.T) {
	testChain, store := newTestStore(t)

	a := store.Lookup(3)
	b := store.Lookup(3)
	assert.NotEqual(t, a.Address, b.Address)
	assert.Equal(t, 0, store.Len())

	resolved, err := store.ResolveOrCreate(testChain, 3, CreationParams{})
	require.NoError(t, err)
	assert.Same(t, resolved, store.Lookup(3))

	store.Clear()
	assert.Equal(t, 0, store.Len())
	assert.NotEqual(t, resolved.Address, store.Lookup(3).Address)
}

// TestDerivedAndFixedIdentities checks program-derived and fixed identities.
func TestDerivedAndFixedIdentities(t *testing.T) {
	testChain, store := newTestStore(t)
	programID := types.NewKeypairFromSeed([32]byte{9}).Address()

	derived, err := store.ResolveOrCreate(testChain, 1, CreationParams{Seeds: [][]byte{[]byte("pool")}, ProgramID: &programID})
	require.NoError(t, err)
	assert.Equal(t, DerivedIdentity, derived.Kind)
	assert.False(t, derived.CanSign())
	expected, err := types.CreateProgramAddress(derived.SignerSeeds(), programID)
	require.NoError(t, err)
	assert.Equal(t, expected, derived.Address)

	fixed, err := store.ResolveOrCreate(testChain, 2, CreationParams{Address: &programID})
	require.NoError(t, err)
	assert.Equal(t, FixedIdentity, fixed.Kind)
	assert.Equal(t, programID, fixed.Address)
	account, err := testChain.GetAccount(programID)
	require.NoError(t, err)
	assert.True(t, account.IsDefault())

	// Seeds without a program are a configuration error
	_, err = store.ResolveOrCreate(testChain, 3, CreationParams{Seeds: [][]byte{{1}}})
	var fatal *fuzzerrors.ConfigurationFatalError
	assert.True(t, errors.As(err, &fatal))
}

// TestExistingStateIsNotOverwritten checks that materialization only writes to default accounts, using a mocked
// client.
func TestExistingStateIsNotOverwritten(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockClient := client.NewMockExecutionClient(ctrl)
	store := NewStore("mocked", NewSystemMaterializer(0), rng.FromSeed(rng.Seed{1}))

	mockClient.EXPECT().GetAccount(gomock.Any()).Return(&types.Account{Lamports: 5}, nil)
	identity, err := store.ResolveOrCreate(mockClient, 0, CreationParams{})
	require.NoError(t, err)
	assert.NotNil(t, identity)

	mockClient.EXPECT().GetAccount(gomock.Any()).Return(&types.Account{}, nil)
	mockClient.EXPECT().SetAccount(gomock.Any(), gomock.Any()).Return(nil)
	_, err = store.ResolveOrCreate(mockClient, 1, CreationParams{})
	require.NoError(t, err)
}

// TestIdentitiesAreReproducible checks that two stores drawing from the same seed generate the same identities.
func TestIdentitiesAreReproducible(t *testing.T) {
	testChain, err := chain.NewTestChain(nil)
	require.NoError(t, err)

	a := NewStore("a", nil, rng.FromSeed(rng.Seed{4}))
	b := NewStore("b", nil, rng.FromSeed(rng.Seed{4}))
	for handle := Handle(0); handle < 4; handle++ {
		x, err := a.ResolveOrCreate(testChain, handle, CreationParams{})
		require.NoError(t, err)
		y, err := b.ResolveOrCreate(testChain, handle, CreationParams{})
		require.NoError(t, err)
		assert.Equal(t, x.Address, y.Address)
	}
	// Without a materializer nothing is written
	assert.Equal(t, 1, testChain.AccountCount())
}

// TestRegistry checks named stores, signers and clearing.
func TestRegistry(t *testing.T) {
	testChain, err := chain.NewTestChain(nil)
	require.NoError(t, err)
	registry := NewRegistry(rng.FromSeed(rng.Seed{}), NewSystemMaterializer(0))

	payers := registry.Store("payers")
	assert.Same(t, payers, registry.Store("payers"))
	mints := registry.StoreWith("mints", &MintMaterializer{})
	assert.Equal(t, MintMaterializerName, mints.Materializer().Name())
	assert.Equal(t, []string{"payers", "mints"}, registry.Names())

	payer, err := payers.ResolveOrCreate(testChain, 0, CreationParams{})
	require.NoError(t, err)
	_, err = mints.ResolveOrCreate(testChain, 0, CreationParams{Flavor: MintParams{Decimals: 6, MintAuthority: payer.Address}})
	require.NoError(t, err)
	assert.Len(t, registry.Signers(), 2)

	registry.Clear()
	assert.Equal(t, 0, payers.Len())
	assert.Equal(t, 0, mints.Len())
	assert.Empty(t, registry.Signers())
}

// TestMaterializers checks the packed layouts written by each flavor.
func TestMaterializers(t *testing.T) {
	authority := types.NewKeypairFromSeed([32]byte{1}).Address()
	identity := &Identity{Kind: KeyedIdentity}

	// Mint
	mint, err := (&MintMaterializer{}).Materialize(identity, CreationParams{Flavor: MintParams{Decimals: 9, MintAuthority: authority}})
	require.NoError(t, err)
	require.Len(t, mint.Data, MintAccountLength)
	assert.Equal(t, types.TokenProgramAddress, mint.Owner)
	assert.Equal(t, MinimumBalance(MintAccountLength), mint.Lamports)
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(mint.Data[0:]))
	assert.Equal(t, authority[:], mint.Data[4:36])
	assert.EqualValues(t, 9, mint.Data[44])
	assert.EqualValues(t, 1, mint.Data[45])
	assert.EqualValues(t, 0, binary.LittleEndian.Uint32(mint.Data[46:]))

	// Native token account
	token, err := (&TokenMaterializer{}).Materialize(identity, CreationParams{Flavor: &TokenParams{Owner: authority, Amount: 100, IsNative: true}})
	require.NoError(t, err)
	require.Len(t, token.Data, TokenAccountLength)
	rent := MinimumBalance(TokenAccountLength)
	assert.Equal(t, rent+100, token.Lamports)
	assert.Equal(t, rent+100, binary.LittleEndian.Uint64(token.Data[64:]))
	assert.EqualValues(t, 1, token.Data[108])
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(token.Data[109:]))
	assert.Equal(t, rent, binary.LittleEndian.Uint64(token.Data[113:]))

	// Vote account
	vote, err := (&VoteMaterializer{}).Materialize(identity, CreationParams{Flavor: VoteParams{Node: authority, Commission: 10, Epoch: 3}})
	require.NoError(t, err)
	require.Len(t, vote.Data, VoteAccountLength)
	assert.Equal(t, types.VoteProgramAddress, vote.Owner)
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(vote.Data[0:]))
	assert.EqualValues(t, 10, vote.Data[68])
	assert.EqualValues(t, 3, binary.LittleEndian.Uint64(vote.Data[86:]))
	assert.EqualValues(t, 31, binary.LittleEndian.Uint64(vote.Data[1662:]))
	assert.EqualValues(t, 1, vote.Data[1670])

	// Initialized and delegated stake accounts
	stakeRent := MinimumBalance(StakeAccountLength)
	initialized, err := (&StakeMaterializer{}).Materialize(identity, CreationParams{Flavor: StakeParams{Staker: authority}})
	require.NoError(t, err)
	assert.Equal(t, stakeRent, initialized.Lamports)
	assert.EqualValues(t, 1, binary.LittleEndian.Uint32(initialized.Data[0:]))
	delegated, err := (&StakeMaterializer{}).Materialize(identity, CreationParams{Flavor: StakeParams{Delegated: true, Stake: 10}})
	require.NoError(t, err)
	assert.Equal(t, stakeRent+LamportsPerSol, delegated.Lamports)
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(delegated.Data[0:]))
	assert.EqualValues(t, ^uint64(0), binary.LittleEndian.Uint64(delegated.Data[172:]))

	// Mismatched parameters are rejected
	_, err = (&MintMaterializer{}).Materialize(identity, CreationParams{Flavor: TokenParams{}})
	assert.Error(t, err)
}

// TestMaterializerByName checks materializer selection.
func TestMaterializerByName(t *testing.T) {
	for _, name := range MaterializerNames() {
		m, err := MaterializerByName(name, 0)
		require.NoError(t, err)
		assert.Equal(t, name, m.Name())
	}
	m, err := MaterializerByName("", 7)
	require.NoError(t, err)
	account, err := m.Materialize(&Identity{}, CreationParams{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, account.Lamports)

	_, err = MaterializerByName("nft", 0)
	assert.Error(t, err)
}
