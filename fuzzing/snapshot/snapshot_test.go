package snapshot

import (
	"encoding/binary"
	"testing"

	"github.com/crytic/svmfuzz/chain"
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// counter is decoded with borsh.
type counter struct {
	Value uint64
	Owner types.Address
}

// packedCounter carries its own layout.
type packedCounter struct {
	value uint32
}

func (p *packedCounter) Unpack(data []byte) error {
	if len(data) != 4 {
		return errors.Errorf("expected 4 bytes, got %d", len(data))
	}
	p.value = binary.LittleEndian.Uint32(data)
	return nil
}

// keypairAddress returns the address of the keypair derived from a single-byte seed.
func keypairAddress(b byte) types.Address {
	return types.NewKeypairFromSeed([32]byte{b}).Address()
}

// TestUntouchedAccountsAreIdentical executes an instruction which only mutates one account and checks that every
// other covered account is byte-identical across the snapshot.
func TestUntouchedAccountsAreIdentical(t *testing.T) {
	testChain, err := chain.NewTestChain(nil)
	require.NoError(t, err)

	programID := keypairAddress(100)
	require.NoError(t, testChain.Deploy(programID, nil, types.ProgramFunc(func(ictx *types.InvocationContext, data []byte) error {
		target, err := ictx.Account(0)
		if err != nil {
			return err
		}
		target.Account.Data[0]++
		return nil
	})))

	x, y, z := keypairAddress(1), keypairAddress(2), keypairAddress(3)
	require.NoError(t, testChain.SetAccount(x, &types.Account{Lamports: 10, Data: []byte{0, 0}, Owner: programID}))
	require.NoError(t, testChain.SetAccount(y, &types.Account{Lamports: 20, Data: []byte{7}, Owner: programID}))
	require.NoError(t, testChain.SetAccount(z, &types.Account{Lamports: 30}))
	missing := keypairAddress(4)

	snap := New([]types.Address{y, x, missing, z})
	require.NoError(t, snap.CaptureBefore(testChain))
	_, err = testChain.SubmitTransaction(context.Background(), []types.Instruction{{
		ProgramID: programID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(x, false),
			types.NewReadonlyAccountMeta(y, false),
			types.NewReadonlyAccountMeta(z, false),
		},
	}}, nil)
	require.NoError(t, err)
	require.NoError(t, snap.CaptureAfter(testChain))

	assert.Equal(t, []int{1}, snap.ChangedIndexes())
	assert.Equal(t, 1, snap.IndexOf(x))
	assert.Equal(t, -1, snap.IndexOf(keypairAddress(5)))
	for _, i := range []int{0, 2, 3} {
		assert.True(t, snap.Before(i).Equal(snap.After(i)))
	}
	assert.Nil(t, snap.Before(2))
	assert.EqualValues(t, 1, snap.After(1).Data[0])
}

// TestTypedViews checks borsh and custom decoding, missing accounts, and mismatches on either side.
func TestTypedViews(t *testing.T) {
	testChain, err := chain.NewTestChain(nil)
	require.NoError(t, err)

	owner := keypairAddress(9)
	data, err := borsh.Serialize(counter{Value: 42, Owner: owner})
	require.NoError(t, err)
	a, b, c := keypairAddress(1), keypairAddress(2), keypairAddress(3)
	require.NoError(t, testChain.SetAccount(a, &types.Account{Lamports: 1, Data: data}))
	require.NoError(t, testChain.SetAccount(b, &types.Account{Lamports: 1, Data: []byte{5, 0, 0, 0}}))

	snap := New([]types.Address{a, b, c})
	_, err = TypedBefore[counter](snap, 0)
	assert.Error(t, err)

	require.NoError(t, snap.CaptureBefore(testChain))
	require.NoError(t, testChain.SetAccount(b, &types.Account{Lamports: 1, Data: []byte{1}}))
	require.NoError(t, snap.CaptureAfter(testChain))

	view, err := View[counter](snap, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 42, view.Before.Value)
	assert.Equal(t, owner, view.After.Owner)

	// A missing account decodes to nil
	missing, err := View[counter](snap, 2)
	require.NoError(t, err)
	assert.Nil(t, missing.Before)
	assert.Nil(t, missing.After)

	// Custom layouts decode through Unpack and fail independently per side
	before, err := TypedBefore[packedCounter](snap, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 5, before.value)
	_, err = TypedAfter[packedCounter](snap, 1)
	var mismatch *fuzzerrors.DeserializationMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, fuzzerrors.SideAfter, mismatch.Side)
	assert.Equal(t, 1, mismatch.Index)
	assert.ErrorIs(t, err, fuzzerrors.ErrDeserializationMismatch)

	// Data too short for the borsh layout is a mismatch, never a panic
	_, err = TypedBefore[counter](snap, 1)
	assert.ErrorIs(t, err, fuzzerrors.ErrDeserializationMismatch)
}
