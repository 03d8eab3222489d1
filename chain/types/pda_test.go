package types

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFindProgramAddress checks that derived addresses are deterministic, lie off the curve and can be recreated
// from the returned bump.
func TestFindProgramAddress(t *testing.T) {
	programID := NewKeypairFromSeed([32]byte{7}).Address()
	seeds := [][]byte{[]byte("vault"), {1, 2, 3}}

	address, bump, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	assert.False(t, IsOnCurve(address[:]))

	again, againBump, err := FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	assert.Equal(t, address, again)
	assert.Equal(t, bump, againBump)

	recreated, err := CreateProgramAddress(append(seeds, []byte{bump}), programID)
	require.NoError(t, err)
	assert.Equal(t, address, recreated)

	// A different program derives a different address from the same seeds
	other, _, err := FindProgramAddress(seeds, NativeLoaderAddress)
	require.NoError(t, err)
	assert.NotEqual(t, address, other)
}

// TestProgramAddressSeedLimits checks the seed count and seed length limits.
func TestProgramAddressSeedLimits(t *testing.T) {
	_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{1}, MaxSeedLength+1)}, SystemProgramAddress)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	tooMany := make([][]byte, MaxSeeds+1)
	_, err = CreateProgramAddress(tooMany, SystemProgramAddress)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)

	// The bump needs a free seed slot
	_, _, err = FindProgramAddress(make([][]byte, MaxSeeds), SystemProgramAddress)
	assert.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
}

// TestIsOnCurve checks that keypair addresses are on the curve.
func TestIsOnCurve(t *testing.T) {
	keypair := NewKeypairFromSeed([32]byte{1, 2, 3})
	address := keypair.Address()
	assert.True(t, IsOnCurve(address[:]))
}
