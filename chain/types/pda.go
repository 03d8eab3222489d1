package types

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"
)

const (
	// MaxSeeds describes the maximum number of seeds a program-derived address may be created from.
	MaxSeeds = 16

	// MaxSeedLength describes the maximum length of a single seed in bytes.
	MaxSeedLength = 32
)

// pdaMarker is appended to every program-derived address hash so derived addresses can never collide with the
// hash of an unrelated message.
var pdaMarker = []byte("ProgramDerivedAddress")

var (
	// ErrMaxSeedLengthExceeded is returned when too many seeds, or a seed that is too long, are provided.
	ErrMaxSeedLengthExceeded = errors.New("length of the seed is too long for address generation")

	// ErrInvalidSeeds is returned when the seeds hash to a point on the ed25519 curve.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")

	// ErrNoViableBump is returned when no bump seed yields an address off the curve.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// IsOnCurve indicates whether the given bytes decode to a point on the ed25519 curve. Keypair-backed addresses are
// always on the curve, while program-derived addresses never are.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress derives an address from the given seeds and program. Returns ErrInvalidSeeds if the result
// lies on the ed25519 curve, since such an address could have a private key.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	var address Address
	if len(seeds) > MaxSeeds {
		return address, ErrMaxSeedLengthExceeded
	}

	hasher := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return address, ErrMaxSeedLengthExceeded
		}
		hasher.Write(seed)
	}
	hasher.Write(programID[:])
	hasher.Write(pdaMarker)
	copy(address[:], hasher.Sum(nil))

	if IsOnCurve(address[:]) {
		return Address{}, ErrInvalidSeeds
	}
	return address, nil
}

// FindProgramAddress searches for the first bump seed, counting down from 255, which combined with the given seeds
// yields a valid program-derived address. Returns the address and the bump used.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	// The bump occupies one extra seed slot
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, ErrMaxSeedLengthExceeded
	}

	bumped := make([][]byte, len(seeds)+1)
	copy(bumped, seeds)
	for bump := 255; bump >= 0; bump-- {
		bumped[len(seeds)] = []byte{byte(bump)}
		address, err := CreateProgramAddress(bumped, programID)
		if err == nil {
			return address, uint8(bump), nil
		}
		if errors.Is(err, ErrMaxSeedLengthExceeded) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}
