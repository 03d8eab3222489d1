package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// AddressLength describes the length of an Address in bytes.
const AddressLength = 32

// Address describes a 32-byte account address on the ledger. Keypair-backed addresses are ed25519 public keys,
// program-derived addresses are hashes which do not lie on the ed25519 curve.
type Address [AddressLength]byte

var (
	// SystemProgramAddress is the address of the built-in system program, which owns every freshly created account.
	SystemProgramAddress = Address{}

	// NativeLoaderAddress is the address of the loader which owns natively registered programs.
	NativeLoaderAddress = MustParseAddress("NativeLoader1111111111111111111111111111111")

	// TokenProgramAddress is the address of the token program which owns mint and token accounts.
	TokenProgramAddress = MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")

	// VoteProgramAddress is the address of the vote program which owns vote accounts.
	VoteProgramAddress = MustParseAddress("Vote111111111111111111111111111111111111111")

	// StakeProgramAddress is the address of the stake program which owns stake accounts.
	StakeProgramAddress = MustParseAddress("Stake11111111111111111111111111111111111111")
)

// ParseAddress decodes a base58 string into an Address. Returns an error if the string is not valid base58 or does
// not decode to exactly AddressLength bytes.
func ParseAddress(s string) (Address, error) {
	var address Address
	b, err := base58.Decode(s)
	if err != nil {
		return address, fmt.Errorf("invalid address %q: %v", s, err)
	}
	if len(b) != AddressLength {
		return address, fmt.Errorf("invalid address %q: decoded to %d bytes, expected %d", s, len(b), AddressLength)
	}
	copy(address[:], b)
	return address, nil
}

// MustParseAddress decodes a base58 string into an Address and panics if it is malformed. It is intended for
// well-known constant addresses.
func MustParseAddress(s string) Address {
	address, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return address
}

// String returns the base58 representation of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// IsZero indicates whether every byte of the address is zero.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as base58 strings.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for base58 encoded addresses.
func (a *Address) UnmarshalText(text []byte) error {
	address, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = address
	return nil
}
