package accounts

import (
	"fmt"

	"github.com/crytic/svmfuzz/chain/types"
)

// Handle is an opaque slot number naming an account within a single iteration. Handles are only meaningful inside
// the Store they were resolved in.
type Handle uint8

// IdentityKind describes how an Identity's address was obtained.
type IdentityKind uint8

const (
	// KeyedIdentity describes an address backed by a freshly generated signing keypair.
	KeyedIdentity IdentityKind = iota
	// DerivedIdentity describes a program-derived address, which has no private key.
	DerivedIdentity
	// FixedIdentity describes a caller-provided address, such as a program address.
	FixedIdentity
)

// String returns a human-readable name for the kind.
func (k IdentityKind) String() string {
	switch k {
	case KeyedIdentity:
		return "keyed"
	case DerivedIdentity:
		return "derived"
	case FixedIdentity:
		return "fixed"
	default:
		return fmt.Sprintf("IdentityKind(%d)", uint8(k))
	}
}

// Identity describes a concrete account reference bound to a Handle.
type Identity struct {
	// Kind describes how Address was obtained.
	Kind IdentityKind

	// Address is the account address.
	Address types.Address

	// Keypair is the signing keypair for keyed identities, nil otherwise.
	Keypair *types.Keypair

	// Seeds are the derivation seeds of a derived identity, excluding the bump.
	Seeds [][]byte

	// Bump is the bump seed which moved a derived identity off the curve.
	Bump uint8

	// ProgramID is the program a derived identity was derived for.
	ProgramID types.Address
}

// CanSign indicates whether the identity holds a keypair and can therefore sign transactions.
func (i *Identity) CanSign() bool {
	return i.Keypair != nil
}

// SignerSeeds returns the derivation seeds followed by the bump, as a program would pass them to sign for a
// derived identity. Returns nil for other kinds.
func (i *Identity) SignerSeeds() [][]byte {
	if i.Kind != DerivedIdentity {
		return nil
	}
	seeds := make([][]byte, 0, len(i.Seeds)+1)
	seeds = append(seeds, i.Seeds...)
	return append(seeds, []byte{i.Bump})
}

// CreationParams describes how an identity is created and what backing account state is materialized for it. The
// zero value creates a keyed identity with the materializer's defaults.
type CreationParams struct {
	// Seeds, together with ProgramID, request a derived identity.
	Seeds [][]byte

	// ProgramID is the program a derived identity is derived for. A nil ProgramID with Seeds set is invalid.
	ProgramID *types.Address

	// Address requests a fixed identity at the given address. No account state is materialized for it.
	Address *types.Address

	// Lamports overrides the default balance of the system materializer when non-zero.
	Lamports uint64

	// Space is the data size allocated by the system materializer.
	Space uint64

	// Owner overrides the owner assigned by the system materializer when set.
	Owner *types.Address

	// Flavor carries flavor-specific parameters such as MintParams or TokenParams. When nil, the materializer uses
	// zero-valued parameters.
	Flavor any
}
