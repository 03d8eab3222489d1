package accounts

import (
	"encoding/binary"
	"math"
	"slices"
	"strings"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/pkg/errors"
)

// Materializer describes a capability which constructs the backing account state for a newly created identity.
// Each account flavor (plain system accounts, mints, token accounts, vote and stake accounts) is one implementation,
// selected by name through configuration.
type Materializer interface {
	// Name returns the name the materializer is selected by.
	Name() string

	// Materialize returns the account state to write for identity. A nil account means nothing is written.
	Materialize(identity *Identity, params CreationParams) (*types.Account, error)
}

const (
	// SystemMaterializerName selects the SystemMaterializer.
	SystemMaterializerName = "system"
	// MintMaterializerName selects the MintMaterializer.
	MintMaterializerName = "mint"
	// TokenMaterializerName selects the TokenMaterializer.
	TokenMaterializerName = "token"
	// VoteMaterializerName selects the VoteMaterializer.
	VoteMaterializerName = "vote"
	// StakeMaterializerName selects the StakeMaterializer.
	StakeMaterializerName = "stake"
)

// MaterializerNames returns the names accepted by MaterializerByName, sorted.
func MaterializerNames() []string {
	names := []string{SystemMaterializerName, MintMaterializerName, TokenMaterializerName, VoteMaterializerName, StakeMaterializerName}
	slices.Sort(names)
	return names
}

// MaterializerByName returns the materializer registered under name. An empty name selects the system
// materializer. defaultLamports sets the system materializer's balance, with zero meaning DefaultLamports.
func MaterializerByName(name string, defaultLamports uint64) (Materializer, error) {
	switch strings.ToLower(name) {
	case "", SystemMaterializerName:
		return NewSystemMaterializer(defaultLamports), nil
	case MintMaterializerName:
		return &MintMaterializer{}, nil
	case TokenMaterializerName:
		return &TokenMaterializer{}, nil
	case VoteMaterializerName:
		return &VoteMaterializer{}, nil
	case StakeMaterializerName:
		return &StakeMaterializer{}, nil
	default:
		return nil, errors.Errorf("unknown account materializer %q, expected one of %s", name, strings.Join(MaterializerNames(), ", "))
	}
}

// flavorParams extracts the flavor parameters of type T from params. A nil flavor yields the zero value.
func flavorParams[T any](materializer string, params CreationParams) (T, error) {
	var zero T
	switch flavor := params.Flavor.(type) {
	case nil:
		return zero, nil
	case T:
		return flavor, nil
	case *T:
		if flavor == nil {
			return zero, nil
		}
		return *flavor, nil
	default:
		return zero, errors.Errorf("%s materializer cannot use parameters of type %T", materializer, params.Flavor)
	}
}

// layout writes little-endian fields into a fixed-size account data buffer at explicit offsets.
type layout []byte

func (l layout) u8(offset int, v uint8) {
	l[offset] = v
}

func (l layout) u32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(l[offset:], v)
}

func (l layout) u64(offset int, v uint64) {
	binary.LittleEndian.PutUint64(l[offset:], v)
}

func (l layout) i64(offset int, v int64) {
	binary.LittleEndian.PutUint64(l[offset:], uint64(v))
}

func (l layout) f64(offset int, v float64) {
	binary.LittleEndian.PutUint64(l[offset:], math.Float64bits(v))
}

func (l layout) address(offset int, v types.Address) {
	copy(l[offset:offset+types.AddressLength], v[:])
}

// optionalAddress writes a COption<Address>: a u32 tag followed by the address, zeroed when absent.
func (l layout) optionalAddress(offset int, v *types.Address) {
	if v == nil {
		l.u32(offset, 0)
		return
	}
	l.u32(offset, 1)
	l.address(offset+4, *v)
}
