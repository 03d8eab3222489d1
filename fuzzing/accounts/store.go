package accounts

import (
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/pkg/errors"
)

// EntropySource describes the randomness used to generate keypairs. The worker's SeededRng satisfies it, which keeps
// generated identities reproducible from the iteration seed.
type EntropySource interface {
	// Fill fills buf with random bytes.
	Fill(buf []byte)
}

// Store maps handles to identities for a single iteration. Resolving a handle twice within the same Store always
// yields the same identity. A Store is owned by one worker and is cleared between iterations.
type Store struct {
	// name describes the store, used in error messages.
	name string

	// materializer builds the backing account state for newly created identities.
	materializer Materializer

	// entropy is used to generate keypairs.
	entropy EntropySource

	// identities maps handles to the identities resolved for them.
	identities map[Handle]*Identity

	// order records handles in the order they were first resolved.
	order []Handle
}

// NewStore creates an empty Store which materializes new accounts with materializer. A nil materializer never
// writes account state.
func NewStore(name string, materializer Materializer, entropy EntropySource) *Store {
	return &Store{
		name:         name,
		materializer: materializer,
		entropy:      entropy,
		identities:   make(map[Handle]*Identity),
		order:        make([]Handle, 0),
	}
}

// Name returns the name of the store.
func (s *Store) Name() string {
	return s.name
}

// Materializer returns the materializer used for new identities.
func (s *Store) Materializer() Materializer {
	return s.materializer
}

// ResolveOrCreate returns the identity bound to handle, creating it if the handle is unseen. Creation derives or
// generates the address described by params and, when the ledger holds a default account at that address, writes
// the state built by the store's materializer. Fixed identities are never materialized. Existing ledger state is
// never overwritten.
func (s *Store) ResolveOrCreate(c client.ExecutionClient, handle Handle, params CreationParams) (*Identity, error) {
	if identity, ok := s.identities[handle]; ok {
		return identity, nil
	}

	identity, err := s.newIdentity(params)
	if err != nil {
		return nil, err
	}

	if identity.Kind != FixedIdentity && s.materializer != nil {
		current, err := c.GetAccount(identity.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read account %s for store %s", identity.Address, s.name)
		}
		if current.IsDefault() {
			account, err := s.materializer.Materialize(identity, params)
			if err != nil {
				return nil, fuzzerrors.NewConfigurationFatal(errors.Wrapf(err, "store %s", s.name))
			}
			if account != nil {
				if err = c.SetAccount(identity.Address, account); err != nil {
					return nil, errors.Wrapf(err, "failed to materialize account %s for store %s", identity.Address, s.name)
				}
			}
		}
	}

	s.identities[handle] = identity
	s.order = append(s.order, handle)
	return identity, nil
}

// Lookup returns the identity bound to handle. If the handle was never resolved, a fresh keyed identity is returned
// instead, without being bound to the handle.
func (s *Store) Lookup(handle Handle) *Identity {
	if identity, ok := s.identities[handle]; ok {
		return identity
	}
	return s.newKeyedIdentity()
}

// Get returns the identity bound to handle, and whether one exists.
func (s *Store) Get(handle Handle) (*Identity, bool) {
	identity, ok := s.identities[handle]
	return identity, ok
}

// Handles returns the resolved handles in the order they were first resolved.
func (s *Store) Handles() []Handle {
	handles := make([]Handle, len(s.order))
	copy(handles, s.order)
	return handles
}

// Len returns the number of resolved handles.
func (s *Store) Len() int {
	return len(s.order)
}

// Clear forgets every resolved identity.
func (s *Store) Clear() {
	clear(s.identities)
	s.order = s.order[:0]
}

// newIdentity creates the identity described by params.
func (s *Store) newIdentity(params CreationParams) (*Identity, error) {
	switch {
	case params.Address != nil:
		return &Identity{Kind: FixedIdentity, Address: *params.Address}, nil
	case len(params.Seeds) > 0 || params.ProgramID != nil:
		if params.ProgramID == nil {
			return nil, fuzzerrors.NewConfigurationFatal(errors.Errorf("store %s: derived identity requires a program id", s.name))
		}
		address, bump, err := types.FindProgramAddress(params.Seeds, *params.ProgramID)
		if err != nil {
			return nil, fuzzerrors.NewConfigurationFatal(errors.Wrapf(err, "store %s: failed to derive address", s.name))
		}
		seeds := make([][]byte, len(params.Seeds))
		for i, seed := range params.Seeds {
			seeds[i] = append([]byte(nil), seed...)
		}
		return &Identity{
			Kind:      DerivedIdentity,
			Address:   address,
			Seeds:     seeds,
			Bump:      bump,
			ProgramID: *params.ProgramID,
		}, nil
	default:
		return s.newKeyedIdentity(), nil
	}
}

// newKeyedIdentity generates an identity backed by a new keypair.
func (s *Store) newKeyedIdentity() *Identity {
	var seed [types.KeypairSeedLength]byte
	s.entropy.Fill(seed[:])
	keypair := types.NewKeypairFromSeed(seed)
	return &Identity{
		Kind:    KeyedIdentity,
		Address: keypair.Address(),
		Keypair: keypair,
	}
}
