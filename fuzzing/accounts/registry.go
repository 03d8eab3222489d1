package accounts

import "github.com/crytic/svmfuzz/chain/types"

// Registry holds the named stores of one worker. Fuzz tests typically keep one store per account role (payers,
// vaults, mints), so handles in different roles never alias.
type Registry struct {
	// entropy is shared by every store in the registry.
	entropy EntropySource

	// defaultMaterializer is used by stores created with Store.
	defaultMaterializer Materializer

	// stores maps store names to stores.
	stores map[string]*Store

	// order records store names in creation order.
	order []string
}

// NewRegistry creates an empty Registry whose stores draw keypairs from entropy and, unless created with StoreWith,
// materialize accounts with defaultMaterializer.
func NewRegistry(entropy EntropySource, defaultMaterializer Materializer) *Registry {
	return &Registry{
		entropy:             entropy,
		defaultMaterializer: defaultMaterializer,
		stores:              make(map[string]*Store),
		order:               make([]string, 0),
	}
}

// Store returns the store with the given name, creating it with the default materializer if it does not exist.
func (r *Registry) Store(name string) *Store {
	return r.StoreWith(name, r.defaultMaterializer)
}

// StoreWith returns the store with the given name, creating it with materializer if it does not exist. An existing
// store keeps the materializer it was created with.
func (r *Registry) StoreWith(name string, materializer Materializer) *Store {
	if store, ok := r.stores[name]; ok {
		return store
	}
	store := NewStore(name, materializer, r.entropy)
	r.stores[name] = store
	r.order = append(r.order, name)
	return store
}

// Names returns the names of the created stores in creation order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Signers returns the keypairs of every keyed identity resolved in the registry, in store creation order and then
// handle order.
func (r *Registry) Signers() []*types.Keypair {
	signers := make([]*types.Keypair, 0)
	for _, name := range r.order {
		store := r.stores[name]
		for _, handle := range store.order {
			if identity := store.identities[handle]; identity.CanSign() {
				signers = append(signers, identity.Keypair)
			}
		}
	}
	return signers
}

// Clear forgets every identity in every store. Stores themselves are kept so their materializers survive.
func (r *Registry) Clear() {
	for _, store := range r.stores {
		store.Clear()
	}
}
