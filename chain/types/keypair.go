package types

import (
	"crypto/ed25519"

	"github.com/hdevalence/ed25519consensus"
)

// KeypairSeedLength describes the length of the seed used to derive a Keypair.
const KeypairSeedLength = ed25519.SeedSize

// Keypair describes an ed25519 signing keypair whose public key doubles as an account Address.
type Keypair struct {
	// privateKey is the ed25519 private key used to sign transaction messages.
	privateKey ed25519.PrivateKey

	// address is the public key of the keypair.
	address Address
}

// NewKeypairFromSeed deterministically derives a Keypair from a 32-byte seed.
func NewKeypairFromSeed(seed [KeypairSeedLength]byte) *Keypair {
	privateKey := ed25519.NewKeyFromSeed(seed[:])
	keypair := &Keypair{privateKey: privateKey}
	copy(keypair.address[:], privateKey.Public().(ed25519.PublicKey))
	return keypair
}

// Address returns the public key of the keypair as an Address.
func (k *Keypair) Address() Address {
	return k.address
}

// Sign signs the provided message and returns the signature.
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.privateKey, message)
}

// VerifySignature verifies a signature over a message against the given address, using ZIP-215 validation rules so
// that every node agrees on signature validity.
func VerifySignature(address Address, message []byte, signature []byte) bool {
	return ed25519consensus.Verify(ed25519.PublicKey(address[:]), message, signature)
}
