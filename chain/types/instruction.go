package types

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// AccountMeta describes an account referenced by an Instruction, along with the permissions the instruction
// requests for it.
type AccountMeta struct {
	// Address is the address of the referenced account.
	Address Address

	// IsSigner indicates whether the transaction must carry a signature for this account.
	IsSigner bool

	// IsWritable indicates whether the instruction may modify this account.
	IsWritable bool
}

// NewAccountMeta creates a writable AccountMeta with the given signer flag.
func NewAccountMeta(address Address, isSigner bool) AccountMeta {
	return AccountMeta{Address: address, IsSigner: isSigner, IsWritable: true}
}

// NewReadonlyAccountMeta creates a read-only AccountMeta with the given signer flag.
func NewReadonlyAccountMeta(address Address, isSigner bool) AccountMeta {
	return AccountMeta{Address: address, IsSigner: isSigner, IsWritable: false}
}

// Instruction describes a single program invocation in the ledger's wire format.
type Instruction struct {
	// ProgramID is the address of the program to invoke.
	ProgramID Address

	// Accounts are the accounts passed to the program, in order.
	Accounts []AccountMeta

	// Data is the opaque instruction payload interpreted by the program.
	Data []byte
}

// message is the signed representation of a transaction.
type message struct {
	Nonce        uint64
	Instructions []Instruction
}

// MessageDigest serializes the provided instructions and nonce into the byte message that signers sign. The
// nonce distinguishes otherwise identical transactions.
func MessageDigest(instructions []Instruction, nonce uint64) ([]byte, error) {
	b, err := borsh.Serialize(message{Nonce: nonce, Instructions: instructions})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}
