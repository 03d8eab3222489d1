package chain

import (
	"encoding/binary"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// SystemInstruction identifies an instruction processed by the system program. Values match the ledger's encoding,
// where the variant index is serialized as a little-endian u32 ahead of the arguments.
type SystemInstruction uint32

const (
	SystemInstructionCreateAccount SystemInstruction = 0
	SystemInstructionAssign        SystemInstruction = 1
	SystemInstructionTransfer      SystemInstruction = 2
	SystemInstructionAllocate      SystemInstruction = 8
)

// System program error codes, surfaced as custom program errors.
const (
	SystemErrorAccountAlreadyInUse        uint32 = 0
	SystemErrorResultWithNegativeLamports uint32 = 1
	SystemErrorInvalidAccountDataLength   uint32 = 3
)

// MaxPermittedDataLength is the largest data size an account may be allocated with.
const MaxPermittedDataLength = 10 * 1024 * 1024

type createAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    types.Address
}

type assignArgs struct {
	Owner types.Address
}

type transferArgs struct {
	Lamports uint64
}

type allocateArgs struct {
	Space uint64
}

// encodeSystemInstruction serializes a system instruction variant and its arguments.
func encodeSystemInstruction(variant SystemInstruction, args any) []byte {
	payload, err := borsh.Serialize(args)
	if err != nil {
		// The argument structs only contain fixed-size fields, so serialization cannot fail
		panic(errors.Wrap(err, "failed to serialize system instruction"))
	}
	data := binary.LittleEndian.AppendUint32(make([]byte, 0, 4+len(payload)), uint32(variant))
	return append(data, payload...)
}

// NewCreateAccountInstruction creates an instruction which funds a new account from payer, allocates space bytes of
// data for it and assigns it to owner. Both payer and newAccount must sign.
func NewCreateAccountInstruction(payer types.Address, newAccount types.Address, lamports uint64, space uint64, owner types.Address) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramAddress,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(payer, true),
			types.NewAccountMeta(newAccount, true),
		},
		Data: encodeSystemInstruction(SystemInstructionCreateAccount, createAccountArgs{Lamports: lamports, Space: space, Owner: owner}),
	}
}

// NewAssignInstruction creates an instruction which assigns a system-owned account to owner.
func NewAssignInstruction(account types.Address, owner types.Address) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramAddress,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(account, true)},
		Data:      encodeSystemInstruction(SystemInstructionAssign, assignArgs{Owner: owner}),
	}
}

// NewTransferInstruction creates an instruction which moves lamports between two accounts. The sender must sign.
func NewTransferInstruction(from types.Address, to types.Address, lamports uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramAddress,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(from, true),
			types.NewAccountMeta(to, false),
		},
		Data: encodeSystemInstruction(SystemInstructionTransfer, transferArgs{Lamports: lamports}),
	}
}

// NewAllocateInstruction creates an instruction which allocates space bytes of data for a system-owned account.
func NewAllocateInstruction(account types.Address, space uint64) types.Instruction {
	return types.Instruction{
		ProgramID: types.SystemProgramAddress,
		Accounts:  []types.AccountMeta{types.NewAccountMeta(account, true)},
		Data:      encodeSystemInstruction(SystemInstructionAllocate, allocateArgs{Space: space}),
	}
}

// decodeArgs decodes the arguments of a system instruction, requiring the payload to be exactly the size of the
// argument struct.
func decodeArgs[T any](payload []byte, size int) (T, error) {
	var args T
	if len(payload) != size {
		return args, types.ErrInvalidInstructionData
	}
	if err := borsh.Deserialize(&args, payload); err != nil {
		return args, types.ErrInvalidInstructionData
	}
	return args, nil
}

// systemProgram processes account creation, assignment, allocation and lamport transfers.
func systemProgram(ictx *types.InvocationContext, data []byte) error {
	if len(data) < 4 {
		return types.ErrInvalidInstructionData
	}
	payload := data[4:]

	switch SystemInstruction(binary.LittleEndian.Uint32(data)) {
	case SystemInstructionCreateAccount:
		args, err := decodeArgs[createAccountArgs](payload, 8+8+types.AddressLength)
		if err != nil {
			return err
		}
		return systemCreateAccount(ictx, args)
	case SystemInstructionAssign:
		args, err := decodeArgs[assignArgs](payload, types.AddressLength)
		if err != nil {
			return err
		}
		account, err := signerAccount(ictx, 0)
		if err != nil {
			return err
		}
		return systemAssign(ictx, account, args.Owner)
	case SystemInstructionTransfer:
		args, err := decodeArgs[transferArgs](payload, 8)
		if err != nil {
			return err
		}
		return systemTransfer(ictx, args.Lamports)
	case SystemInstructionAllocate:
		args, err := decodeArgs[allocateArgs](payload, 8)
		if err != nil {
			return err
		}
		account, err := signerAccount(ictx, 0)
		if err != nil {
			return err
		}
		return systemAllocate(ictx, account, args.Space)
	default:
		return types.ErrInvalidInstructionData
	}
}

// signerAccount returns the account at index, requiring it to have signed the transaction.
func signerAccount(ictx *types.InvocationContext, index int) (*types.AccountInfo, error) {
	account, err := ictx.Account(index)
	if err != nil {
		return nil, err
	}
	if !account.IsSigner {
		return nil, types.ErrMissingRequiredSignature
	}
	return account, nil
}

func systemCreateAccount(ictx *types.InvocationContext, args createAccountArgs) error {
	payer, err := signerAccount(ictx, 0)
	if err != nil {
		return err
	}
	newAccount, err := signerAccount(ictx, 1)
	if err != nil {
		return err
	}

	// An account with a balance or data is already in use
	if newAccount.Account.Lamports > 0 || len(newAccount.Account.Data) > 0 || newAccount.Account.Owner != types.SystemProgramAddress {
		ictx.Log("Create Account: account %s already in use", newAccount.Address)
		return types.NewProgramError(SystemErrorAccountAlreadyInUse)
	}
	if payer.Account.Lamports < args.Lamports {
		ictx.Log("Transfer: insufficient lamports %d, need %d", payer.Account.Lamports, args.Lamports)
		return types.NewProgramError(SystemErrorResultWithNegativeLamports)
	}

	if err = systemAllocate(ictx, newAccount, args.Space); err != nil {
		return err
	}
	if err = systemAssign(ictx, newAccount, args.Owner); err != nil {
		return err
	}
	payer.Account.Lamports -= args.Lamports
	newAccount.Account.Lamports += args.Lamports
	return nil
}

func systemAssign(ictx *types.InvocationContext, account *types.AccountInfo, owner types.Address) error {
	if account.Account.Owner == owner {
		return nil
	}
	account.Account.Owner = owner
	return nil
}

func systemAllocate(ictx *types.InvocationContext, account *types.AccountInfo, space uint64) error {
	if len(account.Account.Data) > 0 || account.Account.Owner != types.SystemProgramAddress {
		ictx.Log("Allocate: account %s already in use", account.Address)
		return types.NewProgramError(SystemErrorAccountAlreadyInUse)
	}
	if space > MaxPermittedDataLength {
		ictx.Log("Allocate: requested %d, max allowed %d", space, MaxPermittedDataLength)
		return types.NewProgramError(SystemErrorInvalidAccountDataLength)
	}
	account.Account.Data = make([]byte, space)
	return nil
}

func systemTransfer(ictx *types.InvocationContext, lamports uint64) error {
	from, err := signerAccount(ictx, 0)
	if err != nil {
		return err
	}
	to, err := ictx.Account(1)
	if err != nil {
		return err
	}

	if len(from.Account.Data) > 0 {
		ictx.Log("Transfer: `from` must not carry data")
		return types.ErrInvalidArgument
	}
	if from.Account.Lamports < lamports {
		ictx.Log("Transfer: insufficient lamports %d, need %d", from.Account.Lamports, lamports)
		return types.NewProgramError(SystemErrorResultWithNegativeLamports)
	}
	from.Account.Lamports -= lamports
	to.Account.Lamports += lamports
	return nil
}
