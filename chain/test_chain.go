package chain

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/crytic/svmfuzz/chain/config"
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/logging"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// baseInstructionCost is the compute cost charged for every instruction, before per-byte data costs.
const baseInstructionCost = 150

// TestChain represents an in-process ledger used for fuzzing. It keeps every account in memory, executes natively
// registered programs, and can be reset to a sealed genesis state between fuzzing iterations.
type TestChain struct {
	// accounts maps addresses to their committed account state. Addresses absent from the map hold default accounts.
	accounts map[types.Address]*types.Account

	// programs maps program addresses to the native programs executed when an instruction targets them.
	programs map[types.Address]types.Program

	// genesisAccounts is the account state captured by Seal, restored by ResetBetweenIterations.
	genesisAccounts map[types.Address]*types.Account

	// nonce is incremented for every submitted transaction and is included in the signed message.
	nonce uint64

	// config describes the configuration used by this TestChain.
	config *config.TestChainConfig

	// Events defines the event system for the TestChain.
	Events TestChainEvents

	// logger describes the chain sub-logger.
	logger *logging.Logger
}

// NewTestChain creates a TestChain with the system program deployed. If a nil config is provided, a default one is
// used.
func NewTestChain(testChainConfig *config.TestChainConfig) (*TestChain, error) {
	if testChainConfig == nil {
		testChainConfig = config.DefaultTestChainConfig()
	}
	if err := testChainConfig.Validate(); err != nil {
		return nil, err
	}

	chain := &TestChain{
		accounts: make(map[types.Address]*types.Account),
		programs: make(map[types.Address]types.Program),
		config:   testChainConfig,
		logger:   logging.GlobalLogger.NewSubLogger(logging.SERVICE_KEY, logging.CHAIN_SERVICE),
	}

	// The system program is present on every chain
	loader := types.NativeLoaderAddress
	if err := chain.Deploy(types.SystemProgramAddress, &loader, types.ProgramFunc(systemProgram)); err != nil {
		return nil, err
	}
	return chain, nil
}

// Config returns the configuration used by this TestChain.
func (t *TestChain) Config() *config.TestChainConfig {
	return t.config
}

// Deploy registers a native program at the given address and creates its executable program account, owned by
// loader or the configured default loader when loader is nil. Programs must be deployed before the chain is sealed.
func (t *TestChain) Deploy(programID types.Address, loader *types.Address, program types.Program) error {
	if t.genesisAccounts != nil {
		return errors.Errorf("cannot deploy program %s after the chain has been sealed", programID)
	}
	if program == nil {
		return errors.Errorf("cannot deploy a nil program at %s", programID)
	}
	if _, exists := t.programs[programID]; exists {
		return errors.Errorf("a program is already deployed at %s", programID)
	}

	owner := t.config.DefaultLoader
	if loader != nil {
		owner = *loader
	}
	t.programs[programID] = program
	t.accounts[programID] = &types.Account{Lamports: 1, Owner: owner, Executable: true}

	return t.Events.ProgramDeployed.Publish(ProgramDeployedEvent{Chain: t, ProgramID: programID, Loader: owner})
}

// IsProgram indicates whether a program is deployed at the given address.
func (t *TestChain) IsProgram(address types.Address) bool {
	_, ok := t.programs[address]
	return ok
}

// SetAccount overwrites the committed state of an account. A nil account resets the address to a default account.
// Program accounts cannot be overwritten.
func (t *TestChain) SetAccount(address types.Address, account *types.Account) error {
	if t.IsProgram(address) {
		return errors.Errorf("cannot overwrite program account %s", address)
	}
	if account == nil || account.Lamports == 0 {
		delete(t.accounts, address)
		return nil
	}
	t.accounts[address] = account.Clone()
	return nil
}

// GetAccount returns a copy of the committed state of an account, or a default account if none exists.
func (t *TestChain) GetAccount(address types.Address) (*types.Account, error) {
	if account, ok := t.accounts[address]; ok {
		return account.Clone(), nil
	}
	return &types.Account{Owner: types.SystemProgramAddress}, nil
}

// GetAccounts returns copies of the committed state of several accounts, positionally. Addresses with no account
// yield nil entries.
func (t *TestChain) GetAccounts(addresses []types.Address) ([]*types.Account, error) {
	results := make([]*types.Account, len(addresses))
	for i, address := range addresses {
		if account, ok := t.accounts[address]; ok {
			results[i] = account.Clone()
		}
	}
	return results, nil
}

// AccountCount returns the number of non-default accounts committed to the chain.
func (t *TestChain) AccountCount() int {
	return len(t.accounts)
}

// Seal captures the current account state as the genesis state restored by ResetBetweenIterations. Programs can no
// longer be deployed afterwards.
func (t *TestChain) Seal() {
	t.genesisAccounts = cloneAccounts(t.accounts)
	t.logger.Debug("Sealed chain genesis with ", len(t.genesisAccounts), " accounts")
}

// Sealed indicates whether Seal has been called.
func (t *TestChain) Sealed() bool {
	return t.genesisAccounts != nil
}

// ResetBetweenIterations restores the account state captured by Seal and resets the transaction nonce. Returns an
// error if the chain was never sealed.
func (t *TestChain) ResetBetweenIterations() error {
	if t.genesisAccounts == nil {
		return errors.New("cannot reset a chain which has not been sealed")
	}
	t.accounts = cloneAccounts(t.genesisAccounts)
	t.nonce = 0
	return t.Events.StateReset.Publish(StateResetEvent{Chain: t})
}

// SubmitTransaction executes a list of instructions atomically. Every account marked as a signer must be matched by
// a keypair in signers. If any instruction fails, no state is committed and a *types.TransactionError is returned
// alongside a result carrying the logs emitted up to the failure. Other errors indicate the chain itself failed.
func (t *TestChain) SubmitTransaction(ctx context.Context, instructions []types.Instruction, signers []*types.Keypair) (*types.TransactionResult, error) {
	t.nonce++
	result := &types.TransactionResult{Logs: make([]string, 0)}

	txErr, err := t.verifySignatures(instructions, signers)
	if err != nil {
		return nil, err
	}

	// Execute against a working copy so a failure leaves committed state untouched
	var working map[types.Address]*types.Account
	if txErr == nil {
		working, txErr = t.execute(ctx, instructions, result)
	}

	if txErr == nil {
		for address, account := range working {
			if account.Lamports == 0 && !t.IsProgram(address) {
				delete(t.accounts, address)
			} else {
				t.accounts[address] = account
			}
		}
	}

	if err = t.Events.TransactionExecuted.Publish(TransactionExecutedEvent{
		Chain:        t,
		Instructions: instructions,
		Result:       result,
		Err:          txErr,
	}); err != nil {
		return nil, err
	}

	if txErr != nil {
		t.logger.Trace("Transaction failed: ", txErr.Error())
		return result, txErr
	}
	return result, nil
}

// verifySignatures ensures every signer account in the transaction is matched by a keypair. When signature
// verification is enabled, each keypair signs the transaction message and its signature is verified.
func (t *TestChain) verifySignatures(instructions []types.Instruction, signers []*types.Keypair) (*types.TransactionError, error) {
	keypairs := make(map[types.Address]*types.Keypair, len(signers))
	for _, signer := range signers {
		if signer != nil {
			keypairs[signer.Address()] = signer
		}
	}

	var message []byte
	if t.config.VerifySignatures {
		var err error
		message, err = types.MessageDigest(instructions, t.nonce)
		if err != nil {
			return nil, err
		}
	}

	verified := make(map[types.Address]bool)
	for i, instruction := range instructions {
		for _, meta := range instruction.Accounts {
			if !meta.IsSigner || verified[meta.Address] {
				continue
			}
			keypair, ok := keypairs[meta.Address]
			if ok && t.config.VerifySignatures {
				ok = types.VerifySignature(meta.Address, message, keypair.Sign(message))
			}
			if !ok {
				return &types.TransactionError{
					InstructionIndex: i,
					Kind:             types.ErrorKindMissingSignature,
					Message:          meta.Address.String(),
				}, nil
			}
			verified[meta.Address] = true
		}
	}
	return nil, nil
}

// execute runs each instruction against a copy-on-write working set of accounts and returns the working set if
// every instruction succeeded.
func (t *TestChain) execute(ctx context.Context, instructions []types.Instruction, result *types.TransactionResult) (map[types.Address]*types.Account, *types.TransactionError) {
	working := make(map[types.Address]*types.Account)
	load := func(address types.Address) *types.Account {
		if account, ok := working[address]; ok {
			return account
		}
		account, _ := t.GetAccount(address)
		working[address] = account
		return account
	}

	computeRemaining := t.config.ComputeUnitLimit
	defer func() {
		result.ComputeUnitsConsumed = t.config.ComputeUnitLimit - computeRemaining
	}()

	for i, instruction := range instructions {
		if err := ctx.Err(); err != nil {
			return nil, &types.TransactionError{InstructionIndex: i, Kind: types.ErrorKindCancelled, Message: err.Error()}
		}

		program, ok := t.programs[instruction.ProgramID]
		if !ok {
			return nil, &types.TransactionError{InstructionIndex: i, Kind: types.ErrorKindProgramNotFound, Message: instruction.ProgramID.String()}
		}
		result.Logs = append(result.Logs, fmt.Sprintf("Program %s invoke [1]", instruction.ProgramID))

		// Duplicate metas share one working account, so writes through either are visible to both
		infos := make([]*types.AccountInfo, len(instruction.Accounts))
		preStates := make(map[types.Address]*types.Account)
		writable := make(map[types.Address]bool)
		for j, meta := range instruction.Accounts {
			account := load(meta.Address)
			if _, seen := preStates[meta.Address]; !seen {
				preStates[meta.Address] = account.Clone()
			}
			writable[meta.Address] = writable[meta.Address] || meta.IsWritable
			infos[j] = &types.AccountInfo{
				Address:    meta.Address,
				IsSigner:   meta.IsSigner,
				IsWritable: meta.IsWritable,
				Account:    account,
			}
		}

		ictx := types.NewInvocationContext(ctx, instruction.ProgramID, infos, &result.Logs, &computeRemaining)
		err := ictx.ConsumeCompute(baseInstructionCost + uint64(len(instruction.Data)))
		if err == nil {
			err = invokeProgram(program, ictx, instruction.Data)
		}
		if err != nil {
			txErr := classifyProgramError(i, err)
			result.Logs = append(result.Logs, fmt.Sprintf("Program %s failed: %s", instruction.ProgramID, txErr.Key()))
			return nil, txErr
		}

		if txErr := verifyInstructionEffects(i, instruction.ProgramID, preStates, working, writable); txErr != nil {
			result.Logs = append(result.Logs, fmt.Sprintf("Program %s failed: %s", instruction.ProgramID, txErr.Key()))
			return nil, txErr
		}
		result.Logs = append(result.Logs, fmt.Sprintf("Program %s success", instruction.ProgramID))
	}
	return working, nil
}

// programPanic wraps a value recovered from a panicking program.
type programPanic struct {
	value any
}

func (p *programPanic) Error() string {
	return fmt.Sprintf("program panicked: %v", p.value)
}

// invokeProgram calls the program, converting a panic into an error so it aborts the transaction rather than the
// fuzzer.
func invokeProgram(program types.Program, ictx *types.InvocationContext, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &programPanic{value: r}
		}
	}()
	return program.Process(ictx, data)
}

// classifyProgramError maps an error returned by a program to a TransactionError for the instruction at index.
func classifyProgramError(index int, err error) *types.TransactionError {
	var (
		panicked   *programPanic
		programErr *types.ProgramError
		txErr      *types.TransactionError
	)
	switch {
	case errors.As(err, &panicked):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindProgramFailedToComplete, Message: fmt.Sprintf("%v", panicked.value)}
	case errors.As(err, &programErr):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindCustom, Code: programErr.Code}
	case errors.As(err, &txErr):
		return &types.TransactionError{InstructionIndex: index, Kind: txErr.Kind, Code: txErr.Code, Message: txErr.Message}
	case errors.Is(err, types.ErrInvalidInstructionData):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindInvalidInstructionData}
	case errors.Is(err, types.ErrNotEnoughAccountKeys):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindNotEnoughAccountKeys}
	case errors.Is(err, types.ErrInsufficientFunds):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindInsufficientFunds}
	case errors.Is(err, types.ErrMissingRequiredSignature):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindMissingSignature}
	case errors.Is(err, types.ErrInvalidArgument):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindInvalidArgument}
	case errors.Is(err, types.ErrComputeBudgetExceeded):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindComputeBudgetExceeded}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindCancelled, Message: err.Error()}
	default:
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindProgramError, Message: err.Error()}
	}
}

// verifyInstructionEffects enforces the ledger's account rules on the changes made by a single instruction:
// read-only and executable accounts are unchanged, only the owning program may modify data, reassign ownership or
// debit lamports, and the total lamports across the instruction's accounts is conserved.
func verifyInstructionEffects(index int, programID types.Address, preStates map[types.Address]*types.Account, working map[types.Address]*types.Account, writable map[types.Address]bool) *types.TransactionError {
	preTotal, postTotal := new(uint256.Int), new(uint256.Int)

	// Iterate in a fixed order so the reported violation is deterministic
	addresses := make([]types.Address, 0, len(preStates))
	for address := range preStates {
		addresses = append(addresses, address)
	}
	slices.SortFunc(addresses, func(a, b types.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	for _, address := range addresses {
		pre, post := preStates[address], working[address]
		preTotal.Add(preTotal, uint256.NewInt(pre.Lamports))
		postTotal.Add(postTotal, uint256.NewInt(post.Lamports))

		if pre.Equal(post) {
			continue
		}
		if !writable[address] || pre.Executable {
			return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindReadonlyModified, Message: address.String()}
		}
		ownedByProgram := pre.Owner == programID
		dataChanged := pre.Owner != post.Owner || !bytes.Equal(pre.Data, post.Data)
		if !ownedByProgram && (dataChanged || post.Lamports < pre.Lamports) {
			return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindExternalAccountModified, Message: address.String()}
		}
	}

	if !preTotal.Eq(postTotal) {
		return &types.TransactionError{InstructionIndex: index, Kind: types.ErrorKindUnbalancedInstruction}
	}
	return nil
}

// cloneAccounts deep copies an account map.
func cloneAccounts(accounts map[types.Address]*types.Account) map[types.Address]*types.Account {
	clone := make(map[types.Address]*types.Account, len(accounts))
	for address, account := range accounts {
		clone[address] = account.Clone()
	}
	return clone
}
