package vault

import (
	"testing"

	"github.com/crytic/svmfuzz/chain"
	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing"
	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/crytic/svmfuzz/fuzzing/stats"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

const userLamports = 1_000_000_000

// vaultFixture is a sealed chain with the vault deployed and a single funded user.
type vaultFixture struct {
	chain    *chain.TestChain
	user     *types.Keypair
	position types.Address
	vault    types.Address
}

func newVaultFixture(t *testing.T) *vaultFixture {
	testChain, err := chain.NewTestChain(nil)
	require.NoError(t, err)
	require.NoError(t, Setup(testChain))

	f := &vaultFixture{chain: testChain, user: types.NewKeypairFromSeed([types.KeypairSeedLength]byte{7})}
	f.vault, err = VaultAddress()
	require.NoError(t, err)
	f.position, err = PositionAddress(f.user.Address())
	require.NoError(t, err)

	require.NoError(t, testChain.SetAccount(f.user.Address(), types.NewAccount(userLamports, 0, types.SystemProgramAddress)))
	require.NoError(t, testChain.SetAccount(f.vault, types.NewAccount(VaultReserve, VaultStateSpace, ProgramID)))
	require.NoError(t, testChain.SetAccount(f.position, types.NewAccount(PositionReserve, PositionSpace, ProgramID)))
	testChain.Seal()
	return f
}

// instruction returns a vault instruction with the given tag and amount.
func (f *vaultFixture) instruction(t *testing.T, tag uint8, amount uint64) types.Instruction {
	data, err := borsh.Serialize(Payload{Tag: tag, Amount: amount})
	require.NoError(t, err)
	return types.Instruction{
		ProgramID: ProgramID,
		Accounts: []types.AccountMeta{
			types.NewAccountMeta(f.user.Address(), true),
			types.NewAccountMeta(f.position, false),
			types.NewAccountMeta(f.vault, false),
		},
		Data: data,
	}
}

func (f *vaultFixture) submit(instructions ...types.Instruction) error {
	_, err := f.chain.SubmitTransaction(context.Background(), instructions, []*types.Keypair{f.user})
	return err
}

func (f *vaultFixture) deposit(t *testing.T, amount uint64) error {
	return f.submit(chain.NewTransferInstruction(f.user.Address(), f.vault, amount), f.instruction(t, InstructionDeposit, amount))
}

func (f *vaultFixture) positionAmount(t *testing.T) uint64 {
	account, err := f.chain.GetAccount(f.position)
	require.NoError(t, err)
	var pos Position
	require.NoError(t, borsh.Deserialize(&pos, account.Data))
	return pos.Amount
}

func (f *vaultFixture) recordedTotal(t *testing.T) uint64 {
	account, err := f.chain.GetAccount(f.vault)
	require.NoError(t, err)
	var state State
	require.NoError(t, borsh.Deserialize(&state, account.Data))
	return state.Total
}

func (f *vaultFixture) lamports(t *testing.T, address types.Address) uint64 {
	account, err := f.chain.GetAccount(address)
	require.NoError(t, err)
	return account.Lamports
}

// requireCustomError asserts err is a custom program error with the given code.
func requireCustomError(t *testing.T, err error, code uint32) {
	var txErr *types.TransactionError
	require.True(t, errors.As(err, &txErr), "expected a transaction error, got %v", err)
	assert.Equal(t, types.ErrorKindCustom, txErr.Kind)
	assert.Equal(t, code, txErr.Code)
}

// TestDepositAndWithdraw moves lamports into the vault and back, checking the recorded amounts.
func TestDepositAndWithdraw(t *testing.T) {
	f := newVaultFixture(t)

	require.NoError(t, f.deposit(t, 1_000))
	assert.EqualValues(t, 1_000, f.positionAmount(t))
	assert.EqualValues(t, 1_000, f.recordedTotal(t))
	assert.EqualValues(t, VaultReserve+1_000, f.lamports(t, f.vault))
	assert.EqualValues(t, userLamports-1_000, f.lamports(t, f.user.Address()))

	require.NoError(t, f.submit(f.instruction(t, InstructionWithdraw, 400)))
	assert.EqualValues(t, 600, f.positionAmount(t))
	assert.EqualValues(t, 600, f.recordedTotal(t))
	assert.EqualValues(t, VaultReserve+600, f.lamports(t, f.vault))
	assert.EqualValues(t, userLamports-600, f.lamports(t, f.user.Address()))
}

// TestRejectedInstructions checks the program's error codes.
func TestRejectedInstructions(t *testing.T) {
	f := newVaultFixture(t)

	// Withdrawing more than the position holds
	requireCustomError(t, f.submit(f.instruction(t, InstructionWithdraw, 1)), ErrCodeInsufficientPosition)

	// Recording a deposit which was never transferred
	requireCustomError(t, f.submit(f.instruction(t, InstructionDeposit, 10)), ErrCodeDepositNotReceived)

	// A position which does not belong to the signer
	other := types.NewKeypairFromSeed([types.KeypairSeedLength]byte{8})
	require.NoError(t, f.chain.SetAccount(other.Address(), types.NewAccount(userLamports, 0, types.SystemProgramAddress)))
	ix := f.instruction(t, InstructionWithdraw, 0)
	ix.Accounts[0] = types.NewAccountMeta(other.Address(), true)
	_, err := f.chain.SubmitTransaction(context.Background(), []types.Instruction{ix}, []*types.Keypair{other})
	requireCustomError(t, err, ErrCodeInvalidPosition)

	// Nothing was committed
	assert.EqualValues(t, 0, f.positionAmount(t))
	assert.EqualValues(t, VaultReserve, f.lamports(t, f.vault))
}

// TestPromotionalWithdrawalKeepsPosition reproduces the accounting bug the fuzz test is meant to find.
func TestPromotionalWithdrawalKeepsPosition(t *testing.T) {
	f := newVaultFixture(t)

	require.NoError(t, f.deposit(t, 5_000))
	require.NoError(t, f.submit(f.instruction(t, InstructionWithdraw, promotionalAmount)))
	assert.EqualValues(t, 5_000, f.positionAmount(t))
	assert.EqualValues(t, 5_000-promotionalAmount, f.recordedTotal(t))
}

// TestVaultFuzzTest checks the registered fuzz test and runs a short campaign against it.
func TestVaultFuzzTest(t *testing.T) {
	test, err := fuzzing.GetFuzzTest("vault")
	require.NoError(t, err)
	assert.NotEmpty(t, test.Description)

	strategy, err := test.NewStrategy()
	require.NoError(t, err)
	assert.IsType(t, &fuzzing.DeclarativeSequence{}, strategy)

	projectConfig := config.GetDefaultProjectConfig()
	projectConfig.Fuzzing.Workers = 2
	projectConfig.Fuzzing.TestLimit = 40
	projectConfig.Fuzzing.Statistics.ShowTable = false

	fuzzer, err := fuzzing.NewFuzzer(*projectConfig, test)
	require.NoError(t, err)
	require.NoError(t, fuzzer.Start(context.Background()))
	assert.EqualValues(t, 40, fuzzer.Metrics().IterationsRun())

	// Every deposit built records its amount
	statistics := fuzzer.Statistics()
	require.Contains(t, statistics.Metrics, depositAmountMetric)
	deposits := statistics.Metrics[depositAmountMetric]
	assert.Equal(t, stats.HistogramMetric, deposits.Kind)
	assert.NotEmpty(t, deposits.Values)
	assert.GreaterOrEqual(t, uint64(len(deposits.Values)), statistics.Transactions["deposit"].Invoked)
	for _, v := range deposits.Values {
		assert.Less(t, v, float64(maxAmount))
	}
}
