package fuzzing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/crytic/svmfuzz/fuzzing/snapshot"
	"github.com/crytic/svmfuzz/fuzzing/stats"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/crytic/svmfuzz/utils/testutils"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNoopIterationLeavesNoState runs one iteration of a transaction that does nothing and checks that it produces
// no findings and that no identity outlives the iteration.
func TestNoopIterationLeavesNoState(t *testing.T) {
	var resolved *accounts.Identity
	test := singleTransactionTest(noopProgram, func(env *transactions.Environment) (*transactions.Transaction, error) {
		identity, err := env.Resolve("users", 0, accounts.CreationParams{})
		if err != nil {
			return nil, err
		}
		resolved = identity
		return emptyTransaction(env)
	})

	fctx := newFuzzerTestContext(t, testProjectConfig(1), test)
	statistics, err := fctx.fuzzer.Replay(backgroundContext(), rng.Seed{})
	require.NoError(t, err)

	assert.Empty(t, fctx.fuzzer.Findings())
	assert.EqualValues(t, 0, statistics.Findings)
	assert.EqualValues(t, 1, statistics.Iterations)
	assert.Equal(t, stats.TransactionStats{Invoked: 1, Successful: 1}, statistics.Transactions["call"])

	// The identity resolved during the iteration was forgotten and its account rolled back
	require.NotNil(t, resolved)
	worker := fctx.fuzzer.workers[0]
	store := worker.Accounts().Store("users")
	assert.Zero(t, store.Len())
	assert.NotEqual(t, resolved.Address, store.Lookup(0).Address)
	account, err := worker.Client().GetAccount(resolved.Address)
	require.NoError(t, err)
	assert.Zero(t, account.Lamports)
}

// TestInvariantViolationIsRecorded checks that an invariant which always fails is recorded once, under its key, with
// the seed of the iteration.
func TestInvariantViolationIsRecorded(t *testing.T) {
	test := singleTransactionTest(noopProgram, func(env *transactions.Environment) (*transactions.Transaction, error) {
		tx, err := emptyTransaction(env)
		if err != nil {
			return nil, err
		}
		tx.InvariantHook = func(env *transactions.Environment, tx *transactions.Transaction, snap *snapshot.Snapshot) error {
			return fuzzerrors.NewInvariantViolation("always", "the invariant never holds")
		}
		return tx, nil
	})

	fctx := newFuzzerTestContext(t, testProjectConfig(1), test)
	statistics, err := fctx.fuzzer.Replay(backgroundContext(), rng.Seed{})
	require.NoError(t, err)

	entry, ok := statistics.Buckets[stats.CategoryInvariants]["always"]
	require.True(t, ok)
	assert.EqualValues(t, 1, entry.Occurrences)
	assert.NotEmpty(t, entry.SeedHex)
	assert.Equal(t, rng.Seed{}.String(), entry.SeedHex)
	assert.Equal(t, stats.TransactionStats{Invoked: 1, Successful: 1, InvariantFailed: 1}, statistics.Transactions["call"])

	findings := fctx.fuzzer.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, stats.CategoryInvariants, findings[0].Category)
	assert.Equal(t, "always", findings[0].Key)
	assert.Equal(t, "call", findings[0].Transaction)
	assert.Equal(t, 1, fctx.eventCount("FindingRecorded"))
}

// TestCampaignRespectsTestLimit checks that several workers together run exactly the configured number of iterations.
func TestCampaignRespectsTestLimit(t *testing.T) {
	projectConfig := testProjectConfig(37)
	projectConfig.Fuzzing.Workers = 3
	projectConfig.Fuzzing.StatsFlushInterval = 5
	test := singleTransactionTest(noopProgram, emptyTransaction)

	fctx := newFuzzerTestContext(t, projectConfig, test)
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))

	assert.EqualValues(t, 37, fctx.fuzzer.Metrics().IterationsRun())
	assert.EqualValues(t, 37, fctx.fuzzer.Metrics().TransactionsExecuted())
	assert.EqualValues(t, 3, fctx.fuzzer.Metrics().WorkerStartupCount())
	assert.EqualValues(t, 37, fctx.fuzzer.Statistics().Iterations)
	assert.EqualValues(t, 37, fctx.fuzzer.Statistics().Transactions["call"].Successful)
	assert.Equal(t, 1, fctx.eventCount("FuzzerStarting"))
	assert.Equal(t, 1, fctx.eventCount("FuzzerStopping"))
	assert.Equal(t, 3, fctx.eventCount("WorkerCreated"))
}

// vaultTest returns a test whose body sends drawn bytes to a program that panics on large values.
func vaultTest() *FuzzTest {
	return programTest("vault", byteProgram(200), func() (IterationStrategy, error) {
		return &DeclarativeSequence{Body: []transactions.WeightedVariant{{Variant: byteVariant("withdraw")}}}, nil
	})
}

// TestStopOnFindingAndReplay checks that a campaign stops at its first finding and that replaying the recorded seed
// reproduces it.
func TestStopOnFindingAndReplay(t *testing.T) {
	projectConfig := testProjectConfig(500)
	projectConfig.Fuzzing.StopOnFinding = true

	fctx := newFuzzerTestContext(t, projectConfig, vaultTest())
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))

	findings := fctx.fuzzer.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, stats.CategoryPanics, findings[0].Category)
	assert.Equal(t, "vault drained", findings[0].Key)
	assert.Less(t, fctx.fuzzer.Metrics().IterationsRun(), uint64(500))

	seed, err := rng.ParseSeedHex(findings[0].SeedHex)
	require.NoError(t, err)
	replay := newFuzzerTestContext(t, testProjectConfig(1), vaultTest())
	statistics, err := replay.fuzzer.Replay(backgroundContext(), seed)
	require.NoError(t, err)
	require.Len(t, replay.fuzzer.Findings(), 1)
	assert.Equal(t, "vault drained", replay.fuzzer.Findings()[0].Key)
	assert.Equal(t, findings[0].SeedHex, replay.fuzzer.Findings()[0].SeedHex)
	assert.EqualValues(t, 1, statistics.Buckets[stats.CategoryPanics]["vault drained"].Occurrences)
}

// FuzzRunInput drives the fuzz test with inputs supplied by the native Go fuzzing engine and checks that each input
// runs the same iteration every time it is supplied. Every 9 bytes of input withdraw once, and a payload byte of at
// least 200 drains the vault.
func FuzzRunInput(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0, 7})
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0, 0, 0, 0, 0, 0, 250, 1, 2})

	fuzzer, err := NewFuzzer(*testProjectConfig(1), vaultTest())
	require.NoError(f, err)

	f.Fuzz(func(t *testing.T, data []byte) {
		var withdrawals, findings uint64
		for i := 8; i < len(data); i += 9 {
			withdrawals++
			if data[i] >= 200 {
				findings = 1
				break
			}
		}

		first, err := fuzzer.RunInput(backgroundContext(), data)
		require.NoError(t, err)
		second, err := fuzzer.RunInput(backgroundContext(), data)
		require.NoError(t, err)

		for _, statistics := range []*stats.Statistics{first, second} {
			assert.EqualValues(t, 1, statistics.Iterations)
			assert.Equal(t, withdrawals, statistics.Transactions["withdraw"].Invoked)
			assert.Equal(t, findings, statistics.Findings)
		}
		assert.Equal(t, first.Transactions, second.Transactions)
		assert.True(t, first.Buckets[stats.CategoryPanics].Equal(second.Buckets[stats.CategoryPanics]))
	})
}

// TestRunInputMatchesAcrossFuzzers checks that a crash input reproduces its finding, under the same seed, in a fuzzer
// which has never seen it.
func TestRunInputMatchesAcrossFuzzers(t *testing.T) {
	crash := []byte{0, 0, 0, 0, 0, 0, 0, 0, 201}

	var seeds []string
	for i := 0; i < 2; i++ {
		fctx := newFuzzerTestContext(t, testProjectConfig(1), vaultTest())
		statistics, err := fctx.fuzzer.RunInput(backgroundContext(), crash)
		require.NoError(t, err)
		assert.EqualValues(t, 1, statistics.Buckets[stats.CategoryPanics]["vault drained"].Occurrences)
		assert.Equal(t, 1, fctx.eventCount("FindingRecorded"))

		findings := fctx.fuzzer.Findings()
		require.Len(t, findings, 1)
		seeds = append(seeds, findings[0].SeedHex)
	}
	assert.Equal(t, seeds[0], seeds[1])
	assert.Equal(t, rng.DeriveWorkerSeed(rng.Seed{}, 0).String(), seeds[0])
}

// TestCustomMetricsReachCampaignStatistics records a histogram value from every transaction build and checks the
// aggregated campaign statistics hold one value per iteration.
func TestCustomMetricsReachCampaignStatistics(t *testing.T) {
	projectConfig := testProjectConfig(30)
	projectConfig.Fuzzing.Workers = 2
	projectConfig.Fuzzing.StatsFlushInterval = 4

	test := singleTransactionTest(noopProgram, func(env *transactions.Environment) (*transactions.Transaction, error) {
		if err := env.AddToHistogram("input_length", float64(env.Input.Len())); err != nil {
			return nil, err
		}
		if err := env.AddToAccumulator("builds", 1); err != nil {
			return nil, err
		}
		return emptyTransaction(env)
	})
	fctx := newFuzzerTestContext(t, projectConfig, test)
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))

	metrics := fctx.fuzzer.Statistics().Metrics
	require.Contains(t, metrics, "input_length")
	assert.Equal(t, stats.HistogramMetric, metrics["input_length"].Kind)
	assert.Len(t, metrics["input_length"].Values, 30)
	for _, v := range metrics["input_length"].Values {
		assert.GreaterOrEqual(t, v, 1.0)
		assert.LessOrEqual(t, v, 64.0)
	}
	require.Contains(t, metrics, "builds")
	assert.EqualValues(t, 30, metrics["builds"].Total)

	// A metric name keeps the kind it was first recorded with
	env := &transactions.Environment{Metrics: stats.NewStatistics()}
	require.NoError(t, env.AddToAccumulator("builds", 1))
	assert.Error(t, env.AddToHistogram("builds", 1))

	// Without a recorder, recording does nothing
	assert.NoError(t, (&transactions.Environment{}).AddToHistogram("builds", 1))
}

// TestCampaignsAreReproducible checks that two campaigns with the same master seed record the same statistics.
func TestCampaignsAreReproducible(t *testing.T) {
	run := func() *stats.Statistics {
		fctx := newFuzzerTestContext(t, testProjectConfig(50), vaultTest())
		require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
		return fctx.fuzzer.Statistics()
	}

	first, second := run(), run()
	assert.Equal(t, first.Transactions, second.Transactions)
	assert.EqualValues(t, first.Findings, second.Findings)
	assert.True(t, first.Buckets[stats.CategoryPanics].Equal(second.Buckets[stats.CategoryPanics]))
	assert.NotZero(t, first.Findings)
}

// TestErrorHandlerClassification checks that accepted failures are counted without findings, propagated failures
// are findings, and panics are findings even when accepted.
func TestErrorHandlerClassification(t *testing.T) {
	failing := func(code uint32) types.ProgramFunc {
		return func(*types.InvocationContext, []byte) error {
			return types.NewProgramError(code)
		}
	}
	withHandler := func(handler transactions.ErrorHandler) transactions.BuildFunc {
		return func(env *transactions.Environment) (*transactions.Transaction, error) {
			tx, err := emptyTransaction(env)
			if err != nil {
				return nil, err
			}
			tx.ErrorHandler = handler
			return tx, nil
		}
	}

	// Accepted custom errors are only counted
	fctx := newFuzzerTestContext(t, testProjectConfig(3), singleTransactionTest(failing(7), withHandler(transactions.AcceptErrors("Custom(7)"))))
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	assert.Empty(t, fctx.fuzzer.Findings())
	assert.EqualValues(t, 3, fctx.fuzzer.Statistics().Buckets[stats.CategoryCustomErrors]["Custom(7)"].Occurrences)
	assert.EqualValues(t, 3, fctx.fuzzer.Statistics().Transactions["call"].Failed)

	// Without a handler, every failure is a finding and the campaign continues
	fctx = newFuzzerTestContext(t, testProjectConfig(3), singleTransactionTest(failing(7), emptyTransaction))
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	assert.Len(t, fctx.fuzzer.Findings(), 3)
	assert.EqualValues(t, 3, fctx.fuzzer.Statistics().Findings)

	// A handler returning its own error attaches it to the finding
	reason := errors.New("unexpected code")
	fctx = newFuzzerTestContext(t, testProjectConfig(1), singleTransactionTest(failing(9), withHandler(func(env *transactions.Environment, tx *transactions.Transaction, txErr *types.TransactionError) error {
		return reason
	})))
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	findings := fctx.fuzzer.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, "Custom(9)", findings[0].Key)
	assert.ErrorIs(t, findings[0].Err, reason)

	// Panics are findings even if the handler would accept them
	panicking := func(*types.InvocationContext, []byte) error { panic("boom") }
	fctx = newFuzzerTestContext(t, testProjectConfig(2), singleTransactionTest(panicking, withHandler(transactions.AcceptErrors("boom"))))
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	assert.Len(t, fctx.fuzzer.Findings(), 2)
	assert.EqualValues(t, 2, fctx.fuzzer.Statistics().Transactions["call"].Panicked)
	assert.EqualValues(t, 2, fctx.fuzzer.Statistics().Buckets[stats.CategoryPanics]["boom"].Occurrences)
}

// TestDeserializationMismatchIsSkipped checks that an invariant which cannot decode an account abandons its check
// without a finding.
func TestDeserializationMismatchIsSkipped(t *testing.T) {
	test := singleTransactionTest(noopProgram, func(env *transactions.Environment) (*transactions.Transaction, error) {
		tx, err := emptyTransaction(env)
		if err != nil {
			return nil, err
		}
		tx.InvariantHook = func(env *transactions.Environment, tx *transactions.Transaction, snap *snapshot.Snapshot) error {
			return &fuzzerrors.DeserializationMismatchError{Side: fuzzerrors.SideAfter, TypeName: "Vault", Err: errors.New("short buffer")}
		}
		return tx, nil
	})

	fctx := newFuzzerTestContext(t, testProjectConfig(2), test)
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	assert.Empty(t, fctx.fuzzer.Findings())
	assert.EqualValues(t, 2, fctx.fuzzer.Statistics().Transactions["call"].Successful)
	assert.Zero(t, fctx.fuzzer.Statistics().Buckets[stats.CategoryInvariants].Total())
}

// TestHookPanicsAreFindings checks that a panic raised by a flow is recorded as a finding.
func TestHookPanicsAreFindings(t *testing.T) {
	test := programTest("flows", noopProgram, func() (IterationStrategy, error) {
		return &FlowSet{Flows: []Flow{{Name: "explode", Run: func(env *transactions.Environment, visitor transactions.Visitor) error {
			panic("flow exploded")
		}}}}, nil
	})

	fctx := newFuzzerTestContext(t, testProjectConfig(1), test)
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	findings := fctx.fuzzer.Findings()
	require.Len(t, findings, 1)
	assert.Equal(t, stats.CategoryPanics, findings[0].Category)
	assert.Equal(t, "flow exploded", findings[0].Key)
}

// TestConfigurationErrorsStopTheCampaign checks that configuration errors raised during an iteration fail the
// campaign.
func TestConfigurationErrorsStopTheCampaign(t *testing.T) {
	test := singleTransactionTest(noopProgram, func(env *transactions.Environment) (*transactions.Transaction, error) {
		return nil, fuzzerrors.NewConfigurationFatal(errors.New("no such store"))
	})

	fctx := newFuzzerTestContext(t, testProjectConfig(10), test)
	err := fctx.fuzzer.Start(backgroundContext())
	var fatal *fuzzerrors.ConfigurationFatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, 1, fctx.eventCount("FuzzerStopping"))
}

// TestFindingsArePersisted checks that findings and the statistics report are written to the output directory.
func TestFindingsArePersisted(t *testing.T) {
	outputDirectory := filepath.Join(t.TempDir(), "output")
	projectConfig := testProjectConfig(500)
	projectConfig.Fuzzing.StopOnFinding = true
	projectConfig.Fuzzing.OutputDirectory = outputDirectory
	projectConfig.Fuzzing.Statistics.JSONFile = "statistics.json"

	fctx := newFuzzerTestContext(t, projectConfig, vaultTest())
	require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
	require.Len(t, fctx.fuzzer.Findings(), 1)

	store, err := stats.OpenFindingStore(filepath.Join(outputDirectory, findingStoreFile))
	require.NoError(t, err)
	defer store.Close()
	records, err := store.Findings()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fctx.fuzzer.CampaignID(), records[0].CampaignID)
	assert.Equal(t, "vault drained", records[0].Key)
	assert.Equal(t, fctx.fuzzer.Findings()[0].SeedHex, records[0].SeedHex)

	report, err := os.ReadFile(filepath.Join(outputDirectory, "statistics.json"))
	require.NoError(t, err)
	assert.Contains(t, string(report), fctx.fuzzer.CampaignID())
	assert.Contains(t, string(report), "vault drained")
}

// TestFindingsWithoutOutputDirectory checks that without an output directory findings are kept in memory only and
// nothing is written to the working directory.
func TestFindingsWithoutOutputDirectory(t *testing.T) {
	directory := t.TempDir()
	testutils.ExecuteInDirectory(t, directory, func() {
		projectConfig := testProjectConfig(500)
		projectConfig.Fuzzing.StopOnFinding = true
		require.Empty(t, projectConfig.Fuzzing.OutputDirectory)

		fctx := newFuzzerTestContext(t, projectConfig, vaultTest())
		require.NoError(t, fctx.fuzzer.Start(backgroundContext()))
		require.Len(t, fctx.fuzzer.Findings(), 1)

		entries, err := os.ReadDir(directory)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

// TestFuzzTestRegistry checks registration and lookup of fuzz tests.
func TestFuzzTestRegistry(t *testing.T) {
	test := &FuzzTest{
		Name:        "registry-test",
		Setup:       func(c client.ExecutionClient) error { return nil },
		NewStrategy: func() (IterationStrategy, error) { return &FlowSet{}, nil },
	}
	require.NoError(t, RegisterFuzzTest(test))
	assert.Error(t, RegisterFuzzTest(test))
	assert.Error(t, RegisterFuzzTest(&FuzzTest{Name: "no-strategy"}))
	assert.Error(t, RegisterFuzzTest(&FuzzTest{NewStrategy: test.NewStrategy}))

	found, err := GetFuzzTest("registry-test")
	require.NoError(t, err)
	assert.Same(t, test, found)
	assert.Contains(t, FuzzTestNames(), "registry-test")

	_, err = GetFuzzTest("missing")
	assert.Error(t, err)
}

// TestNewFuzzerValidation checks that invalid configurations and tests are rejected.
func TestNewFuzzerValidation(t *testing.T) {
	projectConfig := testProjectConfig(1)
	projectConfig.Fuzzing.Workers = 0
	_, err := NewFuzzer(*projectConfig, vaultTest())
	assert.Error(t, err)

	_, err = NewFuzzer(*testProjectConfig(1), &FuzzTest{Name: "empty"})
	assert.Error(t, err)

	projectConfig = testProjectConfig(1)
	projectConfig.Fuzzing.MasterSeed = ""
	fuzzer, err := NewFuzzer(*projectConfig, vaultTest())
	require.NoError(t, err)
	assert.NotEqual(t, rng.Seed{}, fuzzer.MasterSeed())
}
