package fuzzing

import (
	"strconv"

	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/randomsource"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/crytic/svmfuzz/fuzzing/stats"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/crytic/svmfuzz/logging"
	"github.com/crytic/svmfuzz/utils"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
)

// FuzzerWorker describes a single thread worker utilizing its own ledger to run iterations of the fuzz test. Nothing
// it owns is shared with other workers.
type FuzzerWorker struct {
	// workerIndex describes the index of the worker spun up by the fuzzer.
	workerIndex int

	// fuzzer describes the Fuzzer instance which this worker belongs to.
	fuzzer *Fuzzer

	// client describes the ledger this worker executes transactions against.
	client client.ExecutionClient

	// randomProvider describes the worker's seeded generator. It produces each iteration's fuzz input and is
	// rotated between iterations.
	randomProvider *rng.SeededRng

	// accounts holds the identity stores of the current iteration.
	accounts *accounts.Registry

	// strategy produces the transactions of an iteration.
	strategy IterationStrategy

	// executor executes the transactions produced by strategy.
	executor *TransactionExecutor

	// iterationSeed is the seed the current, or last, iteration started from.
	iterationSeed rng.Seed

	// iterationsSinceSubmit counts iterations since statistics were last submitted to the reporter.
	iterationsSinceSubmit uint64

	// Events defines the event system for the FuzzerWorker.
	Events FuzzerWorkerEvents

	logger *logging.Logger
}

// newFuzzerWorker creates a new FuzzerWorker, assigning it the provided worker index and seed, and associating it to
// the Fuzzer instance supplied. The worker's ledger is created, set up and sealed.
// Returns the new FuzzerWorker, or an error if one occurred.
func newFuzzerWorker(fuzzer *Fuzzer, workerIndex int, seed rng.Seed) (*FuzzerWorker, error) {
	c, err := fuzzer.Hooks.NewClientFunc(fuzzer, workerIndex)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker ledger")
	}
	if fuzzer.test.Setup != nil {
		if err = fuzzer.test.Setup(c); err != nil {
			return nil, errors.Wrapf(err, "setup of fuzz test %s failed", fuzzer.test.Name)
		}
	}
	for _, setup := range fuzzer.Hooks.ClientSetupFuncs {
		if err = setup(fuzzer, c); err != nil {
			return nil, err
		}
	}
	if sealer, ok := c.(client.Sealer); ok {
		sealer.Seal()
	}

	strategy, err := fuzzer.test.NewStrategy()
	if err != nil {
		return nil, errors.Wrapf(err, "fuzz test %s failed to create its iteration strategy", fuzzer.test.Name)
	}
	if flows, ok := strategy.(*FlowSet); ok && flows.CallsPerIteration == 0 {
		flows.CallsPerIteration = fuzzer.config.Fuzzing.FlowCallsPerIteration
	}

	accountsConfig := fuzzer.config.Fuzzing.Accounts
	materializer, err := accounts.MaterializerByName(accountsConfig.DefaultMaterializer, accountsConfig.DefaultLamports)
	if err != nil {
		return nil, fuzzerrors.NewConfigurationFatal(err)
	}

	randomProvider := rng.FromSeed(seed)
	worker := &FuzzerWorker{
		workerIndex:    workerIndex,
		fuzzer:         fuzzer,
		client:         c,
		randomProvider: randomProvider,
		accounts:       accounts.NewRegistry(randomProvider, materializer),
		strategy:       strategy,
		logger:         fuzzer.logger.NewSubLogger("worker", strconv.Itoa(workerIndex)),
	}
	worker.executor = NewTransactionExecutor(worker, fuzzer.config.Fuzzing.Statistics.Regression)
	return worker, nil
}

// WorkerIndex returns the index of this FuzzerWorker in relation to its parent Fuzzer.
func (fw *FuzzerWorker) WorkerIndex() int {
	return fw.workerIndex
}

// Fuzzer returns the parent Fuzzer which spawned this FuzzerWorker.
func (fw *FuzzerWorker) Fuzzer() *Fuzzer {
	return fw.fuzzer
}

// Client returns the ledger this worker executes against.
func (fw *FuzzerWorker) Client() client.ExecutionClient {
	return fw.client
}

// Accounts returns the identity stores of the current iteration.
func (fw *FuzzerWorker) Accounts() *accounts.Registry {
	return fw.accounts
}

// IterationSeed returns the seed the current, or last, iteration started from.
func (fw *FuzzerWorker) IterationSeed() rng.Seed {
	return fw.iterationSeed
}

// workerMetrics returns the fuzzerWorkerMetrics for this specific worker.
func (fw *FuzzerWorker) workerMetrics() *fuzzerWorkerMetrics {
	return &fw.fuzzer.metrics.workerMetrics[fw.workerIndex]
}

// RecordFinding records a finding produced by this worker with the parent Fuzzer. It implements FindingRecorder.
func (fw *FuzzerWorker) RecordFinding(finding Finding) error {
	fw.workerMetrics().findingsRecorded.Add(1)
	return fw.fuzzer.recordFinding(fw, finding)
}

// runIteration runs one iteration over a fuzz input drawn from the worker's generator. Returns the result of
// RunInput, or an error if the input could not be drawn.
func (fw *FuzzerWorker) runIteration(ctx context.Context) error {
	seed := fw.randomProvider.CurrentSeed()
	maxInputLength := fw.fuzzer.config.Fuzzing.MaxInputLength
	inputLength, err := rng.DrawRange(fw.randomProvider, 1, maxInputLength+1)
	if err != nil {
		return fuzzerrors.NewConfigurationFatal(err)
	}
	return fw.runInput(ctx, seed, fw.randomProvider.Bytes(inputLength))
}

// RunInput runs one iteration over data, a fuzz input supplied by an external driver. The worker's generator still
// serves the iteration's other draws and is rotated afterwards. Exhausted input and layout mismatches are absorbed.
// Returns a *fuzzerrors.FindingError if a finding was recorded, or any other error which should stop the worker.
func (fw *FuzzerWorker) RunInput(ctx context.Context, data []byte) error {
	return fw.runInput(ctx, fw.randomProvider.CurrentSeed(), data)
}

// runInput runs the strategy over input, then clears the identity stores, resets the ledger and rotates the
// generator. seed is the generator seed the iteration is recorded under.
func (fw *FuzzerWorker) runInput(ctx context.Context, seed rng.Seed, input []byte) error {
	fw.iterationSeed = seed
	seedHex := seed.String()
	fw.executor.BeginIteration(seedHex)

	err := fw.Events.IterationStarting.Publish(FuzzerWorkerIterationStartingEvent{Worker: fw, SeedHex: seedHex, InputLength: len(input)})
	if err != nil {
		return err
	}

	env := &transactions.Environment{
		Context:  ctx,
		Input:    randomsource.NewRandomSource(input),
		Rng:      fw.randomProvider,
		Client:   fw.client,
		Accounts: fw.accounts,
		Metrics:  fw.executor,
	}
	executedBefore := fw.executor.TransactionsExecuted()
	err = fw.runStrategy(env)
	fw.workerMetrics().transactionsExecuted.Add(fw.executor.TransactionsExecuted() - executedBefore)

	// Nothing but the generator's seed chain and the statistics outlives the iteration
	fw.accounts.Clear()
	if resetErr := fw.client.ResetBetweenIterations(); resetErr != nil {
		return errors.Wrap(resetErr, "failed to reset the ledger between iterations")
	}
	fw.randomProvider.Rotate()

	fw.executor.Statistics().Iterations++
	fw.iterationsSinceSubmit++
	fw.workerMetrics().iterationsRun.Add(1)

	if fuzzerrors.IsExhaustedInput(err) || errors.Is(err, fuzzerrors.ErrDeserializationMismatch) {
		fw.logger.Trace("Iteration ", seedHex, " ended early: ", err.Error())
		err = nil
	}
	if publishErr := fw.Events.IterationFinished.Publish(FuzzerWorkerIterationFinishedEvent{Worker: fw, SeedHex: seedHex, Err: err}); publishErr != nil && err == nil {
		err = publishErr
	}
	return err
}

// runStrategy runs the strategy, recording a panic raised by a hook or flow as a finding.
func (fw *FuzzerWorker) runStrategy(env *transactions.Environment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fw.executor.recordPanic(r)
		}
	}()
	return fw.strategy.RunIteration(env, fw.executor)
}

// submitStatistics hands the statistics accumulated since the last submission to the reporter.
func (fw *FuzzerWorker) submitStatistics() {
	if fw.iterationsSinceSubmit == 0 || fw.fuzzer.reporter == nil {
		return
	}
	fw.fuzzer.reporter.Submit(fw.executor.TakeStatistics())
	fw.iterationsSinceSubmit = 0
}

// takeStatistics returns the statistics accumulated since the last submission.
func (fw *FuzzerWorker) takeStatistics() *stats.Statistics {
	fw.iterationsSinceSubmit = 0
	return fw.executor.TakeStatistics()
}

// run runs iterations until ctx is cancelled, the campaign's iteration limit is reached, or a finding stops the
// campaign. Statistics are submitted every StatsFlushInterval iterations and when the worker exits.
// Returns an error if the worker must stop for any other reason.
func (fw *FuzzerWorker) run(ctx context.Context) error {
	defer fw.submitStatistics()

	flushInterval := fw.fuzzer.config.Fuzzing.StatsFlushInterval
	for !utils.CheckContextDone(ctx) {
		if !fw.fuzzer.reserveIteration() {
			fw.fuzzer.Stop()
			break
		}

		err := fw.runIteration(ctx)
		if fw.iterationsSinceSubmit >= flushInterval {
			fw.submitStatistics()
		}
		if err == nil {
			continue
		}

		var findingErr *fuzzerrors.FindingError
		switch {
		case errors.As(err, &findingErr):
			if fw.fuzzer.config.Fuzzing.StopOnFinding {
				fw.logger.Info("Stopping after finding ", findingErr.Key)
				fw.fuzzer.Stop()
				return nil
			}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		default:
			return errors.Wrapf(err, "worker %d stopped", fw.workerIndex)
		}
	}
	return nil
}
