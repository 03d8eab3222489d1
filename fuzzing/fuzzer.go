package fuzzing

import (
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/crytic/svmfuzz/fuzzing/stats"
	"github.com/crytic/svmfuzz/logging"
	"github.com/crytic/svmfuzz/logging/colors"
	"github.com/crytic/svmfuzz/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/net/context"
	"golang.org/x/sync/errgroup"
)

// findingStoreFile is the name of the finding store within the output directory.
const findingStoreFile = "findings.db"

// Fuzzer represents a fuzzing campaign over a single FuzzTest.
type Fuzzer struct {
	// ctx describes the context for the fuzzing run, used to cancel running operations.
	ctx context.Context
	// ctxCancelFunc describes a function which can be used to cancel the fuzzing operations ctx tracks.
	ctxCancelFunc context.CancelFunc

	// config describes the project configuration which the fuzzing is targeting.
	config config.ProjectConfig
	// test describes the fuzz test being run.
	test *FuzzTest

	// campaignID uniquely identifies this campaign in reports and stored findings.
	campaignID string
	// masterSeed is the seed every worker seed is derived from.
	masterSeed rng.Seed

	// workers represents the work threads created by this Fuzzer when Start invokes a fuzz operation.
	workers []*FuzzerWorker
	// metrics represents the metrics for the fuzzing campaign.
	metrics *FuzzerMetrics
	// iterationsReserved counts iterations workers were allowed to start, to enforce the test limit exactly.
	iterationsReserved atomic.Uint64

	// reporter aggregates the statistics submitted by workers.
	reporter *stats.Reporter
	// findingStore persists findings, if an output directory is configured.
	findingStore *stats.FindingStore
	// statistics holds the aggregated statistics once a campaign or replay has finished.
	statistics *stats.Statistics

	// inputWorker runs the iterations supplied through RunInput, created on first use.
	inputWorker *FuzzerWorker
	// inputWorkerLock serializes calls to RunInput.
	inputWorkerLock sync.Mutex

	// findings holds every finding recorded in the campaign.
	findings []Finding
	// findingsLock provides thread-synchronization when recording findings.
	findingsLock sync.Mutex

	// Events describes the event system for the Fuzzer.
	Events FuzzerEvents

	// Hooks describes the replaceable functions used by the Fuzzer.
	Hooks FuzzerHooks

	// logger describes the Fuzzer's log object that can be used to log important events
	logger *logging.Logger
}

// NewFuzzer returns an instance of a new Fuzzer provided a project configuration and the fuzz test to run, or an
// error if one is encountered while initializing the code.
func NewFuzzer(config config.ProjectConfig, test *FuzzTest) (*Fuzzer, error) {
	// Validate our provided config
	err := config.Validate()
	if err != nil {
		return nil, err
	}
	if test == nil || test.NewStrategy == nil {
		return nil, errors.New("a fuzz test with an iteration strategy must be provided")
	}

	// Use the configured master seed, or draw one so the campaign can still be reproduced
	var masterSeed rng.Seed
	if config.Fuzzing.MasterSeed != "" {
		masterSeed, err = rng.ParseSeedHex(config.Fuzzing.MasterSeed)
		if err != nil {
			return nil, err
		}
	} else {
		entropy, err := rng.FromEntropy()
		if err != nil {
			return nil, err
		}
		masterSeed = entropy.CurrentSeed()
	}

	fuzzer := &Fuzzer{
		config:     config,
		test:       test,
		campaignID: uuid.New().String(),
		masterSeed: masterSeed,
		findings:   make([]Finding, 0),
		Hooks: FuzzerHooks{
			NewClientFunc:    defaultNewClientFunc,
			ClientSetupFuncs: make([]ClientSetupFunc, 0),
		},
		logger: logging.GlobalLogger.NewSubLogger(logging.SERVICE_KEY, logging.FUZZING_SERVICE),
	}
	return fuzzer, nil
}

// Config exposes the underlying project configuration provided to the Fuzzer.
func (f *Fuzzer) Config() config.ProjectConfig {
	return f.config
}

// Test returns the fuzz test run by the Fuzzer.
func (f *Fuzzer) Test() *FuzzTest {
	return f.test
}

// CampaignID returns the unique identifier of the campaign.
func (f *Fuzzer) CampaignID() string {
	return f.campaignID
}

// MasterSeed returns the seed every worker seed is derived from.
func (f *Fuzzer) MasterSeed() rng.Seed {
	return f.masterSeed
}

// Metrics returns the metrics of the current, or last, campaign.
func (f *Fuzzer) Metrics() *FuzzerMetrics {
	return f.metrics
}

// Statistics returns the aggregated statistics of the last campaign or replay, or nil if none has finished.
func (f *Fuzzer) Statistics() *stats.Statistics {
	return f.statistics
}

// Findings returns every finding recorded so far.
func (f *Fuzzer) Findings() []Finding {
	f.findingsLock.Lock()
	defer f.findingsLock.Unlock()
	findings := make([]Finding, len(f.findings))
	copy(findings, f.findings)
	return findings
}

// reserveIteration reserves the next iteration under the test limit. Returns false once the limit is reached.
func (f *Fuzzer) reserveIteration() bool {
	limit := f.config.Fuzzing.TestLimit
	if limit == 0 {
		return true
	}
	return f.iterationsReserved.Add(1) <= limit
}

// recordFinding durably records a finding produced by worker, then reports it. It is called synchronously by the
// worker before the iteration that produced the finding ends.
func (f *Fuzzer) recordFinding(worker *FuzzerWorker, finding Finding) error {
	if f.findingStore != nil {
		message := ""
		if finding.Err != nil {
			message = finding.Err.Error()
		}
		err := f.findingStore.RecordFinding(stats.FindingRecord{
			CampaignID:  f.campaignID,
			Category:    finding.Category,
			Key:         finding.Key,
			Transaction: finding.Transaction,
			SeedHex:     finding.SeedHex,
			Message:     message,
			Logs:        finding.Logs,
		})
		if err != nil {
			return err
		}
	}

	f.findingsLock.Lock()
	f.findings = append(f.findings, finding)
	f.findingsLock.Unlock()

	f.logger.Error(findingLogBuffer(finding).Args()...)
	return f.Events.FindingRecorded.Publish(FuzzerFindingRecordedEvent{Worker: worker, Finding: finding})
}

// findingLogBuffer formats a finding for the console.
func findingLogBuffer(finding Finding) *logging.LogBuffer {
	buffer := logging.NewLogBuffer()
	buffer.Append(colors.RedBold, "[", finding.Category, "] ", finding.Key, colors.Reset)
	if finding.Transaction != "" {
		buffer.Append(" in ", colors.Bold, finding.Transaction, colors.Reset)
	}
	buffer.Append("\n", "seed: ", finding.SeedHex)
	if finding.Err != nil {
		buffer.Append("\n", finding.Err.Error())
	}
	if len(finding.Logs) > 0 {
		buffer.Append("\n", strings.Join(finding.Logs, "\n"))
	}
	return buffer
}

// spawnWorkers runs the configured number of workers until every worker exits. A worker returning an error cancels
// the others.
func (f *Fuzzer) spawnWorkers() error {
	workerCount := f.config.Fuzzing.Workers
	f.workers = make([]*FuzzerWorker, workerCount)
	f.logger.Info("Creating ", colors.Bold, workerCount, colors.Reset, " workers...")

	group, groupCtx := errgroup.WithContext(f.ctx)
	for i := 0; i < workerCount; i++ {
		workerIndex := i
		group.Go(func() error {
			worker, err := newFuzzerWorker(f, workerIndex, rng.DeriveWorkerSeed(f.masterSeed, workerIndex))
			if err != nil {
				return err
			}
			f.workers[workerIndex] = worker
			f.metrics.workerMetrics[workerIndex].workerStartupCount.Add(1)
			if err = f.Events.WorkerCreated.Publish(FuzzerWorkerCreatedEvent{Worker: worker}); err != nil {
				return err
			}

			runErr := worker.run(groupCtx)
			if err = f.Events.WorkerDestroyed.Publish(FuzzerWorkerDestroyedEvent{Worker: worker}); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		})
	}
	return group.Wait()
}

// Start begins a fuzzing campaign. This operation will not return until an error is encountered or the campaign has
// completed. Its execution can be cancelled using the Stop method, or with ctx.
// Returns an error if one is encountered.
func (f *Fuzzer) Start(ctx context.Context) error {
	// Create our running context (allows us to cancel across threads)
	f.ctx, f.ctxCancelFunc = context.WithCancel(ctx)
	defer f.ctxCancelFunc()

	// If we set a timeout, create the timeout context now, as we're about to begin fuzzing.
	if timeout := f.config.Fuzzing.TimeoutDuration(); timeout > 0 {
		f.logger.Info("Running with a timeout of ", colors.Bold, f.config.Fuzzing.Timeout, " seconds")
		var cancelTimeout context.CancelFunc
		f.ctx, cancelTimeout = context.WithTimeout(f.ctx, timeout)
		defer cancelTimeout()
	}

	f.metrics = NewFuzzerMetrics(f.config.Fuzzing.Workers)
	f.iterationsReserved.Store(0)

	// Open the finding store so findings survive the process
	outputDirectory := f.config.Fuzzing.OutputDirectory
	if outputDirectory != "" {
		if err := utils.MakeDirectory(outputDirectory); err != nil {
			return err
		}
		store, err := stats.OpenFindingStore(filepath.Join(outputDirectory, findingStoreFile))
		if err != nil {
			return err
		}
		f.findingStore = store
	} else {
		f.logger.Warn("No output directory is configured, findings will not be persisted")
	}

	f.reporter = stats.NewReporter(f.findingStore)
	f.reporter.Start()

	f.logger.Info("Fuzzing ", colors.Bold, f.test.Name, colors.Reset, " (campaign ", f.campaignID, ", master seed ", colors.Bold, f.masterSeed.String(), colors.Reset, ")")

	// Publish a fuzzer starting event.
	err := f.Events.FuzzerStarting.Publish(FuzzerStartingEvent{Fuzzer: f})
	if err == nil {
		// Start our printing loop now that we're about to begin fuzzing.
		go f.runMetricsPrintLoop()

		// Run the main worker loop
		err = f.spawnWorkers()
	}

	// NOTE: After this point, we capture errors but do not return immediately, as we want to exit gracefully.
	f.Stop()
	f.statistics = f.reporter.Close()

	if reportErr := f.writeStatisticsReport(); reportErr != nil && err == nil {
		err = reportErr
	}
	if f.findingStore != nil {
		if closeErr := f.findingStore.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		f.findingStore = nil
	}

	// Publish a fuzzer stopping event.
	fuzzerStoppingErr := f.Events.FuzzerStopping.Publish(FuzzerStoppingEvent{Fuzzer: f, Statistics: f.statistics, Err: err})
	if err == nil && fuzzerStoppingErr != nil {
		err = fuzzerStoppingErr
	}

	f.logger.Info("Fuzzer stopped after ", f.metrics.IterationsRun(), " iterations with ", colors.Bold, len(f.Findings()), colors.Reset, " findings")
	return err
}

// writeStatisticsReport writes the configured statistics outputs for the finished campaign.
func (f *Fuzzer) writeStatisticsReport() error {
	statisticsConfig := f.config.Fuzzing.Statistics
	if !statisticsConfig.Enabled {
		return nil
	}

	if statisticsConfig.ShowTable {
		var tables strings.Builder
		f.statistics.RenderTables(&tables)
		f.logger.Info("Statistics:\n", tables.String())
	}

	if statisticsConfig.JSONFile != "" && f.config.Fuzzing.OutputDirectory != "" {
		report, err := stats.NewReport(f.campaignID, f.masterSeed.String(), f.statistics)
		if err != nil {
			return err
		}
		path := filepath.Join(f.config.Fuzzing.OutputDirectory, statisticsConfig.JSONFile)
		if err = report.WriteJSON(path); err != nil {
			return err
		}
		f.logger.Info("Statistics report written to ", colors.Bold, path)
	}
	return nil
}

// Stop stops a running operation invoked by the Start method. This method may return before complete operation
// teardown occurs.
func (f *Fuzzer) Stop() {
	// Call the cancel function on our running context to stop all working goroutines
	if f.ctxCancelFunc != nil {
		f.ctxCancelFunc()
	}
}

// Replay runs exactly one iteration from seed, typically the seed recorded with a finding, on a fresh ledger.
// Returns the statistics of the iteration, or an error if the iteration could not be run.
func (f *Fuzzer) Replay(ctx context.Context, seed rng.Seed) (*stats.Statistics, error) {
	f.ctx, f.ctxCancelFunc = context.WithCancel(ctx)
	defer f.ctxCancelFunc()
	f.metrics = NewFuzzerMetrics(1)

	worker, err := newFuzzerWorker(f, 0, seed)
	if err != nil {
		return nil, err
	}
	f.workers = []*FuzzerWorker{worker}

	f.logger.Info("Replaying ", colors.Bold, f.test.Name, colors.Reset, " from seed ", colors.Bold, seed.String())
	err = worker.runIteration(f.ctx)
	var findingErr *fuzzerrors.FindingError
	if err != nil && !errors.As(err, &findingErr) {
		return nil, err
	}

	f.statistics = worker.takeStatistics()
	return f.statistics, nil
}

// RunInput runs one iteration of the fuzz test over data, a fuzz input supplied by an external driver such as a
// native Go fuzz target or a saved crash file. Every call starts from the seed of the campaign's first worker on a
// reset ledger, so the iteration depends on data alone. Calls are serialized.
// Returns the statistics of the iteration, or an error if the iteration could not be run.
func (f *Fuzzer) RunInput(ctx context.Context, data []byte) (*stats.Statistics, error) {
	f.inputWorkerLock.Lock()
	defer f.inputWorkerLock.Unlock()

	seed := rng.DeriveWorkerSeed(f.masterSeed, 0)
	if f.inputWorker == nil {
		f.metrics = NewFuzzerMetrics(1)
		worker, err := newFuzzerWorker(f, 0, seed)
		if err != nil {
			return nil, err
		}
		f.inputWorker = worker
	}
	f.inputWorker.randomProvider.Reset(seed)

	err := f.inputWorker.RunInput(ctx, data)
	var findingErr *fuzzerrors.FindingError
	if err != nil && !errors.As(err, &findingErr) {
		return nil, err
	}

	f.statistics = f.inputWorker.takeStatistics()
	return f.statistics, nil
}

// runMetricsPrintLoop prints metrics to the console in a loop until ctx signals a stopped operation.
func (f *Fuzzer) runMetricsPrintLoop() {
	// Define our start time
	startTime := time.Now()

	// Define cached variables for our metrics to calculate deltas.
	var lastIterationsRun, lastTransactionsExecuted uint64
	lastPrintedTime := startTime

	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-f.ctx.Done():
			return
		case <-ticker.C:
		}

		// Obtain our metrics
		iterationsRun := f.metrics.IterationsRun()
		transactionsExecuted := f.metrics.TransactionsExecuted()
		secondsSinceLastUpdate := time.Since(lastPrintedTime).Seconds()

		// Print a metrics update
		f.logger.Info(
			"fuzz: elapsed: ", time.Since(startTime).Round(time.Second),
			", iterations: ", iterationsRun, " (", uint64(float64(iterationsRun-lastIterationsRun)/secondsSinceLastUpdate), "/sec)",
			", transactions: ", transactionsExecuted, " (", uint64(float64(transactionsExecuted-lastTransactionsExecuted)/secondsSinceLastUpdate), "/sec)",
			", findings: ", f.metrics.FindingsRecorded(),
		)

		// Update our delta tracking metrics
		lastPrintedTime = time.Now()
		lastIterationsRun = iterationsRun
		lastTransactionsExecuted = transactionsExecuted
	}
}
