package fuzzing

import (
	"fmt"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/snapshot"
	"github.com/crytic/svmfuzz/fuzzing/stats"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/crytic/svmfuzz/logging"
	"github.com/pkg/errors"
)

// Finding describes an invariant violation, an unexpected execution failure or a panic, with the seed of the
// iteration that produced it.
type Finding struct {
	// Category is the statistics category the finding was recorded under.
	Category stats.Category

	// Key is the key the finding was recorded under within its category.
	Key string

	// Transaction is the name of the transaction which produced the finding, if any.
	Transaction string

	// SeedHex is the iteration seed that reproduces the finding.
	SeedHex string

	// Err is the error which produced the finding.
	Err error

	// Logs are the ledger log lines emitted by the transaction.
	Logs []string
}

// FindingRecorder durably records findings. RecordFinding must not return before the finding is persisted.
type FindingRecorder interface {
	RecordFinding(finding Finding) error
}

// TransactionExecutor is the transactions.Visitor used during fuzzing. It builds each transaction, snapshots the
// accounts it references, submits it, classifies the outcome and runs its invariant check, recording everything in
// its statistics.
type TransactionExecutor struct {
	// statistics accumulates outcomes until they are taken by TakeStatistics.
	statistics *stats.Statistics

	// recorder receives every finding.
	recorder FindingRecorder

	// seedHex is the seed of the current iteration.
	seedHex string

	// monitorRegression indicates whether account data hashes are recorded after every successful transaction.
	monitorRegression bool

	// transactionsExecuted counts every transaction submitted to the ledger.
	transactionsExecuted uint64

	logger *logging.Logger
}

// NewTransactionExecutor creates a TransactionExecutor reporting findings to recorder.
func NewTransactionExecutor(recorder FindingRecorder, monitorRegression bool) *TransactionExecutor {
	return &TransactionExecutor{
		statistics:        stats.NewStatistics(),
		recorder:          recorder,
		monitorRegression: monitorRegression,
		logger:            logging.GlobalLogger.NewSubLogger(logging.SERVICE_KEY, logging.EXECUTOR_SERVICE),
	}
}

// BeginIteration sets the seed recorded with outcomes of the following transactions.
func (e *TransactionExecutor) BeginIteration(seedHex string) {
	e.seedHex = seedHex
}

// Statistics returns the statistics accumulated since the last call to TakeStatistics.
func (e *TransactionExecutor) Statistics() *stats.Statistics {
	return e.statistics
}

// TakeStatistics returns the accumulated statistics and starts a new, empty set.
func (e *TransactionExecutor) TakeStatistics() *stats.Statistics {
	taken := e.statistics
	e.statistics = stats.NewStatistics()
	return taken
}

// AddToAccumulator adds value to the named accumulator metric of the statistics accumulated since the last call to
// TakeStatistics. It implements transactions.MetricsRecorder.
func (e *TransactionExecutor) AddToAccumulator(name string, value float64) error {
	return e.statistics.AddToAccumulator(name, value)
}

// AddToHistogram records value in the named histogram metric of the statistics accumulated since the last call to
// TakeStatistics. It implements transactions.MetricsRecorder.
func (e *TransactionExecutor) AddToHistogram(name string, value float64) error {
	return e.statistics.AddToHistogram(name, value)
}

// TransactionsExecuted returns the number of transactions submitted to the ledger.
func (e *TransactionExecutor) TransactionsExecuted() uint64 {
	return e.transactionsExecuted
}

// VisitTransaction executes tx. It returns fuzzerrors.ErrExhaustedInput unchanged if building tx ran out of input,
// and a *fuzzerrors.FindingError once a finding has been recorded.
func (e *TransactionExecutor) VisitTransaction(env *transactions.Environment, tx *transactions.Transaction) error {
	if err := tx.Build(env); err != nil {
		return err
	}
	e.statistics.IncreaseInvoked(tx.Name)

	snap := snapshot.New(tx.Addresses())
	if err := snap.CaptureBefore(env.Client); err != nil {
		return err
	}

	if tx.PreHook != nil {
		if err := tx.PreHook(env, tx); err != nil {
			return err
		}
	}

	wire, err := tx.ToWire()
	if err != nil {
		return err
	}
	result, err := env.Client.SubmitTransaction(env.Context, wire, tx.Signers())
	e.transactionsExecuted++
	var logs []string
	if result != nil {
		logs = result.Logs
	}
	if err != nil {
		var txErr *types.TransactionError
		if !errors.As(err, &txErr) {
			return errors.Wrapf(err, "ledger failed to process transaction %s", tx.Name)
		}
		return e.handleFailure(env, tx, txErr, logs)
	}

	e.statistics.IncreaseSuccessful(tx.Name)
	if err = tx.MarkExecuted(); err != nil {
		return err
	}
	if err = snap.CaptureAfter(env.Client); err != nil {
		return err
	}
	if e.monitorRegression {
		for i, address := range snap.Addresses() {
			e.statistics.Regression.Monitor(e.seedHex, tx.Name, address, snap.After(i))
		}
	}

	if tx.InvariantHook != nil {
		if err = tx.InvariantHook(env, tx, snap); err != nil {
			if err = e.handleInvariantError(tx, err, logs); err != nil {
				return err
			}
		}
	}
	if err = tx.MarkChecked(); err != nil {
		return err
	}

	if tx.PostHook != nil {
		return tx.PostHook(env, tx)
	}
	return nil
}

// handleFailure records a transaction the ledger rejected and decides whether it is a finding. Panics always are;
// other failures are findings when the transaction's error handler propagates them.
func (e *TransactionExecutor) handleFailure(env *transactions.Environment, tx *transactions.Transaction, txErr *types.TransactionError, logs []string) error {
	// A cancelled campaign is not a property of the program under test
	if txErr.Kind == types.ErrorKindCancelled && env.Context.Err() != nil {
		return env.Context.Err()
	}

	key := txErr.Key()
	category := stats.CategoryErrors
	switch txErr.Kind {
	case types.ErrorKindProgramFailedToComplete:
		category = stats.CategoryPanics
		e.statistics.IncreasePanicked(tx.Name)
	case types.ErrorKindCustom:
		category = stats.CategoryCustomErrors
	}
	e.statistics.IncreaseFailed(tx.Name)
	e.statistics.Record(category, key, e.seedHex, logs)

	failure := &fuzzerrors.ExecutionFailureError{Transaction: tx.Name, Err: txErr, Logs: logs}
	if category == stats.CategoryPanics {
		return e.reportFinding(category, key, tx.Name, failure, logs)
	}

	handlerErr := tx.HandleError(env, txErr)
	if handlerErr == nil {
		return nil
	}
	if fuzzerrors.IsExhaustedInput(handlerErr) || isConfigurationFatal(handlerErr) {
		return handlerErr
	}
	if handlerErr != error(txErr) {
		failure.Cause = handlerErr
	}
	return e.reportFinding(category, key, tx.Name, failure, logs)
}

// handleInvariantError classifies an error returned by an invariant hook. Layout mismatches abandon the check
// without a finding. Anything else that is not a fuzzing signal is an invariant violation.
func (e *TransactionExecutor) handleInvariantError(tx *transactions.Transaction, err error, logs []string) error {
	if errors.Is(err, fuzzerrors.ErrDeserializationMismatch) {
		e.logger.Debug("Skipped invariant check of ", tx.Name, ": ", err.Error())
		return nil
	}
	if fuzzerrors.IsExhaustedInput(err) || isConfigurationFatal(err) {
		return err
	}

	var violation *fuzzerrors.InvariantViolationError
	if !errors.As(err, &violation) {
		violation = &fuzzerrors.InvariantViolationError{Invariant: err.Error(), Err: err}
	}
	violation.Transaction = tx.Name

	e.statistics.IncreaseInvariantFailed(tx.Name)
	e.statistics.Record(stats.CategoryInvariants, violation.Invariant, e.seedHex, logs)
	return e.reportFinding(stats.CategoryInvariants, violation.Invariant, tx.Name, violation, logs)
}

// recordPanic records a panic raised outside the ledger, by a hook or a flow, as a finding.
func (e *TransactionExecutor) recordPanic(value any) error {
	key := fmt.Sprintf("%v", value)
	e.statistics.Record(stats.CategoryPanics, key, e.seedHex, nil)
	return e.reportFinding(stats.CategoryPanics, key, "", errors.Errorf("panic: %v", value), nil)
}

// reportFinding hands a finding to the recorder and returns the FindingError ending the iteration.
func (e *TransactionExecutor) reportFinding(category stats.Category, key string, transaction string, cause error, logs []string) error {
	e.statistics.Findings++
	finding := Finding{
		Category:    category,
		Key:         key,
		Transaction: transaction,
		SeedHex:     e.seedHex,
		Err:         cause,
		Logs:        logs,
	}
	if err := e.recorder.RecordFinding(finding); err != nil {
		return errors.Wrap(err, "failed to record finding")
	}
	return &fuzzerrors.FindingError{
		Category: string(category),
		Key:      key,
		SeedHex:  e.seedHex,
		Err:      cause,
	}
}

// isConfigurationFatal indicates whether err is, or wraps, a *fuzzerrors.ConfigurationFatalError.
func isConfigurationFatal(err error) bool {
	var fatal *fuzzerrors.ConfigurationFatalError
	return errors.As(err, &fatal)
}
