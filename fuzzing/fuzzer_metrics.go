package fuzzing

import "sync/atomic"

// FuzzerMetrics represents a struct tracking metrics for a Fuzzer run.
type FuzzerMetrics struct {
	// workerMetrics describes the metrics for each individual worker, indexed like Fuzzer.workers.
	workerMetrics []fuzzerWorkerMetrics
}

// NewFuzzerMetrics obtains a new FuzzerMetrics struct for a given number of workers specified by workerCount.
// Returns the new FuzzerMetrics object.
func NewFuzzerMetrics(workerCount int) *FuzzerMetrics {
	return &FuzzerMetrics{
		workerMetrics: make([]fuzzerWorkerMetrics, workerCount),
	}
}

// IterationsRun returns the amount of iterations completed across all workers.
func (m *FuzzerMetrics) IterationsRun() uint64 {
	iterations := uint64(0)
	for i := range m.workerMetrics {
		iterations += m.workerMetrics[i].iterationsRun.Load()
	}
	return iterations
}

// TransactionsExecuted returns the amount of transactions submitted to the ledger across all workers.
func (m *FuzzerMetrics) TransactionsExecuted() uint64 {
	transactions := uint64(0)
	for i := range m.workerMetrics {
		transactions += m.workerMetrics[i].transactionsExecuted.Load()
	}
	return transactions
}

// FindingsRecorded returns the amount of findings recorded across all workers.
func (m *FuzzerMetrics) FindingsRecorded() uint64 {
	findings := uint64(0)
	for i := range m.workerMetrics {
		findings += m.workerMetrics[i].findingsRecorded.Load()
	}
	return findings
}

// WorkerStartupCount describes the amount of times a worker was created.
func (m *FuzzerMetrics) WorkerStartupCount() uint64 {
	workerStartupCount := uint64(0)
	for i := range m.workerMetrics {
		workerStartupCount += m.workerMetrics[i].workerStartupCount.Load()
	}
	return workerStartupCount
}

// fuzzerWorkerMetrics represents metrics for a single FuzzerWorker instance. Counters are written by the worker and
// read concurrently by the metrics loop.
type fuzzerWorkerMetrics struct {
	// iterationsRun describes the amount of iterations the worker completed.
	iterationsRun atomic.Uint64

	// transactionsExecuted describes the amount of transactions the worker submitted.
	transactionsExecuted atomic.Uint64

	// findingsRecorded describes the amount of findings the worker recorded.
	findingsRecorded atomic.Uint64

	// workerStartupCount describes the amount of times the worker was created for this index.
	workerStartupCount atomic.Uint64
}
