package fuzzing

import (
	"github.com/crytic/svmfuzz/events"
	"github.com/crytic/svmfuzz/fuzzing/stats"
)

// FuzzerEvents defines event emitters for a Fuzzer.
type FuzzerEvents struct {
	// FuzzerStarting emits events when the Fuzzer initialized state and is ready to about to begin the main
	// execution loop for the fuzzing campaign.
	FuzzerStarting events.EventEmitter[FuzzerStartingEvent]

	// FuzzerStopping emits events when the Fuzzer is exiting its main fuzzing loop.
	FuzzerStopping events.EventEmitter[FuzzerStoppingEvent]

	// WorkerCreated emits events when the Fuzzer creates a new FuzzerWorker during the fuzzing campaign.
	WorkerCreated events.EventEmitter[FuzzerWorkerCreatedEvent]

	// WorkerDestroyed emits events when the Fuzzer destroys an existing FuzzerWorker during the fuzzing
	// campaign.
	WorkerDestroyed events.EventEmitter[FuzzerWorkerDestroyedEvent]

	// FindingRecorded emits events after a finding has been durably recorded.
	FindingRecorded events.EventEmitter[FuzzerFindingRecordedEvent]
}

// FuzzerStartingEvent describes an event where a fuzzing.Fuzzer has initialized all state variables and is about to
// begin spinning up instances of FuzzerWorker to start the fuzzing campaign.
type FuzzerStartingEvent struct {
	// Fuzzer represents the instance of the fuzzing.Fuzzer for which the event occurred.
	Fuzzer *Fuzzer
}

// FuzzerStoppingEvent describes an event where a fuzzing.Fuzzer is exiting the main fuzzing loop.
type FuzzerStoppingEvent struct {
	// Fuzzer represents the instance of the fuzzing.Fuzzer for which the event occurred.
	Fuzzer *Fuzzer

	// Statistics are the aggregated statistics of the campaign.
	Statistics *stats.Statistics

	// Err describes a potential error returned by the fuzzer run.
	Err error
}

// FuzzerWorkerCreatedEvent describes an event where a fuzzing.FuzzerWorker is created by a fuzzing.Fuzzer.
type FuzzerWorkerCreatedEvent struct {
	// Worker represents the instance of the fuzzing.FuzzerWorker for which the event occurred.
	Worker *FuzzerWorker
}

// FuzzerWorkerDestroyedEvent describes an event where a fuzzing.FuzzerWorker is destroyed by a fuzzing.Fuzzer.
type FuzzerWorkerDestroyedEvent struct {
	// Worker represents the instance of the fuzzing.FuzzerWorker for which the event occurred.
	Worker *FuzzerWorker
}

// FuzzerFindingRecordedEvent describes an event where a finding was recorded by a fuzzing.FuzzerWorker.
type FuzzerFindingRecordedEvent struct {
	// Worker represents the instance of the fuzzing.FuzzerWorker which produced the finding.
	Worker *FuzzerWorker

	// Finding is the recorded finding.
	Finding Finding
}
