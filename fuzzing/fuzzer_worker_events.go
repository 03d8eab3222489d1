package fuzzing

import (
	"github.com/crytic/svmfuzz/events"
)

// FuzzerWorkerEvents defines event emitters for a FuzzerWorker.
type FuzzerWorkerEvents struct {
	// IterationStarting emits events when the FuzzerWorker is about to run a new iteration.
	IterationStarting events.EventEmitter[FuzzerWorkerIterationStartingEvent]

	// IterationFinished emits events when the FuzzerWorker has finished an iteration and reset its ledger and
	// identity stores.
	IterationFinished events.EventEmitter[FuzzerWorkerIterationFinishedEvent]
}

// FuzzerWorkerIterationStartingEvent describes an event where a fuzzing.FuzzerWorker is about to run an iteration.
type FuzzerWorkerIterationStartingEvent struct {
	// Worker represents the instance of the fuzzing.FuzzerWorker for which the event occurred.
	Worker *FuzzerWorker

	// SeedHex is the seed of the iteration.
	SeedHex string

	// InputLength is the length of the iteration's fuzz input.
	InputLength int
}

// FuzzerWorkerIterationFinishedEvent describes an event where a fuzzing.FuzzerWorker finished an iteration.
type FuzzerWorkerIterationFinishedEvent struct {
	// Worker represents the instance of the fuzzing.FuzzerWorker for which the event occurred.
	Worker *FuzzerWorker

	// SeedHex is the seed of the iteration.
	SeedHex string

	// Err is the error the iteration ended with, after exhausted input and layout mismatches were absorbed.
	Err error
}
