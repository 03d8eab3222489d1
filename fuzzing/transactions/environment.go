package transactions

import (
	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/randomsource"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"golang.org/x/net/context"
)

// MetricsRecorder records custom metrics into the statistics of the worker running an iteration.
type MetricsRecorder interface {
	// AddToAccumulator adds value to the named accumulator metric.
	AddToAccumulator(name string, value float64) error

	// AddToHistogram records value in the named histogram metric.
	AddToHistogram(name string, value float64) error
}

// Environment is everything a hook may use while building or checking a transaction during one iteration. It is
// owned by a single worker and is never shared across iterations except for its Rng.
type Environment struct {
	// Context is cancelled when the campaign stops.
	Context context.Context

	// Input is the fuzz input of the current iteration.
	Input *randomsource.RandomSource

	// Rng is the worker's seeded generator.
	Rng *rng.SeededRng

	// Client is the ledger transactions execute against.
	Client client.ExecutionClient

	// Accounts holds the identity stores of the current iteration.
	Accounts *accounts.Registry

	// Metrics receives custom metrics. Recording is a no-op if it is nil.
	Metrics MetricsRecorder
}

// AddToAccumulator adds value to the named accumulator metric.
func (e *Environment) AddToAccumulator(name string, value float64) error {
	if e.Metrics == nil {
		return nil
	}
	return e.Metrics.AddToAccumulator(name, value)
}

// AddToHistogram records value in the named histogram metric.
func (e *Environment) AddToHistogram(name string, value float64) error {
	if e.Metrics == nil {
		return nil
	}
	return e.Metrics.AddToHistogram(name, value)
}

// Resolve resolves handle in the named store, creating the identity and its account as needed.
func (e *Environment) Resolve(store string, handle accounts.Handle, params accounts.CreationParams) (*accounts.Identity, error) {
	return e.Accounts.Store(store).ResolveOrCreate(e.Client, handle, params)
}

// DrawHandle draws a handle below count from the fuzz input. Tests use it to pick which account slot an instruction
// touches, so that a small number of slots are reused across transactions.
func (e *Environment) DrawHandle(count uint8) (accounts.Handle, error) {
	if count == 0 {
		count = 1
	}
	v, err := e.Input.Uint8()
	if err != nil {
		return 0, err
	}
	return accounts.Handle(v % count), nil
}
