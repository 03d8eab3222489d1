package fuzzing

import (
	"testing"

	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/randomsource"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// strategyEnvironment returns an environment with inputLength zero bytes of fuzz input and no ledger.
func strategyEnvironment(inputLength int) *transactions.Environment {
	return &transactions.Environment{
		Context: backgroundContext(),
		Input:   randomsource.NewRandomSource(make([]byte, inputLength)),
		Rng:     rng.FromSeed(rng.Seed{}),
	}
}

// TestDeclarativeSequenceRunsEpilogueAfterExhaustion checks that the body runs until the input runs out and the
// epilogue still runs afterwards.
func TestDeclarativeSequenceRunsEpilogueAfterExhaustion(t *testing.T) {
	sequence := &DeclarativeSequence{
		Prologue: []transactions.Variant{namedVariant("init", false)},
		Body:     []transactions.WeightedVariant{{Variant: namedVariant("step", true)}},
		Epilogue: []transactions.Variant{namedVariant("check", false)},
	}

	// Each body step draws 8 bytes to pick a variant and 1 byte to build it, so 20 bytes allow two steps
	visitor := &recordingVisitor{}
	require.NoError(t, sequence.RunIteration(strategyEnvironment(20), visitor))
	assert.Equal(t, []string{"init", "step", "step", "check"}, visitor.names)
}

// TestDeclarativeSequenceMaxBodyLength checks that MaxBodyLength caps the body.
func TestDeclarativeSequenceMaxBodyLength(t *testing.T) {
	sequence := &DeclarativeSequence{
		Body:          []transactions.WeightedVariant{{Variant: namedVariant("step", true)}},
		MaxBodyLength: 3,
	}
	visitor := &recordingVisitor{}
	require.NoError(t, sequence.RunIteration(strategyEnvironment(200), visitor))
	assert.Equal(t, []string{"step", "step", "step"}, visitor.names)
}

// TestDeclarativeSequenceWeights checks that zero-weight variants are never drawn once any variant is weighted.
func TestDeclarativeSequenceWeights(t *testing.T) {
	sequence := &DeclarativeSequence{
		Body: []transactions.WeightedVariant{
			{Variant: namedVariant("never", false), Weight: 0},
			{Variant: namedVariant("always", false), Weight: 5},
		},
		MaxBodyLength: 6,
	}
	env := strategyEnvironment(0)
	env.Input = randomsource.NewRandomSource(rng.FromSeed(rng.Seed{1}).Bytes(200))

	visitor := &recordingVisitor{}
	require.NoError(t, sequence.RunIteration(env, visitor))
	assert.Equal(t, []string{"always", "always", "always", "always", "always", "always"}, visitor.names)
}

// TestDeclarativeSequencePrologueExhaustion checks that running out of input in the prologue ends the iteration
// before the epilogue.
func TestDeclarativeSequencePrologueExhaustion(t *testing.T) {
	sequence := &DeclarativeSequence{
		Prologue: []transactions.Variant{namedVariant("init", true)},
		Epilogue: []transactions.Variant{namedVariant("check", false)},
	}
	visitor := &recordingVisitor{}
	err := sequence.RunIteration(strategyEnvironment(0), visitor)
	assert.True(t, fuzzerrors.IsExhaustedInput(err))
	assert.Empty(t, visitor.names)
}

// TestDeclarativeSequenceBodyErrors checks that errors other than exhaustion stop the iteration.
func TestDeclarativeSequenceBodyErrors(t *testing.T) {
	failure := errors.New("build failed")
	sequence := &DeclarativeSequence{
		Body: []transactions.WeightedVariant{{Variant: transactions.NewVariant("broken", func(env *transactions.Environment) (*transactions.Transaction, error) {
			return nil, failure
		})}},
		Epilogue: []transactions.Variant{namedVariant("check", false)},
	}
	visitor := &recordingVisitor{}
	err := sequence.RunIteration(strategyEnvironment(100), visitor)
	assert.ErrorIs(t, err, failure)
	assert.Empty(t, visitor.names)
}

// TestFlowSetInOrder checks that Init, the active flows and End run in order.
func TestFlowSetInOrder(t *testing.T) {
	flows := &FlowSet{
		Init: recordingFlow("init"),
		Flows: []Flow{
			{Name: "deposit", Run: recordingFlow("deposit")},
			{Name: "skipped", Run: recordingFlow("skipped"), Ignore: true},
			{Name: "withdraw", Run: recordingFlow("withdraw")},
		},
		End: recordingFlow("end"),
	}
	visitor := &recordingVisitor{}
	require.NoError(t, flows.RunIteration(strategyEnvironment(0), visitor))
	assert.Equal(t, []string{"init", "deposit", "withdraw", "end"}, visitor.names)
}

// TestFlowSetRandomTail checks that the random tail draws one more active flow.
func TestFlowSetRandomTail(t *testing.T) {
	flows := &FlowSet{
		Flows: []Flow{
			{Name: "deposit", Run: recordingFlow("deposit")},
			{Name: "skipped", Run: recordingFlow("skipped"), Ignore: true},
		},
		RandomTail: true,
	}
	visitor := &recordingVisitor{}
	require.NoError(t, flows.RunIteration(strategyEnvironment(0), visitor))
	assert.Equal(t, []string{"deposit", "deposit"}, visitor.names)
}

// TestFlowSetRandomSelection checks weighted random selection of flows.
func TestFlowSetRandomSelection(t *testing.T) {
	flows := &FlowSet{
		Flows: []Flow{
			{Name: "never", Run: recordingFlow("never")},
			{Name: "weighted", Run: recordingFlow("weighted"), Weight: 3},
			{Name: "ignored", Run: recordingFlow("ignored"), Weight: 100, Ignore: true},
		},
		End:               recordingFlow("end"),
		Selection:         FlowSelectRandom,
		CallsPerIteration: 4,
	}
	visitor := &recordingVisitor{}
	require.NoError(t, flows.RunIteration(strategyEnvironment(0), visitor))
	assert.Equal(t, []string{"weighted", "weighted", "weighted", "weighted", "end"}, visitor.names)

	// With every flow ignored nothing is drawn, and End still runs
	empty := &FlowSet{
		Flows:             []Flow{{Name: "ignored", Run: recordingFlow("ignored"), Ignore: true}},
		End:               recordingFlow("end"),
		Selection:         FlowSelectRandom,
		CallsPerIteration: 4,
	}
	visitor = &recordingVisitor{}
	require.NoError(t, empty.RunIteration(strategyEnvironment(0), visitor))
	assert.Equal(t, []string{"end"}, visitor.names)
}

// TestFlowSetErrors checks that a failing flow stops the iteration before End, and that an unknown selection is a
// configuration error.
func TestFlowSetErrors(t *testing.T) {
	failure := errors.New("flow failed")
	flows := &FlowSet{
		Flows: []Flow{
			{Name: "broken", Run: func(env *transactions.Environment, visitor transactions.Visitor) error { return failure }},
			{Name: "after", Run: recordingFlow("after")},
		},
		End: recordingFlow("end"),
	}
	visitor := &recordingVisitor{}
	assert.ErrorIs(t, flows.RunIteration(strategyEnvironment(0), visitor), failure)
	assert.Empty(t, visitor.names)

	unknown := &FlowSet{Selection: FlowSelection(42)}
	var fatal *fuzzerrors.ConfigurationFatalError
	assert.ErrorAs(t, unknown.RunIteration(strategyEnvironment(0), visitor), &fatal)
}
