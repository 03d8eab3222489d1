package fuzzing

import (
	"strings"
	"sync"
	"testing"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/context"
)

// testProgramID is the address test programs are deployed at.
var testProgramID = types.Address{0x7e, 0x57}

// zeroSeedHex is the all-zero master seed.
var zeroSeedHex = strings.Repeat("00", rng.SeedLength)

// fuzzerTestingContext holds a fuzzer under test and counts the events it emitted, so tests can check both the
// outcome of a campaign and how it was reported.
type fuzzerTestingContext struct {
	fuzzer       *Fuzzer
	eventCounter map[string]int
	eventLock    sync.Mutex
}

// countEvent increments the counter of the named event.
func (fctx *fuzzerTestingContext) countEvent(name string) {
	fctx.eventLock.Lock()
	defer fctx.eventLock.Unlock()
	fctx.eventCounter[name]++
}

// eventCount returns how many times the named event was emitted.
func (fctx *fuzzerTestingContext) eventCount(name string) int {
	fctx.eventLock.Lock()
	defer fctx.eventLock.Unlock()
	return fctx.eventCounter[name]
}

// newFuzzerTestContext creates a fuzzer for test from projectConfig and subscribes to its events.
func newFuzzerTestContext(t *testing.T, projectConfig *config.ProjectConfig, test *FuzzTest) *fuzzerTestingContext {
	fuzzer, err := NewFuzzer(*projectConfig, test)
	require.NoError(t, err)

	fctx := &fuzzerTestingContext{fuzzer: fuzzer, eventCounter: make(map[string]int)}
	fuzzer.Events.FuzzerStarting.Subscribe(func(event FuzzerStartingEvent) error {
		fctx.countEvent("FuzzerStarting")
		return nil
	})
	fuzzer.Events.FuzzerStopping.Subscribe(func(event FuzzerStoppingEvent) error {
		fctx.countEvent("FuzzerStopping")
		return nil
	})
	fuzzer.Events.WorkerCreated.Subscribe(func(event FuzzerWorkerCreatedEvent) error {
		fctx.countEvent("WorkerCreated")
		return nil
	})
	fuzzer.Events.FindingRecorded.Subscribe(func(event FuzzerFindingRecordedEvent) error {
		fctx.countEvent("FindingRecorded")
		return nil
	})
	return fctx
}

// testProjectConfig returns a configuration for a small, reproducible, single worker campaign.
func testProjectConfig(testLimit uint64) *config.ProjectConfig {
	projectConfig := config.GetDefaultProjectConfig()
	projectConfig.Fuzzing.Workers = 1
	projectConfig.Fuzzing.TestLimit = testLimit
	projectConfig.Fuzzing.MasterSeed = zeroSeedHex
	projectConfig.Fuzzing.MaxInputLength = 64
	projectConfig.Fuzzing.Statistics.ShowTable = false
	return projectConfig
}

// programTest returns a FuzzTest deploying program at testProgramID and running the strategy built by newStrategy.
func programTest(name string, program types.ProgramFunc, newStrategy func() (IterationStrategy, error)) *FuzzTest {
	return &FuzzTest{
		Name: name,
		Setup: func(c client.ExecutionClient) error {
			return c.Deploy(testProgramID, nil, program)
		},
		NewStrategy: newStrategy,
	}
}

// singleTransactionTest returns a FuzzTest whose iterations submit one transaction, built by build, to program.
func singleTransactionTest(program types.ProgramFunc, build transactions.BuildFunc) *FuzzTest {
	return programTest("single", program, func() (IterationStrategy, error) {
		return &DeclarativeSequence{Prologue: []transactions.Variant{transactions.NewVariant("call", build)}}, nil
	})
}

// noopProgram accepts every instruction.
func noopProgram(*types.InvocationContext, []byte) error {
	return nil
}

// byteProgram returns a program receiving a single payload byte, which panics with "vault drained" when the byte is
// at least threshold.
func byteProgram(threshold byte) types.ProgramFunc {
	return func(ictx *types.InvocationContext, data []byte) error {
		if len(data) > 0 && data[0] >= threshold {
			panic("vault drained")
		}
		return nil
	}
}

// byteVariant returns a variant sending one byte drawn from the fuzz input to testProgramID.
func byteVariant(name string) transactions.Variant {
	return transactions.NewVariant(name, func(env *transactions.Environment) (*transactions.Transaction, error) {
		ix := transactions.NewInstruction(name, testProgramID, func(env *transactions.Environment, ix *transactions.Instruction) error {
			b, err := env.Input.Uint8()
			if err != nil {
				return err
			}
			ix.SetRawData([]byte{b})
			return nil
		}, nil)
		return transactions.NewTransaction(name, ix), nil
	})
}

// emptyTransaction builds a transaction invoking testProgramID with no accounts and no data.
func emptyTransaction(env *transactions.Environment) (*transactions.Transaction, error) {
	return transactions.NewTransaction("", transactions.NewInstruction("noop", testProgramID, nil, nil)), nil
}

// recordingVisitor records the names of visited transactions without executing them.
type recordingVisitor struct {
	names []string
}

// VisitTransaction records tx's name.
func (v *recordingVisitor) VisitTransaction(env *transactions.Environment, tx *transactions.Transaction) error {
	v.names = append(v.names, tx.Name)
	return nil
}

// namedVariant returns a variant producing an empty transaction named name. If consume is set, building the
// transaction reads one byte of fuzz input.
func namedVariant(name string, consume bool) transactions.Variant {
	return transactions.NewVariant(name, func(env *transactions.Environment) (*transactions.Transaction, error) {
		if consume {
			if _, err := env.Input.Uint8(); err != nil {
				return nil, err
			}
		}
		return transactions.NewTransaction(name), nil
	})
}

// recordingFlow returns a flow appending name to visitor's records.
func recordingFlow(name string) FlowFunc {
	return func(env *transactions.Environment, visitor transactions.Visitor) error {
		return visitor.VisitTransaction(env, transactions.NewTransaction(name))
	}
}

// backgroundContext returns the context tests run campaigns with.
func backgroundContext() context.Context {
	return context.Background()
}
