package fuzzing

import (
	"slices"
	"sync"

	"github.com/crytic/svmfuzz/fuzzing/client"
	"github.com/pkg/errors"
)

// FuzzTest describes a fuzz test: the ledger state every iteration starts from and the strategy producing the
// transactions of an iteration.
type FuzzTest struct {
	// Name identifies the test on the command line.
	Name string

	// Description is a short human readable summary of what the test exercises.
	Description string

	// Setup deploys programs and creates the accounts every iteration starts from. It runs once against each
	// worker's ledger before the ledger is sealed. It may be nil.
	Setup func(c client.ExecutionClient) error

	// NewStrategy creates the strategy a worker runs its iterations with. It is called once per worker, so the
	// returned strategy need not be safe for concurrent use.
	NewStrategy func() (IterationStrategy, error)
}

var (
	// fuzzTestsLock guards fuzzTests.
	fuzzTestsLock sync.RWMutex

	// fuzzTests holds every registered FuzzTest by name.
	fuzzTests = make(map[string]*FuzzTest)
)

// RegisterFuzzTest registers test so it can be looked up by name with GetFuzzTest. Returns an error if the test is
// malformed or a test with the same name is already registered.
func RegisterFuzzTest(test *FuzzTest) error {
	if test == nil || test.Name == "" {
		return errors.New("fuzz tests must have a name")
	}
	if test.NewStrategy == nil {
		return errors.Errorf("fuzz test %s does not provide an iteration strategy", test.Name)
	}

	fuzzTestsLock.Lock()
	defer fuzzTestsLock.Unlock()
	if _, exists := fuzzTests[test.Name]; exists {
		return errors.Errorf("a fuzz test named %s is already registered", test.Name)
	}
	fuzzTests[test.Name] = test
	return nil
}

// MustRegisterFuzzTest registers test, panicking if it cannot be registered. It is meant to be called from init
// functions of harness packages.
func MustRegisterFuzzTest(test *FuzzTest) {
	if err := RegisterFuzzTest(test); err != nil {
		panic(err)
	}
}

// GetFuzzTest returns the registered test with the given name.
func GetFuzzTest(name string) (*FuzzTest, error) {
	fuzzTestsLock.RLock()
	defer fuzzTestsLock.RUnlock()
	test, ok := fuzzTests[name]
	if !ok {
		return nil, errors.Errorf("no fuzz test named %q is registered", name)
	}
	return test, nil
}

// FuzzTestNames returns the names of every registered test, sorted.
func FuzzTestNames() []string {
	fuzzTestsLock.RLock()
	defer fuzzTestsLock.RUnlock()
	names := make([]string, 0, len(fuzzTests))
	for name := range fuzzTests {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
