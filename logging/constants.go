package logging

// SERVICE_KEY is the key under which sub-loggers record the service that emitted an event.
const SERVICE_KEY = "service"

// These constants are used to identify the various services that may do some logging
const (
	// CHAIN_SERVICE is the constant used to identify the chain package
	CHAIN_SERVICE = "chain"
	// FUZZING_SERVICE is the constant used to identify the fuzzing package
	FUZZING_SERVICE = "fuzzing"
	// EXECUTOR_SERVICE is the constant used to identify the transaction executor
	EXECUTOR_SERVICE = "executor"
	// STATISTICS_SERVICE is the constant used to identify the statistics package
	STATISTICS_SERVICE = "statistics"
	// CLI_SERVICE is the constant used to identify the cmd package
	CLI_SERVICE = "cli"
)
