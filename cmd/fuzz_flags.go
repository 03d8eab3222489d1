package cmd

import (
	"fmt"

	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/spf13/cobra"
)

// addFuzzFlags adds the various flags for the fuzz command
func addFuzzFlags() error {
	defaultConfig := config.GetDefaultProjectConfig()

	// Prevent alphabetical sorting of usage message
	fuzzCmd.Flags().SortFlags = false

	// Config file
	fuzzCmd.Flags().String("config", "", "path to config file")

	// Fuzz test
	fuzzCmd.Flags().String("test", "", "name of the registered fuzz test to run")

	// Number of workers
	fuzzCmd.Flags().Int("workers", 0,
		fmt.Sprintf("number of fuzzer workers (unless a config file is provided, default is %d)", defaultConfig.Fuzzing.Workers))

	// Timeout
	fuzzCmd.Flags().Int("timeout", 0,
		fmt.Sprintf("number of seconds to run the fuzzer campaign for (unless a config file is provided, default is %d). 0 means that timeout is not enforced", defaultConfig.Fuzzing.Timeout))

	// Test limit
	fuzzCmd.Flags().Uint64("test-limit", 0,
		fmt.Sprintf("number of iterations to run before exiting (unless a config file is provided, default is %d). 0 means that test limit is not enforced", defaultConfig.Fuzzing.TestLimit))

	// Master seed
	fuzzCmd.Flags().String("seed", "", "hex-encoded master seed the worker seeds are derived from (default is a random seed)")

	// Maximum input length
	fuzzCmd.Flags().Int("max-input", 0,
		fmt.Sprintf("maximum length in bytes of an iteration's fuzz input (unless a config file is provided, default is %d)", defaultConfig.Fuzzing.MaxInputLength))

	// Stop on finding
	fuzzCmd.Flags().Bool("stop-on-finding", false,
		fmt.Sprintf("stop the campaign at the first finding (unless a config file is provided, default is %t)", defaultConfig.Fuzzing.StopOnFinding))

	// Output directory
	fuzzCmd.Flags().String("output-dir", "",
		fmt.Sprintf("directory findings and statistics are written to (unless a config file is provided, default is %q)", defaultConfig.Fuzzing.OutputDirectory))

	return fuzzCmd.RegisterFlagCompletionFunc("test", completeFuzzTestNames)
}

// updateProjectConfigWithFuzzFlags will update the given projectConfig with any CLI arguments that were provided to the fuzz command
func updateProjectConfigWithFuzzFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error

	// Update number of workers
	if cmd.Flags().Changed("workers") {
		projectConfig.Fuzzing.Workers, err = cmd.Flags().GetInt("workers")
		if err != nil {
			return err
		}
	}

	// Update timeout
	if cmd.Flags().Changed("timeout") {
		projectConfig.Fuzzing.Timeout, err = cmd.Flags().GetInt("timeout")
		if err != nil {
			return err
		}
	}

	// Update test limit
	if cmd.Flags().Changed("test-limit") {
		projectConfig.Fuzzing.TestLimit, err = cmd.Flags().GetUint64("test-limit")
		if err != nil {
			return err
		}
	}

	// Update master seed
	if cmd.Flags().Changed("seed") {
		seed, err := cmd.Flags().GetString("seed")
		if err != nil {
			return err
		}
		if _, err = rng.ParseSeedHex(seed); err != nil {
			return err
		}
		projectConfig.Fuzzing.MasterSeed = seed
	}

	// Update maximum input length
	if cmd.Flags().Changed("max-input") {
		projectConfig.Fuzzing.MaxInputLength, err = cmd.Flags().GetInt("max-input")
		if err != nil {
			return err
		}
	}

	// Update stop on finding
	if cmd.Flags().Changed("stop-on-finding") {
		projectConfig.Fuzzing.StopOnFinding, err = cmd.Flags().GetBool("stop-on-finding")
		if err != nil {
			return err
		}
	}

	// Update output directory
	if cmd.Flags().Changed("output-dir") {
		projectConfig.Fuzzing.OutputDirectory, err = cmd.Flags().GetString("output-dir")
		if err != nil {
			return err
		}
	}
	return nil
}
