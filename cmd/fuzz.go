package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/crytic/svmfuzz/cmd/exitcodes"
	"github.com/crytic/svmfuzz/fuzzing"
	"github.com/crytic/svmfuzz/logging/colors"
	"github.com/spf13/cobra"
)

// fuzzCmd represents the command provider for fuzzing
var fuzzCmd = &cobra.Command{
	Use:               "fuzz",
	Short:             "Starts a fuzzing campaign",
	Long:              `Starts a fuzzing campaign over a registered fuzz test`,
	Args:              cmdValidateNoArgs,
	ValidArgsFunction: cmdValidFlagArgs,
	RunE:              cmdRunFuzz,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the fuzz command
	err := addFuzzFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the fuzz command", err)
	}

	// Add the fuzz command and its associated flags to the root command
	rootCmd.AddCommand(fuzzCmd)
}

// cmdRunFuzz executes the CLI fuzz command. The project configuration is resolved by readProjectConfig and
// overridden by any flags. Interrupts stop the campaign gracefully: workers finish their current iteration and the
// statistics are still reported.
func cmdRunFuzz(cmd *cobra.Command, args []string) error {
	projectConfig, err := readProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the fuzz command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	// Update the project configuration given whatever flags were set using the CLI
	err = updateProjectConfigWithFuzzFlags(cmd, projectConfig)
	if err != nil {
		cmdLogger.Error("Failed to run the fuzz command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	test, err := lookupFuzzTest(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the fuzz command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	history, closeLogs, err := configureLogging(projectConfig.Logging)
	if err != nil {
		cmdLogger.Error("Failed to configure logging", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	defer closeLogs()

	fuzzer, err := fuzzing.NewFuzzer(*projectConfig, test)
	if err != nil {
		cmdLogger.Error("Failed to create the fuzzer", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	// Stop our fuzzing on keyboard interrupts
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = fuzzer.Start(ctx); err != nil {
		cmdLogger.Error("Fuzzing campaign failed", err)
		writeLogHistory(history, projectConfig.Fuzzing.OutputDirectory)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeFuzzerError)
	}

	// If we have findings, we'll want to return a special exit code
	if findings := fuzzer.Findings(); len(findings) > 0 {
		cmdLogger.Info(colors.RedBold, len(findings), " findings", colors.Reset, " recorded. Replay one with: svmfuzz replay --test ", test.Name, " --seed ", findings[0].SeedHex)
		return exitcodes.NewErrorWithExitCode(nil, exitcodes.ExitCodeFindingsRecorded)
	}
	return nil
}
