package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/crytic/svmfuzz/cmd/exitcodes"
	"github.com/crytic/svmfuzz/fuzzing"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/crytic/svmfuzz/logging/colors"
	"github.com/spf13/cobra"
)

// replayCmd represents the command provider for replaying a single iteration
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replays one iteration from a recorded seed",
	Long: `Replays exactly one iteration of a fuzz test from the iteration seed recorded with a finding, on a fresh
ledger, and reports whether the finding reproduces.`,
	Args:              cmdValidateNoArgs,
	ValidArgsFunction: cmdValidFlagArgs,
	RunE:              cmdRunReplay,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func init() {
	// Add all the flags allowed for the replay command
	err := addReplayFlags()
	if err != nil {
		cmdLogger.Panic("Failed to initialize the replay command", err)
	}

	// Add the replay command and its associated flags to the root command
	rootCmd.AddCommand(replayCmd)
}

// cmdRunReplay executes the CLI replay command. The project configuration must match the one the seed was recorded
// with, since the input length drawn from the seed depends on it.
func cmdRunReplay(cmd *cobra.Command, args []string) error {
	projectConfig, err := readProjectConfig(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the replay command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	seedHex, err := getReplaySeed(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the replay command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}
	seed, err := rng.ParseSeedHex(seedHex)
	if err != nil {
		cmdLogger.Error("Failed to run the replay command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	test, err := lookupFuzzTest(cmd)
	if err != nil {
		cmdLogger.Error("Failed to run the replay command", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeHandledError)
	}

	// Replays never persist anything
	projectConfig.Fuzzing.OutputDirectory = ""
	projectConfig.Fuzzing.Statistics.JSONFile = ""

	_, closeLogs, err := configureLogging(projectConfig.Logging)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	statistics, err := fuzzer.Replay(ctx, seed)
	if err != nil {
		cmdLogger.Error("Replay failed", err)
		return exitcodes.NewErrorWithExitCode(err, exitcodes.ExitCodeFuzzerError)
	}

	var tables strings.Builder
	statistics.RenderTables(&tables)
	cmdLogger.Info("Replay statistics:\n", tables.String())

	if findings := fuzzer.Findings(); len(findings) > 0 {
		cmdLogger.Info(colors.RedBold, "The finding reproduced", colors.Reset, " (", findings[0].Category, ": ", findings[0].Key, ")")
		return exitcodes.NewErrorWithExitCode(nil, exitcodes.ExitCodeFindingsRecorded)
	}
	cmdLogger.Info(colors.GreenBold, "No finding was recorded", colors.Reset)
	return nil
}
