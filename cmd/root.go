package cmd

import (
	"os"
	"runtime/pprof"

	"github.com/crytic/svmfuzz/logging"
	"github.com/crytic/svmfuzz/version"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cmdLogger is the logger used by the cmd package.
var cmdLogger = logging.NewLogger(zerolog.InfoLevel).NewSubLogger(logging.SERVICE_KEY, logging.CLI_SERVICE)

// cpuProfile is the file a CPU profile is being written to, if --cpu-profile was provided.
var cpuProfile *os.File

var rootCmd = &cobra.Command{
	Use:               "svmfuzz",
	Short:             "A fuzzing harness for Solana-style programs",
	Long:              "svmfuzz runs deterministic, seed-reproducible fuzzing campaigns against programs executing on an in-memory ledger",
	Version:           version.GetInfo().Short(),
	PersistentPreRunE: startProfiling,
	PersistentPostRun: stopProfiling,
}

func init() {
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile of the command to the given file")
}

// startProfiling starts CPU profiling if --cpu-profile was provided.
func startProfiling(cmd *cobra.Command, args []string) error {
	path, err := cmd.Flags().GetString("cpu-profile")
	if err != nil || path == "" {
		return err
	}
	cpuProfile, err = os.Create(path)
	if err != nil {
		return err
	}
	return pprof.StartCPUProfile(cpuProfile)
}

// stopProfiling stops CPU profiling started by startProfiling.
func stopProfiling(cmd *cobra.Command, args []string) {
	if cpuProfile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = cpuProfile.Close()
	cpuProfile = nil
}

// Execute runs the root command.
func Execute() error {
	cmdLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, true)
	return rootCmd.Execute()
}
