package cmd

import (
	"github.com/spf13/cobra"
)

// addReplayFlags adds the various flags for the replay command
func addReplayFlags() error {
	// Prevent alphabetical sorting of usage message
	replayCmd.Flags().SortFlags = false

	// Config file
	replayCmd.Flags().String("config", "", "path to config file")

	// Fuzz test
	replayCmd.Flags().String("test", "", "name of the registered fuzz test to replay")

	// Iteration seed
	replayCmd.Flags().String("seed", "", "hex-encoded iteration seed recorded with a finding")

	if err := replayCmd.MarkFlagRequired("seed"); err != nil {
		return err
	}
	return replayCmd.RegisterFlagCompletionFunc("test", completeFuzzTestNames)
}

// getReplaySeed returns the value of the --seed flag.
func getReplaySeed(cmd *cobra.Command) (string, error) {
	return cmd.Flags().GetString("seed")
}
