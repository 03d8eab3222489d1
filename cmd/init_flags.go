package cmd

import (
	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/spf13/cobra"
)

// addInitFlags adds the various flags for the init command
func addInitFlags() error {
	// Output path for configuration
	initCmd.Flags().String("out", "", "output path for the new project configuration file")

	// Output directory written into the configuration
	initCmd.Flags().String("output-dir", "", "directory findings and statistics are written to")

	// Whether to overwrite an existing file without asking
	initCmd.Flags().Bool("force", false, "overwrite an existing configuration file without asking")
	return nil
}

// updateProjectConfigWithInitFlags will update the given projectConfig with any CLI arguments that were provided to the init command
func updateProjectConfigWithInitFlags(cmd *cobra.Command, projectConfig *config.ProjectConfig) error {
	var err error
	if cmd.Flags().Changed("output-dir") {
		projectConfig.Fuzzing.OutputDirectory, err = cmd.Flags().GetString("output-dir")
		if err != nil {
			return err
		}
		// A persisted campaign also gets a persisted report
		if projectConfig.Fuzzing.OutputDirectory != "" && projectConfig.Fuzzing.Statistics.JSONFile == "" {
			projectConfig.Fuzzing.Statistics.JSONFile = "statistics.json"
		}
	}
	return nil
}
