package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crytic/svmfuzz/fuzzing"
	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/crytic/svmfuzz/logging"
	"github.com/crytic/svmfuzz/logging/colors"
	"github.com/crytic/svmfuzz/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cmdValidFlagArgs returns the flags of cmd which have not been used yet, for dynamic completion.
func cmdValidFlagArgs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var unusedFlags []string
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		if !flag.Changed {
			// The "--" prefix marks these as flags rather than positional arguments
			unusedFlags = append(unusedFlags, "--"+flag.Name)
		}
	})
	return unusedFlags, cobra.ShellCompDirectiveNoFileComp
}

// cmdValidateNoArgs makes sure that no positional arguments were provided to cmd.
func cmdValidateNoArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		err = fmt.Errorf("%s does not accept any positional arguments, only flags and their associated values", cmd.Name())
		cmdLogger.Error("Failed to validate args to the "+cmd.Name()+" command", err)
		return err
	}
	return nil
}

// completeFuzzTestNames completes the --test flag with the registered fuzz tests.
func completeFuzzTestNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return fuzzing.FuzzTestNames(), cobra.ShellCompDirectiveNoFileComp
}

// readProjectConfig resolves the project configuration for cmd:
// #1: If --config was used, the file must exist and is read.
// #2: Otherwise, svmfuzz.json in the working directory is read if it exists.
// #3: Otherwise, the default project configuration is used.
func readProjectConfig(cmd *cobra.Command) (*config.ProjectConfig, error) {
	configFlagUsed := cmd.Flags().Changed("config")
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	if !configFlagUsed {
		workingDirectory, err := os.Getwd()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		configPath = filepath.Join(workingDirectory, DefaultProjectConfigFilename)
	}

	_, existenceError := os.Stat(configPath)
	switch {
	case existenceError == nil:
		cmdLogger.Info("Reading the configuration file at: ", colors.Bold, configPath, colors.Reset)
		return config.ReadProjectConfigFromFile(configPath)
	case configFlagUsed:
		return nil, errors.Wrapf(existenceError, "could not find the configuration file at %s", configPath)
	default:
		cmdLogger.Warn("Unable to find the config file at ", configPath, ", will use the default project configuration instead")
		return config.GetDefaultProjectConfig(), nil
	}
}

// lookupFuzzTest returns the fuzz test named by --test. If the flag was not used and exactly one test is
// registered, that test is returned.
func lookupFuzzTest(cmd *cobra.Command) (*fuzzing.FuzzTest, error) {
	name, err := cmd.Flags().GetString("test")
	if err != nil {
		return nil, err
	}

	names := fuzzing.FuzzTestNames()
	if name == "" {
		if len(names) != 1 {
			return nil, errors.Errorf("a fuzz test must be selected with --test (available: %s)", strings.Join(names, ", "))
		}
		name = names[0]
	}

	test, err := fuzzing.GetFuzzTest(name)
	if err != nil {
		return nil, errors.Wrapf(err, "available fuzz tests: %s", strings.Join(names, ", "))
	}
	return test, nil
}

// configureLogging replaces the global logger with one configured by loggingConfig. Console output goes to stdout,
// structured output goes to a file in the log directory if one is set, and recent lines are retained in the returned
// history. The returned function closes any log file.
func configureLogging(loggingConfig config.LoggingConfig) (*logging.LogBufferWriter, func(), error) {
	logging.GlobalLogger = logging.NewLogger(loggingConfig.Level)
	logging.GlobalLogger.AddWriter(os.Stdout, logging.UNSTRUCTURED, !loggingConfig.NoColor)

	history := logging.NewLogBufferWriter(logHistoryCapacity)
	logging.GlobalLogger.AddWriter(history, logging.UNSTRUCTURED, false)

	if loggingConfig.LogDirectory == "" {
		return history, func() {}, nil
	}
	file, err := utils.CreateFile(loggingConfig.LogDirectory, "log-"+time.Now().Format("20060102-150405")+".json")
	if err != nil {
		return nil, nil, err
	}
	logging.GlobalLogger.AddWriter(file, logging.STRUCTURED, false)
	return history, func() {
		logging.GlobalLogger.RemoveWriter(file, logging.STRUCTURED, false)
		_ = file.Close()
	}, nil
}

// writeLogHistory saves the retained log history to the output directory after a campaign failed, so the lines
// leading to the failure survive a scrolled-away console.
func writeLogHistory(history *logging.LogBufferWriter, outputDirectory string) {
	if history == nil || outputDirectory == "" || history.Len() == 0 {
		return
	}

	var sb strings.Builder
	for _, entry := range history.Entries(0) {
		sb.WriteString("[" + entry.Timestamp.Format("15:04:05") + "] " + entry.Message)
		if !strings.HasSuffix(entry.Message, "\n") {
			sb.WriteString("\n")
		}
	}

	path := filepath.Join(outputDirectory, "error.log")
	if err := utils.MakeDirectory(outputDirectory); err != nil {
		cmdLogger.Error("Failed to save the log history", err)
		return
	}
	if err := utils.WriteFileAtomic(path, []byte(sb.String()), 0644); err != nil {
		cmdLogger.Error("Failed to save the log history", err)
		return
	}
	cmdLogger.Info("Log history saved to ", colors.Bold, path, colors.Reset)
}
