package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crytic/svmfuzz/fuzzing/config"
	"github.com/crytic/svmfuzz/utils/testutils"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// configCommand returns a command carrying the --config and --test flags, as fuzz and replay do.
func configCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("test", "", "")
	return cmd
}

// TestInitWritesReadableConfig runs init in a scratch directory and reads the result back the way fuzz does.
func TestInitWritesReadableConfig(t *testing.T) {
	testutils.ExecuteInDirectory(t, t.TempDir(), func() {
		rootCmd.SetArgs([]string{"init", "--force", "--output-dir", "campaign"})
		require.NoError(t, rootCmd.Execute())

		projectConfig, err := config.ReadProjectConfigFromFile(DefaultProjectConfigFilename)
		require.NoError(t, err)
		assert.Equal(t, "campaign", projectConfig.Fuzzing.OutputDirectory)
		assert.Equal(t, "statistics.json", projectConfig.Fuzzing.Statistics.JSONFile)

		// Without --config the file in the working directory is picked up
		projectConfig, err = readProjectConfig(configCommand())
		require.NoError(t, err)
		assert.Equal(t, "campaign", projectConfig.Fuzzing.OutputDirectory)
	})
}

// TestReadProjectConfigFallbacks checks the default configuration and the missing --config file error.
func TestReadProjectConfigFallbacks(t *testing.T) {
	directory := t.TempDir()
	testutils.ExecuteInDirectory(t, directory, func() {
		projectConfig, err := readProjectConfig(configCommand())
		require.NoError(t, err)
		assert.Equal(t, config.GetDefaultProjectConfig(), projectConfig)

		cmd := configCommand()
		require.NoError(t, cmd.Flags().Set("config", filepath.Join(directory, "missing.json")))
		_, err = readProjectConfig(cmd)
		assert.Error(t, err)
	})
}

// TestLookupFuzzTest checks that an unknown test name is rejected.
func TestLookupFuzzTest(t *testing.T) {
	cmd := configCommand()
	require.NoError(t, cmd.Flags().Set("test", "does-not-exist"))
	_, err := lookupFuzzTest(cmd)
	assert.Error(t, err)
}

// TestConfirmOverwrite checks the answers accepted by the overwrite prompt.
func TestConfirmOverwrite(t *testing.T) {
	for answer, expected := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "": false} {
		var out bytes.Buffer
		overwrite, err := confirmOverwrite(strings.NewReader(answer), &out, "svmfuzz.json")
		require.NoError(t, err)
		assert.Equal(t, expected, overwrite, "answer %q", answer)
		assert.Contains(t, out.String(), "svmfuzz.json already exists")
	}
}
