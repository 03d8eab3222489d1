package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfigIsValid checks the defaults pass validation and survive a write and read.
func TestDefaultConfigIsValid(t *testing.T) {
	projectConfig := GetDefaultProjectConfig()
	require.NoError(t, projectConfig.Validate())

	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, projectConfig.WriteToFile(path))
	read, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, projectConfig, read)
}

// TestReadConfigKeepsDefaults checks that fields missing from a file keep their defaults.
func TestReadConfigKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"configVersion": "1.2.0", "fuzzing": {"workers": 3}}`), 0644))

	read, err := ReadProjectConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, read.Fuzzing.Workers)
	assert.Equal(t, GetDefaultProjectConfig().Fuzzing.MaxInputLength, read.Fuzzing.MaxInputLength)
	assert.NoError(t, read.Validate())
}

// TestValidateRejectsInvalidConfigs checks each validation rule.
func TestValidateRejectsInvalidConfigs(t *testing.T) {
	testCases := map[string]func(c *ProjectConfig){
		"unsupported version": func(c *ProjectConfig) { c.ConfigVersion = "2.0.0" },
		"malformed version":   func(c *ProjectConfig) { c.ConfigVersion = "one" },
		"no workers":          func(c *ProjectConfig) { c.Fuzzing.Workers = 0 },
		"no input":            func(c *ProjectConfig) { c.Fuzzing.MaxInputLength = 0 },
		"negative flows":      func(c *ProjectConfig) { c.Fuzzing.FlowCallsPerIteration = -1 },
		"no flush interval":   func(c *ProjectConfig) { c.Fuzzing.StatsFlushInterval = 0 },
		"short seed":          func(c *ProjectConfig) { c.Fuzzing.MasterSeed = "0x0102" },
		"unknown flavor":      func(c *ProjectConfig) { c.Fuzzing.Accounts.DefaultMaterializer = "nft" },
		"report without dir":  func(c *ProjectConfig) { c.Fuzzing.Statistics.JSONFile = "stats.json" },
		"no compute":          func(c *ProjectConfig) { c.Fuzzing.TestChain.ComputeUnitLimit = 0 },
	}
	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			projectConfig := GetDefaultProjectConfig()
			mutate(projectConfig)
			assert.Error(t, projectConfig.Validate())
		})
	}
}
