package config

import (
	"github.com/crytic/svmfuzz/chain/config"
	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/rs/zerolog"
)

// CurrentConfigVersion is the schema version written by GetDefaultProjectConfig.
const CurrentConfigVersion = "1.0.0"

// SupportedConfigVersions is the semver constraint a configuration's version must satisfy.
const SupportedConfigVersions = ">= 1.0.0, < 2.0.0"

// DefaultConfigFile is the project configuration file looked up in the working directory.
const DefaultConfigFile = "svmfuzz.json"

// GetDefaultProjectConfig obtains a default configuration for a project.
func GetDefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		ConfigVersion: CurrentConfigVersion,
		Fuzzing: FuzzingConfig{
			Workers:               10,
			Timeout:               0,
			TestLimit:             0,
			MasterSeed:            "",
			MaxInputLength:        1 << 16,
			FlowCallsPerIteration: 100,
			StopOnFinding:         false,
			OutputDirectory:       "",
			StatsFlushInterval:    100,
			Accounts: AccountsConfig{
				DefaultLamports:     accounts.DefaultLamports,
				DefaultMaterializer: accounts.SystemMaterializerName,
			},
			Statistics: StatisticsConfig{
				Enabled:    true,
				JSONFile:   "",
				ShowTable:  true,
				Regression: false,
			},
			TestChain: *config.DefaultTestChainConfig(),
		},
		Logging: LoggingConfig{
			Level:        zerolog.InfoLevel,
			LogDirectory: "",
			NoColor:      false,
		},
	}
}
