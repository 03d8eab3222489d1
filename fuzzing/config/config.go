package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/Masterminds/semver"
	"github.com/crytic/svmfuzz/chain/config"
	"github.com/crytic/svmfuzz/fuzzing/accounts"
	"github.com/crytic/svmfuzz/fuzzing/rng"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ProjectConfig describes the configuration of a fuzzing project.
type ProjectConfig struct {
	// ConfigVersion describes the schema version the configuration was written with.
	ConfigVersion string `json:"configVersion"`

	// Fuzzing describes the configuration used in fuzzing campaigns.
	Fuzzing FuzzingConfig `json:"fuzzing"`

	// Logging describes the configuration used for logging to file and console
	Logging LoggingConfig `json:"logging"`
}

// FuzzingConfig describes the configuration options used by the fuzzing.Fuzzer.
type FuzzingConfig struct {
	// Workers describes the amount of threads to use in fuzzing campaigns.
	Workers int `json:"workers"`

	// Timeout describes a time in seconds for which the fuzzing operation should run. Providing negative or zero value
	// will result in no timeout.
	Timeout int `json:"timeout"`

	// TestLimit describes a threshold for the number of iterations to run, after which it will exit. A zero value
	// indicates the test limit should not be enforced.
	TestLimit uint64 `json:"testLimit"`

	// MasterSeed is the hex-encoded 32-byte seed every worker seed is derived from. If empty, a seed is read from
	// the operating system's entropy source and reported so the campaign can be reproduced.
	MasterSeed string `json:"masterSeed"`

	// MaxInputLength describes the maximum length of the fuzz input drawn for one iteration.
	MaxInputLength int `json:"maxInputLength"`

	// FlowCallsPerIteration describes how many flows are drawn per iteration by flow sets selecting flows at random,
	// unless the flow set specifies its own count.
	FlowCallsPerIteration int `json:"flowCallsPerIteration"`

	// StopOnFinding describes whether the fuzzing.Fuzzer should stop after recording the first finding.
	StopOnFinding bool `json:"stopOnFinding"`

	// OutputDirectory describes the directory the finding store and statistics report are written to. It is empty
	// by default, in which case findings are only logged and kept in memory and do not survive the process. Set it
	// for findings to be recorded durably.
	OutputDirectory string `json:"outputDirectory"`

	// StatsFlushInterval describes how many iterations a worker runs between submissions of its statistics.
	StatsFlushInterval uint64 `json:"statsFlushInterval"`

	// Accounts describes how account identities are materialized.
	Accounts AccountsConfig `json:"accounts"`

	// Statistics describes the statistics reported at the end of a campaign.
	Statistics StatisticsConfig `json:"statistics"`

	// TestChain represents the chain.TestChain config to use when initializing a chain.
	TestChain config.TestChainConfig `json:"chainConfig"`
}

// AccountsConfig describes the configuration options used by account identity stores.
type AccountsConfig struct {
	// DefaultLamports describes the balance of accounts materialized by the system materializer. A zero value uses
	// the materializer's default.
	DefaultLamports uint64 `json:"defaultLamports"`

	// DefaultMaterializer names the materializer used by identity stores which do not specify one.
	DefaultMaterializer string `json:"defaultMaterializer"`
}

// StatisticsConfig describes the configuration options used for statistics reporting.
type StatisticsConfig struct {
	// Enabled describes whether statistics are collected and reported.
	Enabled bool `json:"enabled"`

	// JSONFile describes the file name, relative to the output directory, the JSON report is written to. If empty,
	// no report file is written.
	JSONFile string `json:"jsonFile"`

	// ShowTable describes whether statistics tables are printed to the console when the campaign ends.
	ShowTable bool `json:"showTable"`

	// Regression describes whether account data hashes are recorded for regression comparison between runs.
	Regression bool `json:"regression"`
}

// LoggingConfig describes the configuration options used for logging
type LoggingConfig struct {
	// Level describes whether logs of certain severity levels (eg info, warning, etc.) will be emitted or discarded.
	// Increasing level values represent more severe logs
	Level zerolog.Level `json:"level"`

	// LogDirectory describes what directory log files should be outputted in. LogDirectory being a non-empty string is
	// equivalent to enabling file logging.
	LogDirectory string `json:"logDirectory"`

	// NoColor indicates whether log messages should be displayed with colored formatting.
	NoColor bool `json:"noColor"`
}

// ReadProjectConfigFromFile reads a JSON-serialized ProjectConfig from a provided file path. Fields absent from the
// file keep their default values.
// Returns the ProjectConfig if it succeeds, or an error if one occurs.
func ReadProjectConfigFromFile(path string) (*ProjectConfig, error) {
	// Read our project configuration file data
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// Parse the project configuration over the defaults
	projectConfig := GetDefaultProjectConfig()
	err = json.Unmarshal(b, projectConfig)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return projectConfig, nil
}

// WriteToFile writes the ProjectConfig to a provided file path in a JSON-serialized format.
// Returns an error if one occurs.
func (p *ProjectConfig) WriteToFile(path string) error {
	// Serialize the configuration
	b, err := json.MarshalIndent(p, "", "\t")
	if err != nil {
		return errors.WithStack(err)
	}

	// Save it to the provided output path and return the result
	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Validate validates that the ProjectConfig meets certain requirements.
// Returns an error if one occurs.
func (p *ProjectConfig) Validate() error {
	// Verify the configuration was written for a schema we understand
	version, err := semver.NewVersion(p.ConfigVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid config version %q", p.ConfigVersion)
	}
	constraint, err := semver.NewConstraint(SupportedConfigVersions)
	if err != nil {
		return errors.WithStack(err)
	}
	if !constraint.Check(version) {
		return errors.Errorf("config version %s is not supported (expected %s)", version, SupportedConfigVersions)
	}

	// Verify the worker count is a positive number.
	if p.Fuzzing.Workers <= 0 {
		return errors.New("worker count must be a positive number")
	}

	// Verify the input length is a positive number.
	if p.Fuzzing.MaxInputLength <= 0 {
		return errors.New("max input length must be a positive number")
	}

	if p.Fuzzing.FlowCallsPerIteration < 0 {
		return errors.New("flow calls per iteration cannot be negative")
	}

	if p.Fuzzing.StatsFlushInterval == 0 {
		return errors.New("statistics flush interval must be a positive number")
	}

	// Verify the master seed, if one is given
	if p.Fuzzing.MasterSeed != "" {
		if _, err = rng.ParseSeedHex(p.Fuzzing.MasterSeed); err != nil {
			return errors.Wrap(err, "invalid master seed")
		}
	}

	// Verify the default materializer exists
	if _, err = accounts.MaterializerByName(p.Fuzzing.Accounts.DefaultMaterializer, p.Fuzzing.Accounts.DefaultLamports); err != nil {
		return err
	}

	// Verify the statistics report has somewhere to go
	if p.Fuzzing.Statistics.Enabled && p.Fuzzing.Statistics.JSONFile != "" && p.Fuzzing.OutputDirectory == "" {
		return errors.New("a statistics report file requires an output directory")
	}

	return p.Fuzzing.TestChain.Validate()
}

// TimeoutDuration returns the campaign timeout, or zero if none is set.
func (c *FuzzingConfig) TimeoutDuration() time.Duration {
	if c.Timeout <= 0 {
		return 0
	}
	return time.Duration(c.Timeout) * time.Second
}
