package cmd

import "github.com/crytic/svmfuzz/fuzzing/config"

// DefaultProjectConfigFilename describes the default config filename for a given project folder.
const DefaultProjectConfigFilename = config.DefaultConfigFile

// logHistoryCapacity is the number of log lines retained to be echoed if a campaign fails to start.
const logHistoryCapacity = 5000
