package cmd

import (
	"os"

	"github.com/crytic/svmfuzz/version"
	"github.com/spf13/cobra"
)

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and build information",
	Long: `Print the release version, the commit the binary was built from, and the Go version used to compile it.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.GetInfo().Render(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
