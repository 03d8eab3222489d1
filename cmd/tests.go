package cmd

import (
	"os"

	"github.com/crytic/svmfuzz/fuzzing"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// testsCmd lists the registered fuzz tests
var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Lists the registered fuzz tests",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Test", "Description"})
		for _, name := range fuzzing.FuzzTestNames() {
			test, err := fuzzing.GetFuzzTest(name)
			if err != nil {
				continue
			}
			t.AppendRow(table.Row{test.Name, test.Description})
		}
		t.Render()
	},
}

func init() {
	rootCmd.AddCommand(testsCmd)
}
