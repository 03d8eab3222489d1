package main

import (
	"fmt"
	"os"

	"github.com/crytic/svmfuzz/cmd"
	"github.com/crytic/svmfuzz/cmd/exitcodes"

	// Fuzz tests register themselves with the fuzzer when imported
	_ "github.com/crytic/svmfuzz/harness/vault"
)

func main() {
	// Run our root CLI command, which contains all underlying command logic and will handle parsing/invocation.
	err := cmd.Execute()

	// Obtain the actual error and exit code from the error, if any.
	var exitCode int
	err, exitCode = exitcodes.GetInnerErrorAndExitCode(err)

	// If we have an error that was not reported yet, print it.
	if err != nil && !exitcodes.IsReported(exitCode) {
		fmt.Fprintln(os.Stderr, err)
	}

	// If we have a non-success exit code, exit with it.
	if exitCode != exitcodes.ExitCodeSuccess {
		os.Exit(exitCode)
	}
}
