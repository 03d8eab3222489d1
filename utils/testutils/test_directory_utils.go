package testutils

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// ExecuteInDirectory executes the given method with the working directory set to testDirectory, then restores the
// previous working directory. Tests use it so generated artifacts such as config files and reports never end up in
// the source tree.
func ExecuteInDirectory(t *testing.T, testDirectory string, method func()) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	require.NoError(t, os.Chdir(testDirectory))
	defer func() {
		require.NoError(t, os.Chdir(cwd))
	}()

	method()
}
