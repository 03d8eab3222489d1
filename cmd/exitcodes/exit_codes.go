package exitcodes

const (
	// ================================
	// Platform-universal exit codes
	// ================================

	// ExitCodeSuccess indicates no errors or findings occurred.
	ExitCodeSuccess = 0

	// ExitCodeGeneralError indicates some type of general error occurred.
	ExitCodeGeneralError = 1

	// ================================
	// Application-specific exit codes
	// ================================
	// Note: Despite not being standardized, exit codes 2-5 are often used for common use cases, so we avoid them.

	// ExitCodeFuzzerError indicates that a fuzzing campaign or replay failed to run to completion. The error has
	// already been logged.
	ExitCodeFuzzerError = 6

	// ExitCodeFindingsRecorded indicates the campaign or replay recorded at least one finding.
	ExitCodeFindingsRecorded = 7

	// ExitCodeHandledError indicates an error which was already reported to the user, such as an invalid
	// configuration, so it should not be printed again.
	ExitCodeHandledError = 8
)

// IsReported indicates whether errors exiting with exitCode have already been reported to the user.
func IsReported(exitCode int) bool {
	return exitCode == ExitCodeFuzzerError || exitCode == ExitCodeFindingsRecorded || exitCode == ExitCodeHandledError
}
