package encm

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure categories of an invocation.
// Callers distinguish them with errors.Is():
//
//	if errors.Is(err, encm.ErrFetch) {
//	    // source API failed, nothing was loaded
//	}
var (
	// ErrInvalidConfig indicates the configuration failed validation
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrFetch indicates the source API could not be fetched or decoded
	ErrFetch = errors.New("fetch failed")

	// ErrLoad indicates the warehouse rejected or failed the append
	ErrLoad = errors.New("load failed")

	// ErrUsage indicates invalid command-line arguments or flags
	ErrUsage = errors.New("usage error")
)

// ExitError carries an exit status already decided and reported by an
// invocation.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCodeForError returns the exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, ErrFetch):
		return ExitFetchFailed
	case errors.Is(err, ErrLoad):
		return ExitLoadFailed
	}

	return ExitGeneralError
}
