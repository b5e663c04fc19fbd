package encm

import "time"

// Exit codes returned by an invocation.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error
//   - 3+: Application-specific errors
const (
	ExitSuccess      = 0  // Batch fetched and appended
	ExitGeneralError = 1  // Unknown or unclassified error
	ExitUsageError   = 2  // CLI usage error (unknown flag, bad args)
	ExitPanic        = 3  // Internal panic
	ExitConfigError  = 10 // Invalid configuration
	ExitFetchFailed  = 20 // Source API unreachable, non-2xx or undecodable
	ExitLoadFailed   = 21 // Warehouse open, load job or metadata failed
)

const (
	// DefaultFacilitiesURL is the Carris Metropolitana ENCM facilities dataset
	DefaultFacilitiesURL = "https://api.carrismetropolitana.pt/datasets/facilities/encm"

	// DefaultHTTPTimeout bounds the single GET against the source API
	DefaultHTTPTimeout = 30 * time.Second

	// CaptureTimeLayout formats the capture stamp as YY/MM/DD HH:MM:SS
	CaptureTimeLayout = "06/01/02 15:04:05"

	// CaptureTimeColumn is the column the fetcher adds to every batch
	CaptureTimeColumn = "time"

	// JobIDPrefix prefixes every warehouse load job id
	JobIDPrefix = "encm_"
)
