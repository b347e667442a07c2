package cmd

// Exit codes for the riva CLI
const (
	// ExitSuccess indicates the page was fetched and rendered
	ExitSuccess = 0

	// ExitFetchError indicates the fetch failed after connecting
	ExitFetchError = 1

	// ExitParseError indicates the URL could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a connection could not be established
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
