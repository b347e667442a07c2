package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/nukri060/riva/packages/transport"
	"github.com/nukri060/riva/packages/weburl"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "riva [url]",
	Short: "A small text browser with pooled connections.",
	Long: `riva fetches pages over hand-framed HTTP/1.1 and HTTP/2,
keeps connections warm in an LRU pool and renders the result as
readable terminal text.

A bare URL argument is shorthand for "riva open <url>".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return openCommand(cmd, args)
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps error classes to distinct exit codes so scripts can
// tell a bad URL from an unreachable host.
func exitCodeFor(err error) int {
	var cerr *transport.ConnectError
	switch {
	case errors.Is(err, weburl.ErrInvalidFormat),
		errors.Is(err, weburl.ErrInvalidScheme),
		errors.Is(err, weburl.ErrInvalidPort):
		return ExitParseError
	case errors.As(err, &cerr):
		return ExitNetworkError
	default:
		return ExitFetchError
	}
}

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	addOpenFlags(rootCmd)
}
