// Package cmd implements the riva CLI commands using Cobra.
//
// Available commands:
//   - open: Fetch a URL and render it as terminal text
//   - history: Show or clear the visit log
//   - version: Show riva version information
//
// A bare URL argument on the root command is shorthand for open. Flags
// fall back to RIVA_* environment variables and the config file layers
// underneath both.
package cmd
