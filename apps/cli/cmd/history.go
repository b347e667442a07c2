package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nukri060/riva/packages/core/config"
	"github.com/nukri060/riva/packages/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the visit log",
	Long: `Show recent visits, newest first.

Examples:
  riva history
  riva history --limit 50
  riva history --clear`,
	Args: cobra.NoArgs,
	RunE: historyCommand,
}

var (
	historyLimitFlag int
	historyClearFlag bool
)

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if noColorFlag || cfg.GetNoColor() {
		color.NoColor = true
	}

	store, err := history.Open(historyPath(cfg))
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	if historyClearFlag {
		n, err := store.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d entries\n", n)
		return nil
	}

	entries, err := store.Recent(ctx, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No visits recorded")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	for _, e := range entries {
		status := green(fmt.Sprintf("%3d", e.Status))
		switch {
		case e.Status >= 500:
			status = red(fmt.Sprintf("%3d", e.Status))
		case e.Status >= 400:
			status = yellow(fmt.Sprintf("%3d", e.Status))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-8s  %6dms  %s\n",
			e.FetchedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			e.Protocol,
			e.Duration.Milliseconds(),
			cyan(e.URL),
		)
	}
	return nil
}

func init() {
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of entries to show")
	historyCmd.Flags().BoolVar(&historyClearFlag, "clear", false, "Delete the whole visit log")
	historyCmd.Flags().StringVar(&configFlag, "config", getEnvString("RIVA_CONFIG", ""), "Path to config file (env: RIVA_CONFIG)")
	historyCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("RIVA_NO_COLOR", false), "Disable colored output (env: RIVA_NO_COLOR)")
}
