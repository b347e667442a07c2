package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/nukri060/riva/packages/browser"
	"github.com/nukri060/riva/packages/cache"
	"github.com/nukri060/riva/packages/core/config"
	"github.com/nukri060/riva/packages/history"
	"github.com/nukri060/riva/packages/metrics"
	"github.com/nukri060/riva/packages/render"
	"github.com/nukri060/riva/packages/weburl"
)

var openCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Fetch a URL and render it as terminal text",
	Long: `Fetch a URL and render its content.

Examples:
  riva open https://example.com
  riva open view-source:https://example.com
  riva open https://example.com --links
  riva open https://api.example.com/user --json-path name
  riva open file:///tmp/page.html --watch
  riva open https://example.com --protocol http/2 --stats`,
	Args: cobra.ExactArgs(1),
	RunE: openCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	rawFlag       bool
	linksFlag     bool
	jsonPathFlag  string
	statsFlag     bool
	watchFlag     bool
	protocolFlag  string
	timeoutFlag   string
	userAgentFlag string
	maxLengthFlag int
	noColorFlag   bool
	verboseFlag   bool
	noHistoryFlag bool
	configFlag    string
)

// addOpenFlags binds the open flag set; the root command shares it so a
// bare URL argument behaves exactly like open.
func addOpenFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&rawFlag, "raw", false, "Show the raw response instead of rendered text")
	cmd.Flags().BoolVar(&linksFlag, "links", false, "List the links found on the page")
	cmd.Flags().StringVar(&jsonPathFlag, "json-path", "", "Print the value at a JSON path in the body")
	cmd.Flags().BoolVar(&statsFlag, "stats", false, "Print cache and latency statistics after the fetch")
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Re-render a file URL when the file changes")
	cmd.Flags().StringVar(&protocolFlag, "protocol", getEnvString("RIVA_PROTOCOL", ""), "Protocol: auto, http/1.1 or http/2 (env: RIVA_PROTOCOL)")
	cmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("RIVA_TIMEOUT", ""), "Request timeout (e.g., 30s, 1m) (env: RIVA_TIMEOUT)")
	cmd.Flags().StringVar(&userAgentFlag, "user-agent", getEnvString("RIVA_USER_AGENT", ""), "User-Agent header override (env: RIVA_USER_AGENT)")
	cmd.Flags().IntVar(&maxLengthFlag, "max-length", getEnvInt("RIVA_MAX_LENGTH", 0), "Truncate rendered text to this many characters (env: RIVA_MAX_LENGTH)")
	cmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("RIVA_NO_COLOR", false), "Disable colored output (env: RIVA_NO_COLOR)")
	cmd.Flags().BoolVarP(&verboseFlag, "verbose", "v", getEnvBool("RIVA_VERBOSE", false), "Verbose output (env: RIVA_VERBOSE)")
	cmd.Flags().BoolVar(&noHistoryFlag, "no-history", getEnvBool("RIVA_NO_HISTORY", false), "Do not record this visit (env: RIVA_NO_HISTORY)")
	cmd.Flags().StringVar(&configFlag, "config", getEnvString("RIVA_CONFIG", ""), "Path to config file (env: RIVA_CONFIG)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func openCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig(cmd)
	if err != nil {
		return err
	}

	formatter := render.NewConsoleFormatter(
		render.WithWriter(cmd.OutOrStdout()),
		render.WithNoColor(cfg.GetNoColor()),
		render.WithVerbose(cfg.GetVerbose()),
		render.WithMaxLength(maxLengthFlag),
	)

	pool := cache.New(
		cache.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
		cache.WithMaxPoolSize(cfg.MaxPoolSize),
		cache.WithMetrics(cfg.GetEnableMetrics()),
	)
	defer pool.CloseAll()

	opts := []browser.Option{}
	recorder := metrics.NewRecorder()
	opts = append(opts, browser.WithRecorder(recorder))

	if cfg.GetEnableHistory() && !noHistoryFlag {
		store, err := history.Open(historyPath(cfg))
		if err != nil {
			// A broken visit log should not stop the fetch.
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: history disabled: %v\n", err)
		} else {
			defer store.Close()
			opts = append(opts, browser.WithHistory(store))
		}
	}

	b := browser.New(cfg, pool, opts...)

	target := args[0]
	if rawFlag && !strings.HasPrefix(target, "view-source:") {
		target = "view-source:" + target
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	display := func() error {
		fetchCtx := ctx
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout)*time.Second)
			defer cancel()
		}

		formatter.Loading(target)
		res, err := b.Fetch(fetchCtx, target)
		if err != nil {
			formatter.FormatError(err)
			return err
		}

		switch {
		// res.Protocol names the inner transport for view-source; the
		// URL scheme is what marks a verbatim fetch.
		case res.URL.Scheme == "view-source":
			formatter.ShowRaw(res.Body)
		case jsonPathFlag != "" && res.Response != nil:
			formatter.ShowJSONPath(res.Response.Body, jsonPathFlag)
		case linksFlag:
			formatter.ShowLinks(render.ExtractLinks(res.Body, res.URL.Raw))
		case res.Response != nil && res.Response.StatusCode >= 400:
			formatter.ShowErrorPage(res.Response.StatusCode, res.Response.StatusMessage, res.Body)
		default:
			formatter.ShowPage(res.Body)
		}

		formatter.Loaded(res.Protocol, res.Duration)

		if statsFlag {
			formatter.StatsReport(pool.Snapshot())
			formatter.LatencyReport(recorder.Summary())
		}
		return nil
	}

	if err := display(); err != nil {
		return err
	}
	if !watchFlag {
		return nil
	}
	return watchAndRedisplay(ctx, cmd, target, display)
}

// loadEffectiveConfig layers flag overrides on top of the discovered
// config file.
func loadEffectiveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	overlay := &config.Config{
		Protocol:  protocolFlag,
		UserAgent: userAgentFlag,
	}
	if timeoutFlag != "" {
		d, err := time.ParseDuration(timeoutFlag)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid timeout %q", timeoutFlag)
		}
		overlay.Timeout = int(d.Seconds())
		if overlay.Timeout == 0 {
			overlay.Timeout = 1
		}
	}
	if cmd.Flags().Changed("no-color") || noColorFlag {
		overlay.NoColor = config.BoolPtr(noColorFlag)
	}
	if cmd.Flags().Changed("verbose") || verboseFlag {
		overlay.Verbose = config.BoolPtr(verboseFlag)
	}

	cfg = cfg.Merge(overlay)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// historyPath picks the configured visit log location or a per-user
// default under the OS cache directory.
func historyPath(cfg *config.Config) string {
	if cfg.HistoryPath != "" {
		return cfg.HistoryPath
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "riva-history.db"
	}
	return filepath.Join(dir, "riva", "history.db")
}

// watchAndRedisplay re-renders a file URL whenever it changes on disk.
// Only file URLs can be watched; everything else has no local source.
func watchAndRedisplay(ctx context.Context, cmd *cobra.Command, target string, display func() error) error {
	u, err := weburl.Parse(strings.TrimPrefix(target, "view-source:"))
	if err != nil {
		return err
	}
	if u.Scheme != "file" {
		return fmt.Errorf("--watch requires a file URL, got %s", u.Scheme)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors replace files instead of writing
	// them in place, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(u.Path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", u.Path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching %s for changes... (press Ctrl+C to stop)\n\n", u.Path)

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != u.Path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "\nFile changed: %s\n\n", event.Name)
				if err := display(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
		}
	}
}

func init() {
	addOpenFlags(openCmd)
}
