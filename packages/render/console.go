package render

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/nukri060/riva/packages/cache"
	"github.com/nukri060/riva/packages/metrics"
)

type ConsoleFormatter struct {
	writer    io.Writer
	verbose   bool
	noColor   bool
	maxLength int
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithMaxLength truncates rendered page text to n runes.
func WithMaxLength(n int) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.maxLength = n
	}
}

// ShowPage prints a fetched body as readable text.
func (f *ConsoleFormatter) ShowPage(body string) {
	green := color.New(color.FgGreen).SprintFunc()
	text := Truncate(CleanText(body), f.maxLength)
	fmt.Fprintf(f.writer, "%s\n", green(text))
}

// ShowRaw prints a body verbatim, for view-source and data URLs.
func (f *ConsoleFormatter) ShowRaw(body string) {
	fmt.Fprintln(f.writer, body)
}

// ShowErrorPage prints an HTTP error body. Server errors go red, client
// errors yellow, the body follows uncolored.
func (f *ConsoleFormatter) ShowErrorPage(statusCode int, statusMessage, body string) {
	paint := color.New(color.FgYellow).SprintFunc()
	if statusCode >= 500 {
		paint = color.New(color.FgRed).SprintFunc()
	}
	fmt.Fprintf(f.writer, "%s\n", paint(fmt.Sprintf("HTTP %d %s", statusCode, statusMessage)))
	if text := Truncate(CleanText(body), f.maxLength); text != "" {
		fmt.Fprintf(f.writer, "%s\n", text)
	}
}

// FormatError prints a fatal error.
func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// Loading announces the URL about to be fetched.
func (f *ConsoleFormatter) Loading(raw string) {
	blue := color.New(color.FgBlue).SprintFunc()
	fmt.Fprintf(f.writer, "%s\n", blue("Loading: "+raw))
}

// Loaded reports protocol and elapsed time after a fetch.
func (f *ConsoleFormatter) Loaded(protocol string, d time.Duration) {
	magenta := color.New(color.FgMagenta).SprintFunc()
	fmt.Fprintf(f.writer, "%s\n", magenta(fmt.Sprintf("Loaded via %s in %.2fs", protocol, d.Seconds())))
}

// ShowLinks prints extracted anchors, numbered, with their text.
func (f *ConsoleFormatter) ShowLinks(links []Link) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	if len(links) == 0 {
		fmt.Fprintln(f.writer, "No links found")
		return
	}
	fmt.Fprintf(f.writer, "%s\n", bold(fmt.Sprintf("Found %d links:", len(links))))
	for i, l := range links {
		if l.Text != "" {
			fmt.Fprintf(f.writer, "  %d. %s (%s)\n", i+1, cyan(l.URL), Truncate(l.Text, 60))
		} else {
			fmt.Fprintf(f.writer, "  %d. %s\n", i+1, cyan(l.URL))
		}
	}
}

// ShowJSONPath evaluates a gjson path against the body and prints the
// result, or a warning when the path matches nothing.
func (f *ConsoleFormatter) ShowJSONPath(body []byte, path string) {
	yellow := color.New(color.FgYellow).SprintFunc()

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		fmt.Fprintf(f.writer, "%s\n", yellow(fmt.Sprintf("No match for path %q", path)))
		return
	}
	fmt.Fprintln(f.writer, result.String())
}

// StatsReport prints connection cache statistics.
func (f *ConsoleFormatter) StatsReport(m cache.Metrics) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("=== Connection Cache Statistics ==="))
	fmt.Fprintf(f.writer, "Active connections: %d/%d\n", m.Size, m.MaxSize)
	fmt.Fprintf(f.writer, "Total hits: %d\n", m.Hits)
	fmt.Fprintf(f.writer, "Total misses: %d\n", m.Misses)
	fmt.Fprintf(f.writer, "Hit ratio: %.1f%%\n", m.HitRatio*100)
	fmt.Fprintf(f.writer, "Evictions: %d\n", m.Evictions)
	fmt.Fprintf(f.writer, "Total connections: %d\n", m.TotalConnections)
	fmt.Fprintf(f.writer, "Failed connections: %d\n", m.FailedConnections)
	fmt.Fprintf(f.writer, "Average connection lifetime: %.2fs\n", m.AvgConnectionLifetime)
}

// LatencyReport prints the fetch latency distribution.
func (f *ConsoleFormatter) LatencyReport(s metrics.Summary) {
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("=== Fetch Latency ==="))
	fmt.Fprintf(f.writer, "Requests: %d (%d failed)\n", s.Total, s.Failed)
	fmt.Fprintf(f.writer, "Min:  %s\n", s.Min)
	fmt.Fprintf(f.writer, "Mean: %s\n", s.Mean)
	fmt.Fprintf(f.writer, "p50:  %s\n", s.P50)
	fmt.Fprintf(f.writer, "p95:  %s\n", s.P95)
	fmt.Fprintf(f.writer, "p99:  %s\n", s.P99)
	fmt.Fprintf(f.writer, "Max:  %s\n", s.Max)
}
