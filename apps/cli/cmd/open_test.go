package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetOpenFlags restores the open flag set between executions; cobra
// keeps package-level flag values across calls.
func resetOpenFlags() {
	rawFlag = false
	linksFlag = false
	jsonPathFlag = ""
	statsFlag = false
	watchFlag = false
	noHistoryFlag = true
	noColorFlag = true
	maxLengthFlag = 0
}

func executeOpen(t *testing.T, args ...string) string {
	t.Helper()
	resetOpenFlags()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append(args, "--no-history", "--no-color"))
	require.NoError(t, rootCmd.Execute())
	return buf.String()
}

func TestOpenViewSourceShowsVerbatimResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><p>hello</p></html>"))
	}))
	defer srv.Close()

	out := executeOpen(t, "open", "view-source:"+srv.URL+"/")

	// Status line, headers and markup stay untouched.
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "Content-Type: text/html")
	assert.Contains(t, out, "<html><p>hello</p></html>")
}

func TestOpenRendersCleanText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><p>plain page</p></html>"))
	}))
	defer srv.Close()

	out := executeOpen(t, "open", srv.URL+"/")

	assert.Contains(t, out, "plain page")
	assert.NotContains(t, out, "<p>", "rendered output carries no markup")
	assert.NotContains(t, out, "HTTP/1.1 200", "rendered output carries no status line")
}

func TestOpenRawFlagWrapsTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<b>x</b>"))
	}))
	defer srv.Close()

	out := executeOpen(t, "open", srv.URL+"/", "--raw")

	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "<b>x</b>")
}
