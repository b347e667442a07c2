// Package render turns fetched bodies into terminal output.
//
// It strips markup down to readable text, extracts links, evaluates
// JSON path expressions against response bodies and prints cache and
// latency statistics. All color goes through fatih/color so NO_COLOR
// and piping behave.
package render
