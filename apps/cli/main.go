package main

import "github.com/nukri060/riva/apps/cli/cmd"

var (
	version   = "1.2.0"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime)
}
