package main

import "github.com/wham/github-discussions/cmd"

// Version information (set via ldflags at build time)
var (
	Version   = "dev"
	BuildDate = "unknown"
)

func main() {
	cmd.Execute(Version, BuildDate)
}
