package main

import (
	"fmt"
	"os"

	"github.com/kang022878/WheelCity-back-2025/cmd/wheelcity/cmd"
)

// Version information, set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
