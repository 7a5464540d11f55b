// Package main implements the pycfg CLI.
// It builds control flow graphs from Python source and renders them with
// Graphviz.
package main

import (
	"os"

	"github.com/l3aro/pycfg/cmd/pycfg/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (built " + buildTime + ")"
	}
	commands.RootCmd.SetVersionTemplate(`pycfg version {{.Version}}
`)

	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
