// Package main is the entry point for the gittask CLI.
package main

import (
	"os"

	"github.com/leeovery/gittask/internal/cli"
	"github.com/leeovery/gittask/internal/render"
)

func main() {
	app := &cli.App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Stdin:  os.Stdin,
		Getwd:  os.Getwd,
		IsTTY:  render.DetectTTY(os.Stdout),
	}
	os.Exit(app.Run(os.Args))
}
