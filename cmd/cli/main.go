// Package main is the entry point for the querydesk CLI.
package main

import (
	"os"

	"querydesk/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
