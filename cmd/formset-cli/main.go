package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-formset/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "formset: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
