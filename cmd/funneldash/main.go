package main

import (
	"errors"
	"fmt"
	"os"

	"funneldash/internal/app"
	"funneldash/internal/logging"
)

// main is the entry point for the funneldash application.
func main() {
	runner := app.NewAppRunner()

	err := runner.Run(os.Args[1:])
	if err != nil {
		printUsage := errors.Is(err, app.ErrUsage) || errors.Is(err, app.ErrConfigNotFound)
		if printUsage {
			fmt.Fprintln(os.Stderr, "")
			runner.Usage(os.Stderr)
		}

		if logging.GetLevel() < logging.Error {
			logging.SetLevel(logging.Error)
		}
		logging.Logf(logging.Error, "Application execution failed: %v", err)

		os.Exit(1)
	}
}
