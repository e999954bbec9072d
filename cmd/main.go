package main

import (
	"context"
	"os"

	"github.com/desertthunder/royalty/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	if n, err := shared.LoadEnvFiles(".env", ".env.local"); err != nil {
		logger.Warn("failed to load env files", "error", err)
	} else if n > 0 {
		logger.Debug("loaded env files", "count", n)
	}

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	err := app.Run(context.Background(), os.Args)
	if closeErr := runner.Close(); closeErr != nil {
		logger.Warn("failed to close database", "error", closeErr)
	}

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
