package main

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/slatehq/slate-server/internal/di"
)

// configArgs turns the persistent flags into configuration flags.
func configArgs() []string {
	args := []string{"--env-file", envFile, "--log-level", logLevel}
	if dataPath != "" {
		args = append(args, "--data-path", dataPath)
	}
	return args
}

// withContainer bootstraps the services without the HTTP server, runs fn and
// shuts everything down.
func withContainer(fn func(injector *do.RootScope) error) error {
	injector := di.NewContainer(configArgs())
	defer func() {
		if report := injector.Shutdown(); report != nil && !report.Succeed {
			fmt.Printf("shutdown: %s\n", report.Error())
		}
	}()

	if err := di.Bootstrap(injector); err != nil {
		return fmt.Errorf("initializing services: %w", err)
	}
	return fn(injector)
}
