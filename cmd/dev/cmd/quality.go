package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func task(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := run(); err != nil {
				return fmt.Errorf("failed to run %s: %w", what, err)
			}
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return task("test", "Run unit tests, including the simulated bus devices", "tests", func() error { return test.Test() })
}

func LintCmd() *cobra.Command {
	return task("lint", "Run linting", "linting", func() error { return test.Lint() })
}

// IntegrationTestCmd runs tests that need attached hardware.
func IntegrationTestCmd() *cobra.Command {
	return task("integration-test", "Run integration testing against attached buses", "integration testing", func() error { return test.Integ() })
}
