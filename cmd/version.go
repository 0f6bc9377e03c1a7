package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holmdigital/a11y-cli/api/schemas"
	"github.com/holmdigital/a11y-cli/internal/standards"
)

// Version is the application version.
// This value is intended to be set at build time using ldflags.
// Example: go build -ldflags "-X github.com/holmdigital/a11y-cli/cmd.Version=1.1.0"
var Version = schemas.EngineVersion

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the engine and mapping table versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "a11y %s\n", Version)
			fmt.Fprintf(out, "engine %s\n", schemas.EngineVersion)
			fmt.Fprintf(out, "mapping table %s\n", standards.Default().Version())
			return nil
		},
	}
}
