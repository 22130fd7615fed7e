package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// validateCommand creates the validate command.
func (c *CLI) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a snapshot without importing it",
		Long: `Validate a snapshot file for import.

The document is checked against the snapshot schema first. If it passes,
every story, configuration, template, field mapping, feature flag and AI
prompt must reference a workspace contained in the same snapshot. All
violations are listed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}

			result := snapshot.ValidateImport(raw)
			if err := result.Err(); err != nil {
				printViolations(err)
				return err
			}

			printSuccess("%s is valid", args[0])
			printDetail("Version %s, %s", result.Data.Version, countSummary(result.Data.Data.Counts()))
			return nil
		},
	}
}
