package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
	"github.com/matzehuels/planbridge/pkg/store"
)

// importOpts holds the command-line flags for the import command.
type importOpts struct {
	apply       bool   // write to the database; dry run otherwise
	mode        string // upsert or insert
	fromArchive bool   // treat the argument as an archive entry id
}

// importCommand creates the import command.
func (c *CLI) importCommand() *cobra.Command {
	var opts importOpts

	cmd := &cobra.Command{
		Use:   "import <file|archive-id>",
		Short: "Import a snapshot into the database",
		Long: `Validate a snapshot and write it to the database in one transaction.

Without --apply the import is a dry run: the snapshot is validated and the
records that would be written are counted, but nothing is stored. Every
schema violation and every reference to a workspace missing from the
snapshot is listed, and a snapshot with any violation is rejected whole.`,
		Example: `  planbridge import ws-1.json
  planbridge import ws-1.yaml --apply --mode insert
  planbridge import --from-archive 6f1c2d0e-... --apply`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			mode, err := store.ParseMode(opts.mode)
			if err != nil {
				return err
			}

			raw, err := c.readSnapshot(ctx, args[0], opts.fromArchive)
			if err != nil {
				return err
			}

			repo, err := c.openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			result, err := store.Import(ctx, repo, raw, store.ApplyOptions{Mode: mode, DryRun: !opts.apply})
			if err != nil {
				printViolations(err)
				return err
			}

			if result.DryRun {
				printSuccess("Snapshot is valid (dry run)")
				printDetail("Would write %s", countSummary(result.Counts))
				printNextStep("Write it", "planbridge import "+args[0]+" --apply")
				return nil
			}
			printSuccess("Imported %s", countSummary(result.Counts))
			printDetail("Mode: %s", result.Mode)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.apply, "apply", false, "write to the database (default dry run)")
	cmd.Flags().StringVar(&opts.mode, "mode", string(store.ModeUpsert), "upsert replaces existing records, insert fails on conflicts")
	cmd.Flags().BoolVar(&opts.fromArchive, "from-archive", false, "read the snapshot from the archive by entry id")

	return cmd
}

// readSnapshot returns the JSON bytes of a snapshot file or archive entry.
func (c *CLI) readSnapshot(ctx context.Context, ref string, fromArchive bool) ([]byte, error) {
	if !fromArchive {
		return snapshot.ReadFile(ref)
	}
	arch, err := c.openArchive(ctx)
	if err != nil {
		return nil, err
	}
	defer arch.Close(ctx)
	entry, err := arch.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	return []byte(entry.Document), nil
}

// printViolations lists the validation details carried by err.
func printViolations(err error) {
	details := errors.Details(err)
	if len(details) == 0 {
		return
	}
	printError("%s", errors.UserMessage(err))
	for _, d := range details {
		printDetail("%s", d)
	}
}

// countSummary formats per-collection counts as "1 workspaces, 4 stories",
// skipping empty collections.
func countSummary(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name, n := range counts {
		if n > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "no records"
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%d %s", counts[name], name)
	}
	return strings.Join(parts, ", ")
}
