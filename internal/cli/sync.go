package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/syncer"
)

// syncOpts holds the command-line flags for the sync command.
type syncOpts struct {
	workspace string // workspace to sync
	apply     bool   // write to Azure DevOps; plan only otherwise
	plan      string // apply a previously computed plan by key
	refresh   bool   // refetch ProductBoard instead of using cached data
	noCache   bool   // disable the response cache
}

// syncCommand creates the sync command.
func (c *CLI) syncCommand() *cobra.Command {
	var opts syncOpts

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync ProductBoard features into Azure DevOps work items",
		Long: `Plan and apply a sync from ProductBoard to Azure DevOps.

The workspace's ProductBoard hierarchy is mapped onto work items using the
workspace configuration's area path, iteration path and field mappings.
Without --apply only the plan is shown. The plan is cached under the printed
key, so exactly that plan can be applied later with --plan.`,
		Example: `  planbridge sync --workspace ws-1
  planbridge sync --workspace ws-1 --apply
  planbridge sync --workspace ws-1 --plan <key>`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "workspace id (required)")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "create and update the planned work items")
	cmd.Flags().StringVar(&opts.plan, "plan", "", "apply the cached plan with this key")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "refetch ProductBoard instead of using cached data")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the response cache")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

func (c *CLI) runSync(ctx context.Context, opts *syncOpts) error {
	if opts.plan != "" && opts.noCache {
		return errors.New(errors.ErrCodeInvalidInput, "--plan needs the cache, drop --no-cache")
	}

	repo, err := c.openRepo(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	conn, closeConn, err := c.newConnector(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer closeConn()

	applying := opts.apply || opts.plan != ""
	runner, err := conn.Runner(ctx, opts.workspace, repo, applying)
	if err != nil {
		return err
	}

	var plan *syncer.Plan
	if opts.plan != "" {
		if plan, err = runner.LoadPlan(ctx, opts.plan); err != nil {
			return err
		}
		if plan.WorkspaceID != opts.workspace {
			return errors.New(errors.ErrCodeInvalidInput, "plan %s belongs to workspace %q", opts.plan, plan.WorkspaceID)
		}
	} else {
		spinner := newSpinnerWithContext(ctx, "Planning sync...")
		spinner.Start()
		plan, err = runner.Plan(ctx, syncer.PlanOptions{WorkspaceID: opts.workspace, Refresh: opts.refresh})
		if err != nil {
			spinner.StopWithError("Planning failed")
			return err
		}
		spinner.Stop()
	}

	printPlan(plan)
	if plan.Empty() {
		printSuccess("Azure DevOps is up to date")
		return nil
	}
	if !applying {
		printNewline()
		printNextStep("Apply this plan", "planbridge sync --workspace "+opts.workspace+" --plan "+plan.Key)
		return nil
	}

	prog := newProgress(c.Logger)
	result, err := runner.Apply(ctx, plan)
	if err != nil {
		return err
	}
	prog.done("Applied %d of %d operations", result.Applied, len(plan.Operations))
	return printSyncResult(result)
}

// printPlan prints the plan summary, warnings and an operations table.
func printPlan(plan *syncer.Plan) {
	printInfo("Sync plan for %s: %s", StyleHighlight.Render(plan.WorkspaceID), plan.Summary())
	for _, w := range plan.Warnings {
		printWarning("%s", w)
	}
	for _, s := range plan.Skipped {
		printDetail("skipped %s", s)
	}
	if plan.Empty() {
		return
	}
	fmt.Println(operationsTable(plan.Operations))
}

// operationsTable renders operations as a rounded lipgloss table.
func operationsTable(ops []syncer.Operation) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	rows := make([][]string, len(ops))
	for i, op := range ops {
		workItem := "—"
		if op.WorkItemID != 0 {
			workItem = "#" + strconv.Itoa(op.WorkItemID)
		}
		rows[i] = []string{string(op.Action), op.WorkItemType, op.Title, workItem, strconv.Itoa(op.Level)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Action", "Type", "Title", "Work item", "Level").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 && ops[row].Action == syncer.ActionCreate {
				return StyleSuccess
			}
			return lipgloss.NewStyle().Foreground(colorWhite)
		}).
		String()
}

// printSyncResult reports an applied plan and fails when any operation did.
func printSyncResult(result *syncer.Result) error {
	for _, op := range result.Operations {
		if op.Error != "" {
			printError("%s %s: %s", op.Action, op.Title, op.Error)
		}
	}
	if result.Failed > 0 {
		return errors.New(errors.ErrCodeInternal, "%d of %d operations failed", result.Failed, len(result.Operations))
	}
	printSuccess("Synced %d work items", result.Applied)
	printDetail("Took %s", result.Duration.Round(time.Millisecond))
	return nil
}
