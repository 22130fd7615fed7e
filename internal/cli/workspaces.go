package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/snapshot"
	"github.com/matzehuels/planbridge/pkg/store"
)

// workspacesCommand creates the workspaces command.
func (c *CLI) workspacesCommand() *cobra.Command {
	var pick bool

	cmd := &cobra.Command{
		Use:     "workspaces",
		Aliases: []string{"ws"},
		Short:   "List workspaces in the database",
		Long: `List the workspaces in the database with their story counts.

With --pick an interactive list is shown and the id of the chosen workspace
is printed, so it can be used in scripts:

  planbridge hierarchy --workspace "$(planbridge workspaces --pick)"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := c.openRepo(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if pick {
				ws, err := pickWorkspace(ctx, repo)
				if err != nil || ws == nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ws.ID)
				return nil
			}

			rows, err := workspaceRows(ctx, repo)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				printInfo("No workspaces yet")
				printNextStep("Import a snapshot", "planbridge import <file> --apply")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), workspacesTable(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&pick, "pick", false, "choose a workspace interactively and print its id")

	return cmd
}

// workspaceRows loads every workspace with its story count.
func workspaceRows(ctx context.Context, repo store.Repository) ([]WorkspaceRow, error) {
	workspaces, err := repo.ListWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]WorkspaceRow, len(workspaces))
	for i, ws := range workspaces {
		stories, err := repo.ListStories(ctx, ws.ID)
		if err != nil {
			return nil, err
		}
		rows[i] = WorkspaceRow{Workspace: ws, Stories: len(stories)}
	}
	return rows, nil
}

// workspacesTable renders workspace rows as a rounded lipgloss table.
func workspacesTable(rows []WorkspaceRow) string {
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = workspaceCells(r)
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Workspace", "Name", "Stories", "Updated").
		Rows(cells...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if col == 0 {
				return StyleHighlight
			}
			return lipgloss.NewStyle()
		}).
		String()
}

// pickWorkspace lets the user choose a workspace. It returns nil when the
// user quits without choosing.
func pickWorkspace(ctx context.Context, repo store.Repository) (*snapshot.Workspace, error) {
	rows, err := workspaceRows(ctx, repo)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New(errors.ErrCodeWorkspaceNotFound, "no workspaces in the database (import a snapshot first)")
	}

	p := tea.NewProgram(NewWorkspaceListModel(rows), tea.WithContext(ctx), tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return nil, err
	}

	m, ok := finalModel.(WorkspaceListModel)
	if !ok || m.Selected == nil {
		printDetail("No selection made")
		return nil, nil
	}
	return m.Selected, nil
}
