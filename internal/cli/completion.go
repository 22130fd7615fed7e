package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/internal/server"
	"github.com/matzehuels/planbridge/pkg/store"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for planbridge.

Besides commands and flags, the scripts complete --format, --source and
--mode values, and workspace ids when a database is configured.`,
		Example: `  source <(planbridge completion bash)
  planbridge completion zsh > "${fpath[1]}/_planbridge"
  planbridge completion fish > ~/.config/fish/completions/planbridge.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
	return cmd
}

// flagValues lists the fixed values of enum-like flags, keyed by
// "<command> <flag>".
var flagValues = map[string][]string{
	"hierarchy format": {formatTree, formatJSON, formatDOT, formatSVG},
	"hierarchy source": {server.SourceStories, server.SourceProductBoard, server.SourceAzureDevOps},
	"export format":    {"json", "yaml"},
	"import mode":      {string(store.ModeUpsert), string(store.ModeInsert)},
}

// registerCompletions attaches value completions to every command below root.
func (c *CLI) registerCompletions(root *cobra.Command) {
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		name := strings.TrimPrefix(cmd.CommandPath(), root.Name()+" ")
		for key, values := range flagValues {
			cmdName, flag, _ := strings.Cut(key, " ")
			if cmdName == name {
				_ = cmd.RegisterFlagCompletionFunc(flag, cobra.FixedCompletions(values, cobra.ShellCompDirectiveNoFileComp))
			}
		}
		if cmd.Flags().Lookup("workspace") != nil {
			_ = cmd.RegisterFlagCompletionFunc("workspace", c.completeWorkspaces)
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(root)
}

// completeWorkspaces offers the workspaces in the database. Without a
// reachable database it offers nothing.
func (c *CLI) completeWorkspaces(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, err := c.openRepo(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer repo.Close()

	workspaces, err := repo.ListWorkspaces(ctx)
	if err != nil {
		c.Logger.Debug("workspace completion failed", "err", err)
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	out := make([]string, 0, len(workspaces))
	for _, w := range workspaces {
		out = append(out, w.ID+"\t"+w.Name)
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
