package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/internal/server"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/hierarchy"
	"github.com/matzehuels/planbridge/pkg/snapshot"
)

// Hierarchy output formats.
const (
	formatTree = "tree"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
)

// hierarchyOpts holds the command-line flags for the hierarchy command.
type hierarchyOpts struct {
	workspace string // workspace to read from the database or ProductBoard
	source    string // stories, productboard or azuredevops
	format    string // tree, json, dot or svg
	output    string // output file (stdout when empty)
	warnings  bool   // report orphans, duplicates and cycles
	refresh   bool   // bypass cached API responses
	noCache   bool   // disable the response cache entirely
}

// hierarchyCommand creates the hierarchy command.
func (c *CLI) hierarchyCommand() *cobra.Command {
	opts := hierarchyOpts{source: server.SourceStories, format: formatTree}

	cmd := &cobra.Command{
		Use:   "hierarchy [file]",
		Short: "Build a planning hierarchy from flat records",
		Long: `Build a forest from records that point to their parent.

The input is either a file or a workspace:
  - a JSON or YAML file holding an array of {id, name, parent_id} entities
  - a snapshot file, whose stories are used (filter with --workspace)
  - --workspace with --source stories reads the stories from the database
  - --workspace with --source productboard reads the ProductBoard hierarchy
  - --workspace with --source azuredevops reads the project's work items

Records whose parent is missing become roots. Run with --warnings to list
every record that was promoted, deduplicated or dropped.`,
		Example: `  planbridge hierarchy entities.json
  planbridge hierarchy export.yaml --workspace ws-1 --format json
  planbridge hierarchy --workspace ws-1 --source productboard --format svg -o tree.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			entities, err := c.loadEntities(ctx, args, &opts)
			if err != nil {
				return err
			}
			return c.writeHierarchy(ctx, cmd.OutOrStdout(), entities, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "workspace id")
	cmd.Flags().StringVar(&opts.source, "source", opts.source, "record source with --workspace: stories, productboard or azuredevops")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: tree, json, dot or svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.warnings, "warnings", false, "report orphans, duplicate ids and cycles")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "refetch from the API instead of using cached data")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the response cache")

	return cmd
}

// loadEntities resolves the command input into flat entities.
func (c *CLI) loadEntities(ctx context.Context, args []string, opts *hierarchyOpts) ([]hierarchy.Entity, error) {
	if len(args) == 1 {
		entities, err := readEntities(args[0], opts.workspace)
		if err != nil {
			return nil, err
		}
		c.Logger.Debugf("Loaded %d entities from %s", len(entities), args[0])
		return entities, nil
	}

	switch opts.source {
	case server.SourceStories:
		return c.storyEntities(ctx, opts.workspace)
	case server.SourceProductBoard:
		return c.productBoardEntities(ctx, opts)
	case server.SourceAzureDevOps:
		return c.azureDevOpsEntities(ctx, opts)
	}
	return nil, errors.New(errors.ErrCodeInvalidInput, "unknown source %q (want %s, %s or %s)",
		opts.source, server.SourceStories, server.SourceProductBoard, server.SourceAzureDevOps)
}

// readEntities reads an entity array or a snapshot document. Snapshot
// stories are filtered to workspace when it is set.
func readEntities(path, workspace string) ([]hierarchy.Entity, error) {
	raw, err := snapshot.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		var entities []hierarchy.Entity
		if err := json.Unmarshal(raw, &entities); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "%s is not an entity array", path)
		}
		return entities, nil
	}

	snap, err := snapshot.ValidateExport(raw)
	if err != nil {
		return nil, err
	}
	stories := snap.Data.Stories
	if workspace != "" {
		stories = stories[:0:0]
		for _, s := range snap.Data.Stories {
			if s.WorkspaceID == workspace {
				stories = append(stories, s)
			}
		}
	}
	return snapshot.StoryEntities(stories), nil
}

// storyEntities reads a workspace's stories from the database. Without a
// workspace the user picks one.
func (c *CLI) storyEntities(ctx context.Context, workspace string) ([]hierarchy.Entity, error) {
	repo, err := c.openRepo(ctx)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	if workspace == "" {
		ws, err := pickWorkspace(ctx, repo)
		if err != nil || ws == nil {
			return nil, err
		}
		workspace = ws.ID
	} else if _, err := repo.GetWorkspace(ctx, workspace); err != nil {
		return nil, err
	}

	stories, err := repo.ListStories(ctx, workspace)
	if err != nil {
		return nil, err
	}
	c.Logger.Debugf("Loaded %d stories of %s", len(stories), workspace)
	return snapshot.StoryEntities(stories), nil
}

// productBoardEntities fetches the ProductBoard hierarchy of a workspace.
func (c *CLI) productBoardEntities(ctx context.Context, opts *hierarchyOpts) ([]hierarchy.Entity, error) {
	if opts.workspace == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "--workspace is required with --source %s", server.SourceProductBoard)
	}
	conn, closeConn, err := c.newConnector(ctx, opts.noCache)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	runner, err := conn.Runner(ctx, opts.workspace, nil, false)
	if err != nil {
		return nil, err
	}

	spinner := newSpinnerWithContext(ctx, "Fetching ProductBoard hierarchy...")
	spinner.Start()
	entities, err := runner.Entities(ctx, opts.workspace, opts.refresh)
	if err != nil {
		spinner.StopWithError("Fetch failed")
		return nil, err
	}
	spinner.Stop()
	return entities, nil
}

// azureDevOpsEntities reads the work item hierarchy of a workspace's project.
func (c *CLI) azureDevOpsEntities(ctx context.Context, opts *hierarchyOpts) ([]hierarchy.Entity, error) {
	if opts.workspace == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "--workspace is required with --source %s", server.SourceAzureDevOps)
	}
	conn, closeConn, err := c.newConnector(ctx, opts.noCache || opts.refresh)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	ado, err := conn.AzureDevOps(ctx, opts.workspace)
	if err != nil {
		return nil, err
	}

	spinner := newSpinnerWithContext(ctx, "Fetching Azure DevOps work items...")
	spinner.Start()
	entities, err := ado.FetchHierarchy(ctx)
	if err != nil {
		spinner.StopWithError("Fetch failed")
		return nil, err
	}
	spinner.Stop()
	return entities, nil
}

// writeHierarchy builds the forest and writes it in the requested format.
func (c *CLI) writeHierarchy(ctx context.Context, stdout io.Writer, entities []hierarchy.Entity, opts *hierarchyOpts) error {
	prog := newProgress(c.Logger)
	forest, report := hierarchy.BuildWithReport(entities)
	prog.done("Built %d roots from %d entities", len(forest), len(entities))

	if opts.warnings {
		for _, w := range report.Warnings() {
			c.Logger.Warn(w)
		}
	} else if !report.Empty() {
		c.Logger.Debugf("%d records degraded (run with --warnings for details)", len(report.Warnings()))
	}

	data, err := formatForest(ctx, forest, opts.format)
	if err != nil {
		return err
	}

	out, err := openOutput(opts.output, stdout)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := out.Write(data); err != nil {
		return err
	}
	if opts.output != "" {
		printFile(opts.output)
		printStats(forest, len(report.Warnings()))
	}
	return nil
}

// formatForest renders forest in one of the hierarchy output formats.
func formatForest(ctx context.Context, forest hierarchy.Forest, format string) ([]byte, error) {
	var data []byte
	switch format {
	case formatTree:
		data = []byte(hierarchy.RenderTree(forest) + "\n")
	case formatJSON:
		out, err := json.MarshalIndent(forest, "", "  ")
		if err != nil {
			return nil, err
		}
		data = append(out, '\n')
	case formatDOT:
		data = []byte(hierarchy.ToDOT(forest))
	case formatSVG:
		out, err := hierarchy.RenderSVG(ctx, hierarchy.ToDOT(forest))
		if err != nil {
			return nil, err
		}
		data = out
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want tree, json, dot or svg)", format)
	}
	loggerFromContext(ctx).Debugf("Generated %s: %d bytes", format, len(data))
	return data, nil
}
