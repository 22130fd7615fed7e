package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/session"
)

// verifyQuery is a WIQL query that succeeds for any readable project.
const verifyQuery = "SELECT [System.Id] FROM WorkItems WHERE [System.Id] = 0"

// authCommand creates the auth command with subcommands.
func (c *CLI) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage workspace integration credentials",
		Long: `Store the ProductBoard and Azure DevOps credentials of each workspace.

Credentials are stored in ~/.config/planbridge/credentials/ with 0600
permissions. Fields left empty fall back to the config file and the
PRODUCTBOARD_* and AZURE_DEVOPS_* environment variables.`,
	}

	cmd.AddCommand(c.authSetCommand())
	cmd.AddCommand(c.authShowCommand())
	cmd.AddCommand(c.authClearCommand())
	cmd.AddCommand(c.authListCommand())

	return cmd
}

// authSetOpts holds the flags of "auth set".
type authSetOpts struct {
	workspace         string
	productBoardToken string
	adoOrganization   string
	adoProject        string
	adoToken          string
	expires           time.Duration
}

// authSetCommand creates the "auth set" subcommand.
func (c *CLI) authSetCommand() *cobra.Command {
	var opts authSetOpts

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store credentials for a workspace",
		Long: `Store credentials for a workspace. Only the given fields change; the
others keep their stored values.`,
		Example: `  planbridge auth set --workspace ws-1 --productboard-token "$PB_TOKEN"
  planbridge auth set --workspace ws-1 --ado-org contoso --ado-project Web --ado-token "$ADO_PAT"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := session.NewFileStore("")
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}

			creds, err := store.Get(ctx, opts.workspace)
			if err != nil {
				return err
			}
			if creds == nil {
				creds = session.New(opts.workspace)
			}
			mergeCredentials(creds, &opts)
			if err := store.Set(ctx, creds); err != nil {
				return err
			}

			printSuccess("Saved credentials for %s", StyleHighlight.Render(opts.workspace))
			printCredentials(creds.Redacted())
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "workspace id (required)")
	cmd.Flags().StringVar(&opts.productBoardToken, "productboard-token", "", "ProductBoard API token")
	cmd.Flags().StringVar(&opts.adoOrganization, "ado-org", "", "Azure DevOps organization")
	cmd.Flags().StringVar(&opts.adoProject, "ado-project", "", "Azure DevOps project")
	cmd.Flags().StringVar(&opts.adoToken, "ado-token", "", "Azure DevOps personal access token")
	cmd.Flags().DurationVar(&opts.expires, "expires", 0, "forget the credentials after this duration (e.g. 720h)")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

// mergeCredentials applies the non-empty flags to creds.
func mergeCredentials(creds *session.Credentials, opts *authSetOpts) {
	if opts.productBoardToken != "" {
		creds.ProductBoardToken = opts.productBoardToken
	}
	if opts.adoOrganization != "" {
		creds.ADOOrganization = opts.adoOrganization
	}
	if opts.adoProject != "" {
		creds.ADOProject = opts.adoProject
	}
	if opts.adoToken != "" {
		creds.ADOToken = opts.adoToken
	}
	if opts.expires > 0 {
		creds.ExpiresAt = time.Now().Add(opts.expires)
	}
	creds.UpdatedAt = time.Now()
}

// authShowCommand creates the "auth show" subcommand.
func (c *CLI) authShowCommand() *cobra.Command {
	var workspace string
	var verify bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored credentials of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := session.NewFileStore("")
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			creds, err := store.Get(ctx, workspace)
			if err != nil {
				return err
			}
			if creds == nil {
				printInfo("No stored credentials for %s", workspace)
				printDetail("Environment and config file defaults still apply")
			} else {
				printSuccess("Credentials for %s", StyleHighlight.Render(workspace))
				printCredentials(creds.Redacted())
			}

			if verify {
				return c.verifyCredentials(ctx, workspace)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id (required)")
	cmd.Flags().BoolVar(&verify, "verify", false, "check the credentials against ProductBoard and Azure DevOps")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

// authClearCommand creates the "auth clear" subcommand.
func (c *CLI) authClearCommand() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored credentials of a workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewFileStore("")
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			if err := store.Delete(cmd.Context(), workspace); err != nil {
				return fmt.Errorf("delete credentials: %w", err)
			}
			printSuccess("Removed credentials for %s", workspace)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "workspace id (required)")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}

// authListCommand creates the "auth list" subcommand.
func (c *CLI) authListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces with stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := session.NewFileStore("")
			if err != nil {
				return fmt.Errorf("open credential store: %w", err)
			}
			if err := store.Cleanup(ctx); err != nil {
				c.Logger.Debug("cleanup failed", "err", err)
			}
			ids, err := store.List(ctx)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				printInfo("No stored credentials")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

// printCredentials prints redacted credentials as key/value lines.
func printCredentials(creds *session.Credentials) {
	printKeyValue("ProductBoard", orDash(creds.ProductBoardToken))
	printKeyValue("Organization", orDash(creds.ADOOrganization))
	printKeyValue("Project", orDash(creds.ADOProject))
	printKeyValue("ADO token", orDash(creds.ADOToken))
	printKeyValue("Updated", creds.UpdatedAt.Format("Jan 2, 2006"))
	if !creds.ExpiresAt.IsZero() {
		printKeyValue("Expires", creds.ExpiresAt.Format("Jan 2, 2006"))
	}
}

// verifyCredentials makes one uncached call to each configured integration.
func (c *CLI) verifyCredentials(ctx context.Context, workspace string) error {
	conn, closeConn, err := c.newConnector(ctx, true)
	if err != nil {
		return err
	}
	defer closeConn()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var failed int
	spinner := newSpinnerWithContext(ctx, "Verifying ProductBoard...")
	spinner.Start()
	if pb, err := conn.ProductBoard(ctx, workspace); err != nil {
		spinner.StopWithError("ProductBoard: " + errors.UserMessage(err))
		failed++
	} else if _, err := pb.ListProducts(ctx, true); err != nil {
		spinner.StopWithError("ProductBoard: " + errors.UserMessage(err))
		failed++
	} else {
		spinner.StopWithSuccess("ProductBoard token works")
	}

	spinner = newSpinnerWithContext(ctx, "Verifying Azure DevOps...")
	spinner.Start()
	if ado, err := conn.AzureDevOps(ctx, workspace); err != nil {
		spinner.StopWithError("Azure DevOps: " + errors.UserMessage(err))
		failed++
	} else if _, err := ado.QueryWorkItems(ctx, verifyQuery); err != nil {
		spinner.StopWithError("Azure DevOps: " + errors.UserMessage(err))
		failed++
	} else {
		spinner.StopWithSuccess("Azure DevOps token works")
	}

	if failed > 0 {
		return errors.New(errors.ErrCodeUnauthorized, "%d integration(s) failed verification", failed)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
