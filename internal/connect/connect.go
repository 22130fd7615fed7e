// Package connect builds the ProductBoard and Azure DevOps clients of a
// workspace from its stored credentials.
package connect

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/planbridge/internal/config"
	"github.com/matzehuels/planbridge/pkg/cache"
	"github.com/matzehuels/planbridge/pkg/errors"
	"github.com/matzehuels/planbridge/pkg/integrations/azuredevops"
	"github.com/matzehuels/planbridge/pkg/integrations/productboard"
	"github.com/matzehuels/planbridge/pkg/session"
	"github.com/matzehuels/planbridge/pkg/store"
	"github.com/matzehuels/planbridge/pkg/syncer"
)

// Connector resolves workspace credentials into API clients. Stored
// credentials win; fields they leave empty fall back to the configured
// defaults.
type Connector struct {
	Credentials session.Store
	Cache       cache.Cache
	Config      *config.Config
	Logger      *log.Logger
}

// credentials merges the stored credentials of a workspace with the
// configured defaults.
func (c *Connector) credentials(ctx context.Context, workspaceID string) (*session.Credentials, error) {
	if err := errors.ValidateWorkspaceID(workspaceID); err != nil {
		return nil, err
	}
	creds := session.New(workspaceID)
	if c.Credentials != nil {
		stored, err := c.Credentials.Get(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			creds = stored
		}
	}
	if cfg := c.Config; cfg != nil {
		if creds.ProductBoardToken == "" {
			creds.ProductBoardToken = cfg.ProductBoard.Token
		}
		if creds.ADOOrganization == "" {
			creds.ADOOrganization = cfg.AzureDevOps.Organization
		}
		if creds.ADOProject == "" {
			creds.ADOProject = cfg.AzureDevOps.Project
		}
		if creds.ADOToken == "" {
			creds.ADOToken = cfg.AzureDevOps.Token
		}
	}
	return creds, nil
}

func (c *Connector) ttl() time.Duration {
	if c.Config != nil {
		return c.Config.Cache.TTL
	}
	return config.Default().Cache.TTL
}

// keyer scopes cached responses to one workspace, so that workspaces with
// different tokens never read each other's entries.
func keyer(workspaceID string) cache.Keyer {
	return cache.NewScopedKeyer(nil, "ws:"+workspaceID+":")
}

// ProductBoard returns the ProductBoard client of a workspace.
func (c *Connector) ProductBoard(ctx context.Context, workspaceID string) (*productboard.Client, error) {
	creds, err := c.credentials(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !creds.HasProductBoard() {
		return nil, errors.Wrap(errors.ErrCodeUnauthorized, session.ErrNotConfigured, "workspace %q has no ProductBoard token", workspaceID)
	}
	client := productboard.NewClient(c.Cache, creds.ProductBoardToken, c.ttl())
	client.SetKeyer(keyer(workspaceID))
	if c.Config != nil {
		client.SetBaseURL(c.Config.ProductBoard.BaseURL)
	}
	return client, nil
}

// AzureDevOps returns the Azure DevOps client of a workspace.
func (c *Connector) AzureDevOps(ctx context.Context, workspaceID string) (*azuredevops.Client, error) {
	creds, err := c.credentials(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if !creds.HasAzureDevOps() {
		return nil, errors.Wrap(errors.ErrCodeUnauthorized, session.ErrNotConfigured, "workspace %q has no Azure DevOps organization, project and token", workspaceID)
	}
	client, err := azuredevops.NewClient(c.Cache, creds.ADOOrganization, creds.ADOProject, creds.ADOToken, c.ttl())
	if err != nil {
		return nil, err
	}
	client.SetKeyer(keyer(workspaceID))
	if c.Config != nil {
		client.SetBaseURL(c.Config.AzureDevOps.BaseURL)
	}
	return client, nil
}

// Runner returns a sync runner for a workspace. With tracker false only the
// ProductBoard side is connected, which is enough to read the hierarchy and
// plan a sync.
func (c *Connector) Runner(ctx context.Context, workspaceID string, repo store.Repository, tracker bool) (*syncer.Runner, error) {
	pb, err := c.ProductBoard(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	var t syncer.Tracker
	if tracker {
		ado, err := c.AzureDevOps(ctx, workspaceID)
		if err != nil {
			return nil, err
		}
		t = ado
	}
	return syncer.NewRunner(pb, t, repo, c.Cache, keyer(workspaceID), c.Logger), nil
}
