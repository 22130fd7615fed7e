// Package session stores the integration credentials of each workspace.
//
// A workspace talks to ProductBoard with an API token and to Azure DevOps
// with a personal access token. [Credentials] bundles both together with the
// Azure DevOps organization and project. Two [Store] backends exist:
//   - FileStore: JSON files with 0600 permissions, used by the CLI
//   - RedisStore: shared storage for multi-instance server deployments
//
// Usage:
//
//	store, err := session.NewFileStore("") // ~/.config/planbridge/credentials/
//	creds := session.New("ws-1")
//	creds.ProductBoardToken = token
//	err = store.Set(ctx, creds)
//
//	creds, err = store.Get(ctx, "ws-1")
//	if creds == nil {
//	    // not configured or expired
//	}
package session

import (
	"context"
	"strings"
	"time"

	"github.com/matzehuels/planbridge/pkg/errors"
)

// ErrNotConfigured is returned when a workspace has no usable credentials
// for the requested integration.
var ErrNotConfigured = errors.New(errors.ErrCodeUnauthorized, "integration credentials not configured")

// Credentials holds the integration credentials of one workspace.
type Credentials struct {
	WorkspaceID       string    `json:"workspace_id"`
	ProductBoardToken string    `json:"productboard_token,omitempty"`
	ADOOrganization   string    `json:"ado_organization,omitempty"`
	ADOProject        string    `json:"ado_project,omitempty"`
	ADOToken          string    `json:"ado_token,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// New returns empty credentials for a workspace.
func New(workspaceID string) *Credentials {
	return &Credentials{WorkspaceID: workspaceID, UpdatedAt: time.Now()}
}

// IsExpired reports whether the credentials carry an expiry that has passed.
func (c *Credentials) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// HasProductBoard reports whether a ProductBoard token is set.
func (c *Credentials) HasProductBoard() bool {
	return c != nil && c.ProductBoardToken != ""
}

// HasAzureDevOps reports whether organization, project and token are set.
func (c *Credentials) HasAzureDevOps() bool {
	return c != nil && c.ADOOrganization != "" && c.ADOProject != "" && c.ADOToken != ""
}

// Validate checks the workspace id and, when set, the organization name.
func (c *Credentials) Validate() error {
	if err := errors.ValidateWorkspaceID(c.WorkspaceID); err != nil {
		return err
	}
	if c.ADOOrganization != "" {
		return errors.ValidateOrganization(c.ADOOrganization)
	}
	return nil
}

// Redacted returns a copy with tokens masked down to their last four characters.
func (c *Credentials) Redacted() *Credentials {
	out := *c
	out.ProductBoardToken = mask(c.ProductBoardToken)
	out.ADOToken = mask(c.ADOToken)
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return strings.Repeat("*", 8)
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}

// Store is the interface for credential storage backends.
type Store interface {
	// Get returns the credentials of a workspace.
	// Returns nil, nil if none are stored or they have expired.
	Get(ctx context.Context, workspaceID string) (*Credentials, error)

	// Set stores credentials, replacing any previous ones.
	Set(ctx context.Context, creds *Credentials) error

	// Delete removes the credentials of a workspace.
	Delete(ctx context.Context, workspaceID string) error

	// List returns the ids of all workspaces with stored credentials.
	List(ctx context.Context) ([]string, error)

	// Cleanup removes expired credentials (may be a no-op).
	Cleanup(ctx context.Context) error
}
